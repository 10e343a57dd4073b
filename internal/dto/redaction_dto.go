package dto

// CreateRedactionRequest adds one redaction span to a file's raw text.
type CreateRedactionRequest struct {
	Type          string  `json:"type" binding:"omitempty,oneof=manual email phone national_id card_number"`
	StartOffset   int     `json:"start_offset"`
	EndOffset     int     `json:"end_offset" binding:"required"`
	Pattern       *string `json:"pattern"`
	SemanticLabel *string `json:"semantic_label"`
}
