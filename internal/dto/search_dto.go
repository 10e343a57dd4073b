package dto

// SearchRequest runs a similarity search over the caller's documents.
type SearchRequest struct {
	Query     string   `json:"query" binding:"required"`
	Limit     int      `json:"limit" binding:"omitempty,min=1,max=50"`
	Threshold float64  `json:"threshold" binding:"omitempty,gt=0,lt=1"`
	FileIDs   []string `json:"file_ids"`
}

// ChatMessage is one prior conversation turn.
type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content" binding:"required"`
}

// ChatRequest asks the assistant a question, optionally pinned to files.
type ChatRequest struct {
	Query   string        `json:"query" binding:"required"`
	FileIDs []string      `json:"file_ids"`
	History []ChatMessage `json:"history" binding:"omitempty,dive"`
}
