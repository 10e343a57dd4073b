package dto

// GrantPermissionRequest grants a role to a user or team.
type GrantPermissionRequest struct {
	GranteeType string `json:"grantee_type" binding:"required,oneof=user team"`
	GranteeID   string `json:"grantee_id" binding:"required"`
	Role        string `json:"role" binding:"required,oneof=viewer editor admin"`
}

// DenyPermissionRequest creates a deny entry for a user or team.
type DenyPermissionRequest struct {
	GranteeType string `json:"grantee_type" binding:"required,oneof=user team"`
	GranteeID   string `json:"grantee_id" binding:"required"`
}

// RevokePermissionRequest removes the entry for a grantee.
type RevokePermissionRequest struct {
	GranteeType string `json:"grantee_type" binding:"required,oneof=user team"`
	GranteeID   string `json:"grantee_id" binding:"required"`
}
