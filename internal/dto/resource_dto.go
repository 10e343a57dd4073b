// Package dto defines the HTTP request payloads.
package dto

// CreateFolderRequest creates a folder at the root or under a parent.
type CreateFolderRequest struct {
	Name               string  `json:"name" binding:"required"`
	ParentID           *string `json:"parent_id"`
	OwnerTeamID        *string `json:"owner_team_id"`
	InheritPermissions *bool   `json:"inherit_permissions"`
}

// RenameRequest renames a folder or file.
type RenameRequest struct {
	Name string `json:"name" binding:"required"`
}

// MoveFolderRequest reparents a folder; null means the root.
type MoveFolderRequest struct {
	NewParentID *string `json:"new_parent_id"`
}

// MoveFileRequest relocates a file; null means the root.
type MoveFileRequest struct {
	FolderID *string `json:"folder_id"`
}

// UploadFileRequest carries upload metadata; the bytes arrive as multipart
// form data.
type UploadFileRequest struct {
	FolderID           *string `form:"folder_id"`
	OwnerTeamID        *string `form:"owner_team_id"`
	InheritPermissions *bool   `form:"inherit_permissions"`
}
