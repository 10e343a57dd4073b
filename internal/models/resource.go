package models

import "time"

// ResourceType discriminates the two kinds of hierarchy nodes.
type ResourceType string

const (
	ResourceFolder ResourceType = "folder"
	ResourceFile   ResourceType = "file"
)

// Role is the access level a grantee can hold on a resource.
// Roles are totally ordered: viewer < editor < admin.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Folder is a node in the organization's document tree.
type Folder struct {
	ID                 string     `db:"id" json:"id"`
	OrganizationID     string     `db:"organization_id" json:"organization_id"`
	OwnerTeamID        *string    `db:"owner_team_id" json:"owner_team_id,omitempty"`
	ParentID           *string    `db:"parent_id" json:"parent_id,omitempty"`
	Name               string     `db:"name" json:"name"`
	InheritPermissions bool       `db:"inherit_permissions" json:"inherit_permissions"`
	CreatedBy          string     `db:"created_by" json:"created_by"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt          *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	DeletedBy          *string    `db:"deleted_by" json:"deleted_by,omitempty"`
}

// File is a leaf document in the tree.
type File struct {
	ID                 string     `db:"id" json:"id"`
	OrganizationID     string     `db:"organization_id" json:"organization_id"`
	OwnerTeamID        *string    `db:"owner_team_id" json:"owner_team_id,omitempty"`
	FolderID           *string    `db:"folder_id" json:"folder_id,omitempty"`
	Name               string     `db:"name" json:"name"`
	MimeType           string     `db:"mime_type" json:"mime_type"`
	SizeBytes          int64      `db:"size_bytes" json:"size_bytes"`
	StoragePath        string     `db:"storage_path" json:"-"`
	InheritPermissions bool       `db:"inherit_permissions" json:"inherit_permissions"`
	CreatedBy          string     `db:"created_by" json:"created_by"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt          *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	DeletedBy          *string    `db:"deleted_by" json:"deleted_by,omitempty"`
}

// ResourceNode is the projection of either resource kind the permission
// resolver walks: identity, ownership, parent pointer and inheritance flag.
type ResourceNode struct {
	ID                 string  `db:"id"`
	OrganizationID     string  `db:"organization_id"`
	OwnerTeamID        *string `db:"owner_team_id"`
	ParentID           *string `db:"parent_id"`
	InheritPermissions bool    `db:"inherit_permissions"`
	Deleted            bool    `db:"deleted"`
}
