package models

import "time"

// GranteeType identifies who a permission entry applies to.
type GranteeType string

const (
	GranteeUser GranteeType = "user"
	GranteeTeam GranteeType = "team"
)

// PermissionKind distinguishes grants from denies.
type PermissionKind string

const (
	PermissionGrant PermissionKind = "grant"
	PermissionDeny  PermissionKind = "deny"
)

// PermissionEntry is an explicit grant or deny on a resource. At most one
// active entry exists per (resource, grantee) pair; granting overwrites.
type PermissionEntry struct {
	ID           string         `db:"id" json:"id"`
	ResourceType ResourceType   `db:"resource_type" json:"resource_type"`
	ResourceID   string         `db:"resource_id" json:"resource_id"`
	GranteeType  GranteeType    `db:"grantee_type" json:"grantee_type"`
	GranteeID    string         `db:"grantee_id" json:"grantee_id"`
	Role         Role           `db:"role" json:"role"`
	Kind         PermissionKind `db:"kind" json:"kind"`
	CreatedBy    string         `db:"created_by" json:"created_by"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}
