// Package authz holds the static role policy: role ordering, the
// action → minimum-role tables, and grant-eligibility rules. No I/O.
package authz

import "github.com/berrihq/berri-api/internal/models"

// Action names a permission-gated operation on a resource.
type Action string

const (
	ActionView              Action = "view"
	ActionList              Action = "list"
	ActionCreate            Action = "create"
	ActionRename            Action = "rename"
	ActionMove              Action = "move"
	ActionDelete            Action = "delete"
	ActionRestore           Action = "restore"
	ActionDownload          Action = "download"
	ActionRedact            Action = "redact"
	ActionCommit            Action = "commit"
	ActionIndex             Action = "index"
	ActionReadRawText       Action = "read_raw_text"
	ActionManagePermissions Action = "manage_permissions"
)

var roleRank = map[models.Role]int{
	models.RoleViewer: 1,
	models.RoleEditor: 2,
	models.RoleAdmin:  3,
}

var folderActions = map[Action]models.Role{
	ActionView:              models.RoleViewer,
	ActionList:              models.RoleViewer,
	ActionCreate:            models.RoleEditor,
	ActionRename:            models.RoleEditor,
	ActionMove:              models.RoleEditor,
	ActionDelete:            models.RoleEditor,
	ActionRestore:           models.RoleEditor,
	ActionManagePermissions: models.RoleAdmin,
}

var fileActions = map[Action]models.Role{
	ActionView:              models.RoleViewer,
	ActionDownload:          models.RoleViewer,
	ActionCreate:            models.RoleEditor,
	ActionRename:            models.RoleEditor,
	ActionMove:              models.RoleEditor,
	ActionDelete:            models.RoleEditor,
	ActionRestore:           models.RoleEditor,
	ActionRedact:            models.RoleEditor,
	ActionCommit:            models.RoleEditor,
	ActionIndex:             models.RoleEditor,
	ActionReadRawText:       models.RoleAdmin,
	ActionManagePermissions: models.RoleAdmin,
}

// Rank returns the position of a role in the viewer < editor < admin order,
// or 0 for an unknown role.
func Rank(role models.Role) int {
	return roleRank[role]
}

// AtLeast reports whether role meets or exceeds the required role.
// Unknown roles never satisfy anything.
func AtLeast(role, required models.Role) bool {
	r, ok := roleRank[role]
	if !ok {
		return false
	}
	req, ok := roleRank[required]
	if !ok {
		return false
	}
	return r >= req
}

// MaxRole returns the higher of two roles.
func MaxRole(a, b models.Role) models.Role {
	if roleRank[a] >= roleRank[b] {
		return a
	}
	return b
}

// RequiredRole looks up the minimum role for an action on a resource type.
// Unknown actions and unknown resource types report ok=false, which callers
// must treat as deny.
func RequiredRole(resourceType models.ResourceType, action Action) (models.Role, bool) {
	switch resourceType {
	case models.ResourceFolder:
		role, ok := folderActions[action]
		return role, ok
	case models.ResourceFile:
		role, ok := fileActions[action]
		return role, ok
	default:
		return "", false
	}
}

// CanGrant reports whether a grantor holding grantorRole may grant
// grantedRole. Admins grant anything; editors grant up to editor; viewers
// grant nothing.
func CanGrant(grantorRole, grantedRole models.Role) bool {
	if _, ok := roleRank[grantedRole]; !ok {
		return false
	}
	switch grantorRole {
	case models.RoleAdmin:
		return true
	case models.RoleEditor:
		return grantedRole != models.RoleAdmin
	default:
		return false
	}
}

// CanDeny reports whether the grantor may create a deny entry.
// Only admins may deny.
func CanDeny(grantorRole models.Role) bool {
	return grantorRole == models.RoleAdmin
}

// CanRevoke reports whether the grantor may remove a permission entry.
// Only admins may revoke.
func CanRevoke(grantorRole models.Role) bool {
	return grantorRole == models.RoleAdmin
}
