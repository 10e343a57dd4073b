package authz

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/berrihq/berri-api/internal/models"
)

func TestRoleOrdering(t *testing.T) {
	require.True(t, AtLeast(models.RoleAdmin, models.RoleViewer))
	require.True(t, AtLeast(models.RoleAdmin, models.RoleEditor))
	require.True(t, AtLeast(models.RoleEditor, models.RoleViewer))
	require.True(t, AtLeast(models.RoleViewer, models.RoleViewer))
	require.False(t, AtLeast(models.RoleViewer, models.RoleEditor))
	require.False(t, AtLeast(models.RoleEditor, models.RoleAdmin))
	require.False(t, AtLeast(models.Role("owner"), models.RoleViewer))
	require.False(t, AtLeast(models.RoleAdmin, models.Role("owner")))
}

func TestRoleMonotonicity(t *testing.T) {
	roles := []models.Role{models.RoleViewer, models.RoleEditor, models.RoleAdmin}
	tiers := []models.Role{models.RoleViewer, models.RoleEditor, models.RoleAdmin}
	for _, held := range roles {
		for _, tier := range tiers {
			expected := Rank(held) >= Rank(tier)
			require.Equal(t, expected, AtLeast(held, tier), "held=%s required=%s", held, tier)
		}
	}
}

func TestMaxRole(t *testing.T) {
	require.Equal(t, models.RoleAdmin, MaxRole(models.RoleViewer, models.RoleAdmin))
	require.Equal(t, models.RoleEditor, MaxRole(models.RoleEditor, models.RoleViewer))
	require.Equal(t, models.RoleViewer, MaxRole(models.RoleViewer, models.RoleViewer))
}

func TestRequiredRoleTables(t *testing.T) {
	role, ok := RequiredRole(models.ResourceFolder, ActionView)
	require.True(t, ok)
	require.Equal(t, models.RoleViewer, role)

	role, ok = RequiredRole(models.ResourceFolder, ActionManagePermissions)
	require.True(t, ok)
	require.Equal(t, models.RoleAdmin, role)

	role, ok = RequiredRole(models.ResourceFile, ActionRedact)
	require.True(t, ok)
	require.Equal(t, models.RoleEditor, role)

	role, ok = RequiredRole(models.ResourceFile, ActionReadRawText)
	require.True(t, ok)
	require.Equal(t, models.RoleAdmin, role)

	// Folder table has no download action.
	_, ok = RequiredRole(models.ResourceFolder, ActionDownload)
	require.False(t, ok)

	// Unknown actions always deny.
	_, ok = RequiredRole(models.ResourceFile, Action("publish"))
	require.False(t, ok)
	_, ok = RequiredRole(models.ResourceType("workspace"), ActionView)
	require.False(t, ok)
}

func TestGrantEligibility(t *testing.T) {
	require.True(t, CanGrant(models.RoleAdmin, models.RoleAdmin))
	require.True(t, CanGrant(models.RoleAdmin, models.RoleViewer))
	require.True(t, CanGrant(models.RoleEditor, models.RoleEditor))
	require.True(t, CanGrant(models.RoleEditor, models.RoleViewer))
	require.False(t, CanGrant(models.RoleEditor, models.RoleAdmin))
	require.False(t, CanGrant(models.RoleViewer, models.RoleViewer))
	require.False(t, CanGrant(models.RoleAdmin, models.Role("owner")))

	require.True(t, CanDeny(models.RoleAdmin))
	require.False(t, CanDeny(models.RoleEditor))
	require.False(t, CanDeny(models.RoleViewer))

	require.True(t, CanRevoke(models.RoleAdmin))
	require.False(t, CanRevoke(models.RoleEditor))
}
