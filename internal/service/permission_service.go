package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/berrihq/berri-api/internal/authz"
	"github.com/berrihq/berri-api/internal/models"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
)

// maxAncestorDepth caps the inheritance walk. The parent graph is supposed
// to be acyclic; the visited set and this cap defend against corrupt data.
const maxAncestorDepth = 64

type resourceNodeStore interface {
	GetNode(ctx context.Context, orgID, id string) (*models.ResourceNode, error)
}

type permissionStore interface {
	Upsert(ctx context.Context, entry *models.PermissionEntry) error
	Delete(ctx context.Context, resourceType models.ResourceType, resourceID string, granteeType models.GranteeType, granteeID string) error
	ListByResource(ctx context.Context, resourceType models.ResourceType, resourceID string) ([]models.PermissionEntry, error)
	ListApplicable(ctx context.Context, resourceType models.ResourceType, resourceID, userID string, teamIDs []string) ([]models.PermissionEntry, error)
}

type roleCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	InvalidateOrg(ctx context.Context, orgID string)
}

// PermissionService resolves effective roles and manages explicit entries.
type PermissionService struct {
	folders  resourceNodeStore
	files    resourceNodeStore
	perms    permissionStore
	cache    roleCache
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewPermissionService constructs the resolution engine.
func NewPermissionService(folders, files resourceNodeStore, perms permissionStore, cache roleCache, logger *zap.Logger) *PermissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionService{
		folders:  folders,
		files:    files,
		perms:    perms,
		cache:    cache,
		logger:   logger,
		cacheTTL: 30 * time.Second,
	}
}

// EffectiveRole computes the actor's role on a resource. ok=false means no
// access. Any lookup error resolves as deny, never as access; the error is
// logged, not returned, so callers cannot accidentally treat it as a grant.
func (s *PermissionService) EffectiveRole(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string) (models.Role, bool) {
	if actor == nil {
		return "", false
	}

	cacheKey := fmt.Sprintf("effrole:%s:%s:%s:%s", actor.OrganizationID, actor.UserID, resourceType, resourceID)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, cacheKey); ok {
			if cached == "none" {
				return "", false
			}
			return models.Role(cached), true
		}
	}

	role, ok := s.resolve(ctx, actor, resourceType, resourceID)

	if s.cache != nil {
		value := "none"
		if ok {
			value = string(role)
		}
		s.cache.Set(ctx, cacheKey, value, s.cacheTTL)
	}
	return role, ok
}

func (s *PermissionService) resolve(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string) (models.Role, bool) {
	visited := make(map[string]struct{})
	currentType := resourceType
	currentID := resourceID

	for depth := 0; depth < maxAncestorDepth; depth++ {
		key := string(currentType) + ":" + currentID
		if _, seen := visited[key]; seen {
			s.logger.Warn("cycle detected in resource hierarchy",
				zap.String("resource_type", string(currentType)),
				zap.String("resource_id", currentID))
			return "", false
		}
		visited[key] = struct{}{}

		node, err := s.getNode(ctx, actor.OrganizationID, currentType, currentID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				s.logger.Error("permission resolution lookup failed, denying",
					zap.String("resource_id", currentID), zap.Error(err))
			}
			return "", false
		}
		if node.Deleted {
			return "", false
		}

		// Orphaned resources are reachable only by super-admins.
		if node.OwnerTeamID == nil {
			if actor.SuperAdmin {
				return models.RoleAdmin, true
			}
			return "", false
		}

		entries, err := s.perms.ListApplicable(ctx, currentType, node.ID, actor.UserID, actor.TeamIDs)
		if err != nil {
			s.logger.Error("permission entry lookup failed, denying",
				zap.String("resource_id", node.ID), zap.Error(err))
			return "", false
		}

		// A deny outranks everything, including team ownership.
		best := models.Role("")
		hasGrant := false
		for _, e := range entries {
			if e.Kind == models.PermissionDeny {
				return "", false
			}
			if !hasGrant || authz.Rank(e.Role) > authz.Rank(best) {
				best = e.Role
				hasGrant = true
			}
		}

		if actor.InTeam(*node.OwnerTeamID) {
			return models.RoleAdmin, true
		}
		if hasGrant {
			return best, true
		}

		if !node.InheritPermissions {
			return "", false
		}
		if node.ParentID == nil {
			return "", false
		}

		// Parents are always folders.
		currentType = models.ResourceFolder
		currentID = *node.ParentID
	}

	s.logger.Warn("ancestor walk exceeded depth cap, denying",
		zap.String("resource_id", resourceID))
	return "", false
}

func (s *PermissionService) getNode(ctx context.Context, orgID string, resourceType models.ResourceType, id string) (*models.ResourceNode, error) {
	switch resourceType {
	case models.ResourceFolder:
		return s.folders.GetNode(ctx, orgID, id)
	case models.ResourceFile:
		return s.files.GetNode(ctx, orgID, id)
	default:
		return nil, fmt.Errorf("unknown resource type %q", resourceType)
	}
}

// CanAccess checks whether the actor may perform the action. Unknown
// actions always deny.
func (s *PermissionService) CanAccess(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string, action authz.Action) bool {
	required, ok := authz.RequiredRole(resourceType, action)
	if !ok {
		return false
	}
	role, ok := s.EffectiveRole(ctx, actor, resourceType, resourceID)
	if !ok {
		return false
	}
	return authz.AtLeast(role, required)
}

// AssertAccess is CanAccess raised as a typed permission failure carrying
// the resolved role.
func (s *PermissionService) AssertAccess(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string, action authz.Action) error {
	required, ok := authz.RequiredRole(resourceType, action)
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("unknown action %q on %s", action, resourceType))
	}
	role, hasRole := s.EffectiveRole(ctx, actor, resourceType, resourceID)
	if !hasRole {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s requires %s role, no access resolved", action, required))
	}
	if !authz.AtLeast(role, required) {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s requires %s role, resolved role is %s", action, required, role))
	}
	return nil
}

// Grant writes a grant entry, enforcing grant eligibility: admins may grant
// any role, editors only editor/viewer, viewers nothing.
func (s *PermissionService) Grant(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string, granteeType models.GranteeType, granteeID string, role models.Role) (*models.PermissionEntry, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if granteeType != models.GranteeUser && granteeType != models.GranteeTeam {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid grantee type")
	}
	if authz.Rank(role) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid role")
	}

	actorRole, ok := s.EffectiveRole(ctx, actor, resourceType, resourceID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to resource")
	}
	if !authz.CanGrant(actorRole, role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s role cannot grant %s", actorRole, role))
	}

	entry := &models.PermissionEntry{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		GranteeType:  granteeType,
		GranteeID:    granteeID,
		Role:         role,
		Kind:         models.PermissionGrant,
		CreatedBy:    actor.UserID,
	}
	if err := s.perms.Upsert(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store permission")
	}
	s.invalidate(ctx, actor.OrganizationID)
	return entry, nil
}

// Deny writes a deny entry. Only admins on the resource may deny.
func (s *PermissionService) Deny(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string, granteeType models.GranteeType, granteeID string) (*models.PermissionEntry, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if granteeType != models.GranteeUser && granteeType != models.GranteeTeam {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid grantee type")
	}

	actorRole, ok := s.EffectiveRole(ctx, actor, resourceType, resourceID)
	if !ok || !authz.CanDeny(actorRole) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may deny")
	}

	entry := &models.PermissionEntry{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		GranteeType:  granteeType,
		GranteeID:    granteeID,
		Role:         models.RoleViewer,
		Kind:         models.PermissionDeny,
		CreatedBy:    actor.UserID,
	}
	if err := s.perms.Upsert(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store deny")
	}
	s.invalidate(ctx, actor.OrganizationID)
	return entry, nil
}

// Revoke removes a permission entry. Only admins on the resource may revoke.
func (s *PermissionService) Revoke(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string, granteeType models.GranteeType, granteeID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}

	actorRole, ok := s.EffectiveRole(ctx, actor, resourceType, resourceID)
	if !ok || !authz.CanRevoke(actorRole) {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may revoke")
	}

	if err := s.perms.Delete(ctx, resourceType, resourceID, granteeType, granteeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "permission entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke permission")
	}
	s.invalidate(ctx, actor.OrganizationID)
	return nil
}

// ListPermissions returns the entries on a resource; requires admin.
func (s *PermissionService) ListPermissions(ctx context.Context, actor *models.Actor, resourceType models.ResourceType, resourceID string) ([]models.PermissionEntry, error) {
	if err := s.AssertAccess(ctx, actor, resourceType, resourceID, authz.ActionManagePermissions); err != nil {
		return nil, err
	}
	entries, err := s.perms.ListByResource(ctx, resourceType, resourceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list permissions")
	}
	return entries, nil
}

func (s *PermissionService) invalidate(ctx context.Context, orgID string) {
	if s.cache != nil {
		s.cache.InvalidateOrg(ctx, orgID)
	}
}

// RedisRoleCache caches resolved roles in Redis with a short TTL. Cache
// failures degrade to recomputation; they never affect correctness beyond
// the TTL staleness window.
type RedisRoleCache struct {
	client *redis.Client
}

// NewRedisRoleCache wraps a redis client.
func NewRedisRoleCache(client *redis.Client) *RedisRoleCache {
	return &RedisRoleCache{client: client}
}

func (c *RedisRoleCache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

func (c *RedisRoleCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	_ = c.client.Set(ctx, key, value, ttl).Err()
}

// InvalidateOrg drops every cached role in the organization.
func (c *RedisRoleCache) InvalidateOrg(ctx context.Context, orgID string) {
	pattern := fmt.Sprintf("effrole:%s:*", orgID)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		_ = c.client.Del(ctx, iter.Val()).Err()
	}
}
