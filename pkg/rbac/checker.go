package rbac

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/adminkit/pkg/cache"
	"github.com/platinummonkey/adminkit/pkg/search"
)

// Checker handles permission checking and evaluation
type Checker interface {
	// CheckPermission checks if a user has a specific permission
	CheckPermission(ctx context.Context, check PermissionCheck) (*PermissionCheckResult, error)
}

// PolicyChecker evaluates permission checks against a Policy. It also
// serves as the search engine's authorization collaborator.
type PolicyChecker struct {
	mu           sync.RWMutex
	policy       *Policy
	cache        *cache.MemoryCache[string, PermissionCheckResult]
	cacheEnabled bool
	log          *logrus.Logger
}

var (
	_ Checker           = (*PolicyChecker)(nil)
	_ search.Authorizer = (*PolicyChecker)(nil)
)

// NewPolicyChecker creates a new permission checker. A zero cacheTTL
// disables result caching.
func NewPolicyChecker(policy *Policy, cacheTTL time.Duration, log *logrus.Logger) *PolicyChecker {
	if log == nil {
		log = logrus.New()
	}
	return &PolicyChecker{
		policy:       policy,
		cache:        cache.NewMemoryCache[string, PermissionCheckResult](1024, cacheTTL),
		cacheEnabled: cacheTTL > 0,
		log:          log,
	}
}

// SetPolicy swaps the evaluated policy and drops cached results
func (pc *PolicyChecker) SetPolicy(policy *Policy) {
	pc.mu.Lock()
	pc.policy = policy
	pc.mu.Unlock()
	pc.cache.Purge()
}

// CheckPermission checks if a user has a specific permission
func (pc *PolicyChecker) CheckPermission(ctx context.Context, check PermissionCheck) (*PermissionCheckResult, error) {
	if check.UserID == "" {
		return &PermissionCheckResult{Reason: "anonymous caller", CheckedAt: time.Now()}, nil
	}

	key := check.cacheKey()
	if pc.cacheEnabled {
		if cached, ok := pc.cache.Get(ctx, key); ok {
			cached.Reason = "cached result"
			return &cached, nil
		}
	}

	var matchedRoles []string
	for _, role := range pc.UserRoles(check.UserID, check.Space) {
		if roleHasPermission(role, check.Permission) {
			matchedRoles = append(matchedRoles, role.Name)
		}
	}
	sort.Strings(matchedRoles)

	result := PermissionCheckResult{
		Allowed:      len(matchedRoles) > 0,
		MatchedRoles: matchedRoles,
		CheckedAt:    time.Now(),
	}
	if result.Allowed {
		result.Reason = fmt.Sprintf("granted by roles: %v", matchedRoles)
	} else {
		result.Reason = "no matching role found"
	}

	if pc.cacheEnabled {
		pc.cache.Set(ctx, key, result)
	}
	return &result, nil
}

// UserRoles returns every role bound to the user in the space, with
// inherited roles resolved
func (pc *PolicyChecker) UserRoles(userID, space string) []Role {
	pc.mu.RLock()
	policy := pc.policy
	pc.mu.RUnlock()
	if policy == nil {
		return nil
	}

	seen := map[string]bool{}
	var roles []Role
	for _, name := range policy.boundRoles(userID, space) {
		for _, role := range policy.resolve(name) {
			if !seen[role.Name] {
				seen[role.Name] = true
				roles = append(roles, role)
			}
		}
	}
	return roles
}

// EffectivePermissions returns every permission the user holds in the space
func (pc *PolicyChecker) EffectivePermissions(userID, space string) []Permission {
	permMap := make(map[string]Permission)
	for _, role := range pc.UserRoles(userID, space) {
		for _, perm := range role.Permissions {
			permMap[perm.String()] = perm
		}
	}
	permissions := make([]Permission, 0, len(permMap))
	for _, perm := range permMap {
		permissions = append(permissions, perm)
	}
	sort.Slice(permissions, func(i, j int) bool { return permissions[i].String() < permissions[j].String() })
	return permissions
}

// IsAuthorized maps a search to search:<query>:<method> and checks it
func (pc *PolicyChecker) IsAuthorized(ctx context.Context, req search.AuthRequest) (bool, error) {
	result, err := pc.CheckPermission(ctx, PermissionCheck{
		UserID: req.UserID,
		Space:  req.Space,
		Permission: Permission{
			Resource: ResourceSearch,
			Target:   req.Query,
			Action:   Action(req.Method),
		},
	})
	if err != nil {
		return false, err
	}
	if !result.Allowed {
		pc.log.WithFields(logrus.Fields{
			"user_id": req.UserID,
			"space":   req.Space,
			"query":   req.Query,
			"method":  req.Method,
		}).Debug("search denied")
	}
	return result.Allowed, nil
}

func roleHasPermission(role Role, permission Permission) bool {
	for _, p := range role.Permissions {
		if p.Grants(permission) {
			return true
		}
	}
	return false
}

// AllowAll grants every check. It is used when no policy is configured.
type AllowAll struct{}

// CheckPermission always allows
func (AllowAll) CheckPermission(ctx context.Context, check PermissionCheck) (*PermissionCheckResult, error) {
	return &PermissionCheckResult{Allowed: true, Reason: "authorization disabled", CheckedAt: time.Now()}, nil
}

// IsAuthorized always allows
func (AllowAll) IsAuthorized(ctx context.Context, req search.AuthRequest) (bool, error) {
	return true, nil
}
