package auth

import (
	"fmt"
	"sync"
)

// RoleContext answers "can I do X?" for the currently authenticated role
// without re-threading the role through every caller. Lookups are memoized;
// the underlying table is static so entries never invalidate.
//
// Constructing one outside an authenticated context is a wiring bug and
// fails loudly with ErrNotAuthenticated.
type RoleContext struct {
	role Role
	desc RoleDescriptor

	mu   sync.RWMutex
	memo map[permKey]bool
}

type permKey struct {
	resource Resource
	action   Action
}

// NewRoleContext builds the facade from an authenticated state.
func NewRoleContext(state AuthState) (*RoleContext, error) {
	if state.Status != StatusAuthenticated || state.User == nil {
		return nil, fmt.Errorf("%w: role context requires an authenticated user", ErrNotAuthenticated)
	}
	return RoleContextFor(state.User.Role)
}

// RoleContextFor builds the facade for a known role. Unknown roles are a
// configuration error, not a permission denial.
func RoleContextFor(role Role) (*RoleContext, error) {
	desc, ok := Describe(role)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrNotAuthenticated, role)
	}
	return &RoleContext{
		role: role,
		desc: desc,
		memo: make(map[permKey]bool),
	}, nil
}

// CanAccess reports whether the wrapped role may perform action on resource.
func (rc *RoleContext) CanAccess(resource Resource, action Action) bool {
	key := permKey{resource: resource, action: action}

	rc.mu.RLock()
	allowed, ok := rc.memo[key]
	rc.mu.RUnlock()
	if ok {
		return allowed
	}

	allowed = CanPerform(rc.role, resource, action)
	rc.mu.Lock()
	rc.memo[key] = allowed
	rc.mu.Unlock()
	return allowed
}

// Role returns the wrapped role.
func (rc *RoleContext) Role() Role { return rc.role }

// Label returns the role's display name.
func (rc *RoleContext) Label() string { return rc.desc.Label }

// Color returns the role's display color.
func (rc *RoleContext) Color() string { return rc.desc.Color }

// LandingPath returns the role's default post-login route.
func (rc *RoleContext) LandingPath() string { return rc.desc.LandingPath }
