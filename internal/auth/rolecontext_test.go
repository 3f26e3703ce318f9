package auth

import (
	"errors"
	"sync"
	"testing"
)

func TestNewRoleContextRequiresAuthenticatedState(t *testing.T) {
	cases := []AuthState{
		{Status: StatusUnauthenticated},
		{Status: StatusPendingOTP},
		{Status: StatusAuthenticated}, // authenticated without a user is malformed
	}
	for _, state := range cases {
		if _, err := NewRoleContext(state); !errors.Is(err, ErrNotAuthenticated) {
			t.Fatalf("state %+v: expected ErrNotAuthenticated, got %v", state, err)
		}
	}

	rc, err := NewRoleContext(AuthState{
		Status: StatusAuthenticated,
		User:   &User{ID: "u1", Role: RolePerpustakaan},
	})
	if err != nil {
		t.Fatalf("NewRoleContext: %v", err)
	}
	if rc.Role() != RolePerpustakaan {
		t.Fatalf("Role() = %s", rc.Role())
	}
}

func TestRoleContextForUnknownRole(t *testing.T) {
	if _, err := RoleContextFor(Role("janitor")); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestRoleContextMatchesCanPerform(t *testing.T) {
	rc, err := RoleContextFor(RoleKeuangan)
	if err != nil {
		t.Fatalf("RoleContextFor: %v", err)
	}
	checks := []struct {
		resource Resource
		action   Action
	}{
		{ResourceFinanceInvoices, ActionView},
		{ResourceFinanceInvoices, ActionDelete},
		{ResourceLibraryCatalog, ActionView},
		{ResourceProfile, ActionUpdate},
		{ResourceAdminUsers, ActionCreate},
	}
	for _, c := range checks {
		want := CanPerform(RoleKeuangan, c.resource, c.action)
		// Ask twice so the second answer comes from the memo.
		if got := rc.CanAccess(c.resource, c.action); got != want {
			t.Fatalf("CanAccess(%s, %s) = %v, want %v", c.resource, c.action, got, want)
		}
		if got := rc.CanAccess(c.resource, c.action); got != want {
			t.Fatalf("memoized CanAccess(%s, %s) = %v, want %v", c.resource, c.action, got, want)
		}
	}
}

func TestRoleContextConcurrentAccess(t *testing.T) {
	rc, err := RoleContextFor(RoleSuperAdmin)
	if err != nil {
		t.Fatalf("RoleContextFor: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, res := range []Resource{ResourceStudents, ResourceTeachers, ResourceAdminRoles} {
				for _, act := range []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete} {
					if !rc.CanAccess(res, act) {
						t.Errorf("super_admin denied %s %s", act, res)
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestRoleContextDescriptorAccessors(t *testing.T) {
	rc, err := RoleContextFor(RoleKeuangan)
	if err != nil {
		t.Fatalf("RoleContextFor: %v", err)
	}
	desc, _ := Describe(RoleKeuangan)
	if rc.Label() != desc.Label || rc.Color() != desc.Color {
		t.Fatalf("accessors diverge from descriptor: %q/%q vs %+v", rc.Label(), rc.Color(), desc)
	}
	if rc.LandingPath() != "/dashboard/keuangan" {
		t.Fatalf("LandingPath() = %q", rc.LandingPath())
	}
}
