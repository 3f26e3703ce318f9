package auth

import (
	"sort"
	"strings"
)

// Role identifies one of the six administrative roles.
type Role string

const (
	RoleSuperAdmin   Role = "super_admin"
	RolePerpustakaan Role = "admin_perpustakaan"
	RoleKeuangan     Role = "admin_keuangan"
	RoleAbsensi      Role = "admin_absensi"
	RoleJadwal       Role = "admin_jadwal"
	RoleAplikasi     Role = "admin_aplikasi"
)

// Resource identifies a protected functional area. Closed set, known at
// build time.
type Resource string

const (
	ResourceStudents          Resource = "students"
	ResourceTeachers          Resource = "teachers"
	ResourceClasses           Resource = "classes"
	ResourceAttendanceRecords Resource = "attendance.records"
	ResourceAttendanceReports Resource = "attendance.reports"
	ResourceFinanceInvoices   Resource = "finance.invoices"
	ResourceFinancePayments   Resource = "finance.payments"
	ResourceLibraryCatalog    Resource = "library.catalog"
	ResourceLibraryLoans      Resource = "library.loans"
	ResourceLibraryFines      Resource = "library.fines"
	ResourceScheduleClasses   Resource = "schedule.classes"
	ResourceScheduleRooms     Resource = "schedule.rooms"
	ResourceAnnouncements     Resource = "announcements"
	ResourceContentPages      Resource = "content.pages"
	ResourceAdminUsers        Resource = "admin.users"
	ResourceAdminRoles        Resource = "admin.roles"
	ResourceProfile           Resource = "profile"
)

// Action is a CRUD-shaped operation against a resource.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var allActions = []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete}

var allResources = []Resource{
	ResourceStudents,
	ResourceTeachers,
	ResourceClasses,
	ResourceAttendanceRecords,
	ResourceAttendanceReports,
	ResourceFinanceInvoices,
	ResourceFinancePayments,
	ResourceLibraryCatalog,
	ResourceLibraryLoans,
	ResourceLibraryFines,
	ResourceScheduleClasses,
	ResourceScheduleRooms,
	ResourceAnnouncements,
	ResourceContentPages,
	ResourceAdminUsers,
	ResourceAdminRoles,
	ResourceProfile,
}

// RoleDescriptor is the single canonical record for everything the UI and the
// permission model need to know about a role: identity, presentation and
// grants. Every lookup that used to live in a separate table keys off this.
type RoleDescriptor struct {
	ID          Role                  `json:"id"`
	Label       string                `json:"label"`
	Color       string                `json:"color"`
	LandingPath string                `json:"landing_path"`
	Grants      map[Resource][]Action `json:"grants,omitempty"`
}

// sharedGrants apply to every role regardless of domain.
var sharedGrants = map[Resource][]Action{
	ResourceProfile: {ActionView, ActionUpdate},
}

// roleDescriptors is the static permission table. super_admin carries no
// explicit grants: it is handled structurally by CanPerform so the table
// cannot go stale as resources are added.
var roleDescriptors = map[Role]RoleDescriptor{
	RoleSuperAdmin: {
		ID:          RoleSuperAdmin,
		Label:       "Super Admin",
		Color:       "#7c3aed",
		LandingPath: "/dashboard",
	},
	RolePerpustakaan: {
		ID:          RolePerpustakaan,
		Label:       "Admin Perpustakaan",
		Color:       "#0d9488",
		LandingPath: "/dashboard/perpustakaan",
		Grants: map[Resource][]Action{
			ResourceLibraryCatalog: {ActionView, ActionCreate, ActionUpdate, ActionDelete},
			ResourceLibraryLoans:   {ActionView, ActionCreate, ActionUpdate, ActionDelete},
			ResourceLibraryFines:   {ActionView, ActionCreate, ActionUpdate},
		},
	},
	RoleKeuangan: {
		ID:          RoleKeuangan,
		Label:       "Admin Keuangan",
		Color:       "#ca8a04",
		LandingPath: "/dashboard/keuangan",
		Grants: map[Resource][]Action{
			ResourceFinanceInvoices: {ActionView, ActionCreate, ActionUpdate, ActionDelete},
			ResourceFinancePayments: {ActionView, ActionCreate, ActionUpdate},
		},
	},
	RoleAbsensi: {
		ID:          RoleAbsensi,
		Label:       "Admin Absensi",
		Color:       "#2563eb",
		LandingPath: "/dashboard/absensi",
		Grants: map[Resource][]Action{
			ResourceAttendanceRecords: {ActionView, ActionCreate, ActionUpdate, ActionDelete},
			ResourceAttendanceReports: {ActionView},
		},
	},
	RoleJadwal: {
		ID:          RoleJadwal,
		Label:       "Admin Jadwal",
		Color:       "#dc2626",
		LandingPath: "/dashboard/jadwal",
		Grants: map[Resource][]Action{
			ResourceScheduleClasses: {ActionView, ActionCreate, ActionUpdate, ActionDelete},
			ResourceScheduleRooms:   {ActionView, ActionCreate, ActionUpdate, ActionDelete},
		},
	},
	RoleAplikasi: {
		ID:          RoleAplikasi,
		Label:       "Admin Aplikasi",
		Color:       "#16a34a",
		LandingPath: "/dashboard/aplikasi",
		Grants: map[Resource][]Action{
			ResourceAnnouncements: {ActionView, ActionCreate, ActionUpdate, ActionDelete},
			ResourceContentPages:  {ActionView, ActionCreate, ActionUpdate, ActionDelete},
		},
	},
}

// grantIndex is computed once from roleDescriptors plus sharedGrants and is
// never mutated afterwards.
var grantIndex = buildGrantIndex()

var (
	knownResources = toSet(allResources)
	knownActions   = toSet(allActions)
)

func buildGrantIndex() map[Role]map[Resource]map[Action]struct{} {
	idx := make(map[Role]map[Resource]map[Action]struct{}, len(roleDescriptors))
	for role, desc := range roleDescriptors {
		grants := make(map[Resource]map[Action]struct{}, len(desc.Grants)+len(sharedGrants))
		for resource, actions := range desc.Grants {
			grants[resource] = actionSet(actions)
		}
		for resource, actions := range sharedGrants {
			grants[resource] = actionSet(actions)
		}
		idx[role] = grants
	}
	return idx
}

func actionSet(actions []Action) map[Action]struct{} {
	set := make(map[Action]struct{}, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

func toSet[T comparable](values []T) map[T]struct{} {
	set := make(map[T]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// ParseRole normalizes a raw role value. Unknown values report false.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := roleDescriptors[role]; !ok {
		return "", false
	}
	return role, true
}

// Roles returns every known role in a stable order.
func Roles() []Role {
	out := make([]Role, 0, len(roleDescriptors))
	for role := range roleDescriptors {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Describe returns the canonical descriptor for a role.
func Describe(role Role) (RoleDescriptor, bool) {
	desc, ok := roleDescriptors[role]
	return desc, ok
}

// CanPerform reports whether role may execute action against resource. It is
// total over arbitrary inputs: unknown roles, resources or actions deny.
// super_admin short-circuits before the table lookup and is therefore allowed
// every pair of the closed enumerations.
func CanPerform(role Role, resource Resource, action Action) bool {
	if _, ok := knownResources[resource]; !ok {
		return false
	}
	if _, ok := knownActions[action]; !ok {
		return false
	}
	if role == RoleSuperAdmin {
		return true
	}
	grants, ok := grantIndex[role]
	if !ok {
		return false
	}
	actions, ok := grants[resource]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

// AccessibleResources returns every resource the role may view, sorted. It
// drives navigation-menu visibility.
func AccessibleResources(role Role) []Resource {
	var out []Resource
	for _, resource := range allResources {
		if CanPerform(role, resource, ActionView) {
			out = append(out, resource)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LandingPath returns the post-login route for a role. Unknown roles land on
// the login page.
func LandingPath(role Role) string {
	desc, ok := roleDescriptors[role]
	if !ok {
		return "/login"
	}
	return desc.LandingPath
}
