package authz

// Ranked is implemented by every scope-specific role enum. A higher rank
// means more privilege within that scope. Ranks are only meaningful between
// values of the same type; an org role is never comparable to a group role.
type Ranked interface {
	Rank() int
}

// HasSufficientRole reports whether held meets or exceeds required on the
// scope's total order. The comparator is written once and instantiated per
// scope so the three role vocabularies stay type-distinct.
func HasSufficientRole[R Ranked](held, required R) bool {
	return held.Rank() >= required.Rank()
}

// SystemRole is a platform-wide capability grant independent of any single
// organization. A user may hold several system roles at once.
type SystemRole string

const (
	SystemRoleSuperAdmin SystemRole = "super_admin"
	SystemRoleOrgAdmin   SystemRole = "org_admin"
	SystemRoleOrgManager SystemRole = "org_manager"
	SystemRoleSupport    SystemRole = "support"
	SystemRoleViewer     SystemRole = "viewer"
)

// systemRolePriority orders system roles by org-impact: SuperAdmin highest,
// then the org-scoped admin roles, then the global readers.
var systemRolePriority = map[SystemRole]int{
	SystemRoleSuperAdmin: 50,
	SystemRoleOrgAdmin:   40,
	SystemRoleOrgManager: 30,
	SystemRoleSupport:    20,
	SystemRoleViewer:     10,
}

// Valid reports whether r is a known system role.
func (r SystemRole) Valid() bool {
	_, ok := systemRolePriority[r]
	return ok
}

// Priority returns the org-impact priority of r, or -1 for unknown roles.
func (r SystemRole) Priority() int {
	if p, ok := systemRolePriority[r]; ok {
		return p
	}
	return -1
}

// Rank implements Ranked.
func (r SystemRole) Rank() int {
	return r.Priority()
}

// RequiresOrgAssignment reports whether the role only grants access to
// organizations it has been explicitly assigned to. SuperAdmin, Support and
// Viewer are implicitly global and never carry assignments.
func (r SystemRole) RequiresOrgAssignment() bool {
	return r == SystemRoleOrgAdmin || r == SystemRoleOrgManager
}

// GrantsGlobalRead reports whether the role grants read access to every
// organization without an assignment.
func (r SystemRole) GrantsGlobalRead() bool {
	return r == SystemRoleSuperAdmin || r == SystemRoleSupport || r == SystemRoleViewer
}

// SystemRoles returns all known system roles in descending priority order.
func SystemRoles() []SystemRole {
	return []SystemRole{
		SystemRoleSuperAdmin,
		SystemRoleOrgAdmin,
		SystemRoleOrgManager,
		SystemRoleSupport,
		SystemRoleViewer,
	}
}

// OrgRole is a per-organization membership role, distinct from system roles.
type OrgRole string

const (
	OrgRoleOwner  OrgRole = "owner"
	OrgRoleAdmin  OrgRole = "admin"
	OrgRoleMember OrgRole = "member"
	OrgRoleViewer OrgRole = "viewer"
)

var orgRoleRank = map[OrgRole]int{
	OrgRoleOwner:  40,
	OrgRoleAdmin:  30,
	OrgRoleMember: 20,
	OrgRoleViewer: 10,
}

// Rank implements Ranked.
func (r OrgRole) Rank() int {
	if rank, ok := orgRoleRank[r]; ok {
		return rank
	}
	return -1
}

// Valid reports whether r is a known org role.
func (r OrgRole) Valid() bool {
	_, ok := orgRoleRank[r]
	return ok
}

// OrgRoles returns all org membership roles in descending rank order.
func OrgRoles() []OrgRole {
	return []OrgRole{OrgRoleOwner, OrgRoleAdmin, OrgRoleMember, OrgRoleViewer}
}

// GroupRole is a role within the collaborative-group feature. It shares the
// Owner > Admin > Member > Viewer total order with OrgRole but is evaluated
// independently; a user's group role carries no relationship to their org
// role.
type GroupRole string

const (
	GroupRoleOwner  GroupRole = "owner"
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
	GroupRoleViewer GroupRole = "viewer"
)

var groupRoleRank = map[GroupRole]int{
	GroupRoleOwner:  40,
	GroupRoleAdmin:  30,
	GroupRoleMember: 20,
	GroupRoleViewer: 10,
}

// Rank implements Ranked.
func (r GroupRole) Rank() int {
	if rank, ok := groupRoleRank[r]; ok {
		return rank
	}
	return -1
}

// Valid reports whether r is a known group role.
func (r GroupRole) Valid() bool {
	_, ok := groupRoleRank[r]
	return ok
}

// GroupRoles returns all group roles in descending rank order.
func GroupRoles() []GroupRole {
	return []GroupRole{GroupRoleOwner, GroupRoleAdmin, GroupRoleMember, GroupRoleViewer}
}

// ReservedRoleNames are role names that can never be used for an
// organization-defined custom role. They cover the seeded membership roles
// plus platform-reserved tokens.
var ReservedRoleNames = []string{
	"owner",
	"admin",
	"member",
	"viewer",
	"superadmin",
	"super_admin",
	"system",
}

// IsSystemRoleName reports whether name collides with a reserved system-role
// name. The comparison is exact; callers normalize case before calling.
func IsSystemRoleName(name string) bool {
	for _, reserved := range ReservedRoleNames {
		if name == reserved {
			return true
		}
	}
	return false
}
