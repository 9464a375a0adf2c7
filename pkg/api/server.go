package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fleetgrid/fleetgrid/pkg/audit"
	"github.com/fleetgrid/fleetgrid/pkg/auth"
	"github.com/fleetgrid/fleetgrid/pkg/authz"
	"github.com/fleetgrid/fleetgrid/pkg/groups"
	"github.com/fleetgrid/fleetgrid/pkg/middleware"
	"github.com/fleetgrid/fleetgrid/pkg/observability"
	"github.com/fleetgrid/fleetgrid/pkg/orgs"
	"github.com/fleetgrid/fleetgrid/pkg/platform"
)

// UserService provides user account operations. Implemented by auth.UserStore.
type UserService interface {
	CreateUser(ctx context.Context, username, email, fullName string, isBot bool) (*auth.User, error)
	GetUser(ctx context.Context, userID int64) (*auth.User, error)
	GetUserByUsername(ctx context.Context, username string) (*auth.User, error)
	DeactivateUser(ctx context.Context, userID int64) error
}

// TokenService provides API token operations. Implemented by auth.TokenManager.
type TokenService interface {
	CreateToken(ctx context.Context, userID int64, name, description string, expiresAt *time.Time) (*auth.APIToken, string, error)
	ListUserTokens(ctx context.Context, userID int64) ([]*auth.APIToken, error)
	RevokeToken(ctx context.Context, tokenID int64, revokedBy int64, reason string) error
}

// PlatformService provides system role and org assignment operations.
// Implemented by platform.Service.
type PlatformService interface {
	middleware.SystemAuthority

	AddRole(ctx context.Context, userID int64, role authz.SystemRole, grantedBy int64) (*platform.SystemRoleGrant, error)
	RemoveRole(ctx context.Context, userID int64, role authz.SystemRole) error
	GetUserRoles(ctx context.Context, userID int64) ([]authz.SystemRole, error)
	ListGrants(ctx context.Context, userID int64) ([]platform.SystemRoleGrant, error)
	AssignOrg(ctx context.Context, userID, orgID int64, assignedBy int64) (*platform.OrgAssignment, error)
	UnassignOrg(ctx context.Context, userID, orgID int64) error
	GetAssignedOrgs(ctx context.Context, userID int64) ([]int64, error)
}

// OrgService provides organization, membership, and custom role operations.
// Implemented by orgs.PostgresService.
type OrgService interface {
	middleware.OrgDirectory

	CreateOrganization(ctx context.Context, org *orgs.Organization, creatorID int64) error
	DeleteOrganization(ctx context.Context, id int64) error

	GetMember(ctx context.Context, orgID, userID int64) (*orgs.OrgMembership, error)
	ListMembers(ctx context.Context, orgID int64) ([]*orgs.OrgMembership, error)
	AddMember(ctx context.Context, callerID, orgID, userID int64, role authz.OrgRole, permissions []string) (*orgs.OrgMembership, error)
	UpdateMember(ctx context.Context, callerID, orgID, userID int64, newRole *authz.OrgRole, newPermissions []string) (*orgs.OrgMembership, error)
	RemoveMember(ctx context.Context, callerID, orgID, userID int64) error

	CreateRole(ctx context.Context, callerID, orgID int64, req *orgs.CreateRoleRequest) (*orgs.Role, error)
	DeleteRole(ctx context.Context, callerID, orgID, roleID int64) error
	GetRole(ctx context.Context, orgID, roleID int64) (*orgs.Role, error)
	ListRoles(ctx context.Context, orgID int64) ([]*orgs.Role, error)
	ListSystemRoles(ctx context.Context, orgID int64) ([]*orgs.Role, error)
	ListCustomRoles(ctx context.Context, orgID int64) ([]*orgs.Role, error)
}

// GroupService provides group and group membership operations. Implemented by
// groups.Service.
type GroupService interface {
	middleware.GroupAuthority

	CreateGroup(ctx context.Context, name string, ownerID int64) (*groups.Group, error)
	GetGroup(ctx context.Context, groupID int64) (*groups.Group, error)
	DeleteGroup(ctx context.Context, groupID int64) error
	AddMember(ctx context.Context, groupID, userID int64, role authz.GroupRole) (*groups.GroupMembership, error)
	RemoveMember(ctx context.Context, groupID, userID int64) error
	ListMembers(ctx context.Context, groupID int64) ([]*groups.GroupMembership, error)
}

// Deps bundles everything the server needs. Audit, Metrics, and Logger may be
// nil; Auth must not be.
type Deps struct {
	Users    UserService
	Tokens   TokenService
	Platform PlatformService
	Orgs     OrgService
	Groups   GroupService

	Auth    *middleware.AuthMiddleware
	Audit   audit.Logger
	Metrics *observability.Metrics
	Logger  *observability.Logger

	// RateLimit, when set, runs after authentication so limits key on the
	// authenticated user rather than the client IP.
	RateLimit func(http.Handler) http.Handler
}

// Server is the HTTP admin surface of the authorization engine.
type Server struct {
	router *mux.Router
	logger *observability.Logger
	audit  audit.Logger
	guards *middleware.Guards

	users    UserService
	tokens   TokenService
	platform PlatformService
	orgs     OrgService
	groups   GroupService
}

// NewServer creates the API server and registers all routes.
func NewServer(deps Deps) *Server {
	auditLogger := deps.Audit
	if auditLogger == nil {
		auditLogger = audit.NopLogger()
	}
	logger := deps.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		audit:    auditLogger,
		guards:   middleware.NewGuards(auditLogger, deps.Metrics),
		users:    deps.Users,
		tokens:   deps.Tokens,
		platform: deps.Platform,
		orgs:     deps.Orgs,
		groups:   deps.Groups,
	}
	s.registerRoutes(deps.Auth, deps.RateLimit)
	return s
}

// Router exposes the configured router for wrapping in cmd binaries.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes(authMW *middleware.AuthMiddleware, rateLimit func(http.Handler) http.Handler) {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW.Handler)
	if rateLimit != nil {
		api.Use(rateLimit)
	}

	// Self-service
	api.HandleFunc("/me", s.getCurrentUser).Methods("GET")
	api.HandleFunc("/me/tokens", s.createToken).Methods("POST")
	api.HandleFunc("/me/tokens", s.listTokens).Methods("GET")
	api.HandleFunc("/me/tokens/{token_id}", s.revokeToken).Methods("DELETE")

	// Platform scope: user administration and system role grants.
	// Reads need any system role; writes are SuperAdmin only.
	staffRead := api.PathPrefix("/platform").Subrouter()
	staffRead.Use(s.guards.RequireSystemRole(s.platform, authz.SystemRoleViewer))
	staffRead.HandleFunc("/users/{user_id}/roles", s.listSystemRoles).Methods("GET")
	staffRead.HandleFunc("/users/{user_id}/grants", s.listGrants).Methods("GET")
	staffRead.HandleFunc("/users/{user_id}/orgs", s.listAssignedOrgs).Methods("GET")

	staffWrite := api.PathPrefix("/platform").Subrouter()
	staffWrite.Use(s.guards.RequireSystemRole(s.platform, authz.SystemRoleSuperAdmin))
	staffWrite.HandleFunc("/users", s.createUser).Methods("POST")
	staffWrite.HandleFunc("/users/{user_id}", s.getUser).Methods("GET")
	staffWrite.HandleFunc("/users/{user_id}", s.deactivateUser).Methods("DELETE")
	staffWrite.HandleFunc("/users/{user_id}/roles", s.grantSystemRole).Methods("POST")
	staffWrite.HandleFunc("/users/{user_id}/roles/{role}", s.revokeSystemRole).Methods("DELETE")
	staffWrite.HandleFunc("/users/{user_id}/orgs", s.assignOrg).Methods("POST")
	staffWrite.HandleFunc("/users/{user_id}/orgs/{org_id}", s.unassignOrg).Methods("DELETE")

	// Staff access to organizations, gated by the platform-scope org guards.
	staffOrgs := api.PathPrefix("/platform/orgs").Subrouter()
	staffOrgs.Use(middleware.OrgContextMiddleware(s.orgs))
	staffOrgs.Handle("/{org_id}", s.guards.RequireOrgAccess(s.platform)(
		http.HandlerFunc(s.getOrganizationFromContext))).Methods("GET")
	staffOrgs.Handle("/{org_id}/members", s.guards.RequireOrgAccess(s.platform)(
		http.HandlerFunc(s.listOrgMembersUnchecked))).Methods("GET")
	staffOrgs.Handle("/{org_id}", s.guards.RequireOrgManage(s.platform)(
		http.HandlerFunc(s.deleteOrganizationFromContext))).Methods("DELETE")

	// Member-facing organization routes. Mutations are authorized inside the
	// org service against the caller's membership.
	api.HandleFunc("/orgs", s.createOrganization).Methods("POST")
	orgScoped := api.PathPrefix("/orgs").Subrouter()
	orgScoped.Use(middleware.OrgContextMiddleware(s.orgs))
	orgScoped.HandleFunc("/{org_id}", s.getOrganization).Methods("GET")
	orgScoped.HandleFunc("/{org_id}", s.deleteOrganization).Methods("DELETE")
	orgScoped.HandleFunc("/{org_id}/members", s.listOrgMembers).Methods("GET")
	orgScoped.HandleFunc("/{org_id}/members", s.addOrgMember).Methods("POST")
	orgScoped.HandleFunc("/{org_id}/members/{user_id}", s.updateOrgMember).Methods("PUT")
	orgScoped.HandleFunc("/{org_id}/members/{user_id}", s.removeOrgMember).Methods("DELETE")
	orgScoped.HandleFunc("/{org_id}/roles", s.listOrgRoles).Methods("GET")
	orgScoped.HandleFunc("/{org_id}/roles", s.createOrgRole).Methods("POST")
	orgScoped.HandleFunc("/{org_id}/roles/{role_id}", s.getOrgRole).Methods("GET")
	orgScoped.HandleFunc("/{org_id}/roles/{role_id}", s.deleteOrgRole).Methods("DELETE")

	// Group routes, gated by the group-scope guard. Non-members cannot tell a
	// group they are excluded from apart from one that does not exist.
	api.HandleFunc("/groups", s.createGroup).Methods("POST")
	g := func(required authz.GroupRole, h http.HandlerFunc) http.Handler {
		return s.guards.RequireGroupRole(s.groups, required)(h)
	}
	api.Handle("/groups/{group_id}", g(authz.GroupRoleViewer, s.getGroup)).Methods("GET")
	api.Handle("/groups/{group_id}", g(authz.GroupRoleOwner, s.deleteGroup)).Methods("DELETE")
	api.Handle("/groups/{group_id}/members", g(authz.GroupRoleMember, s.listGroupMembers)).Methods("GET")
	api.Handle("/groups/{group_id}/members", g(authz.GroupRoleAdmin, s.addGroupMember)).Methods("POST")
	api.Handle("/groups/{group_id}/members/{user_id}", g(authz.GroupRoleAdmin, s.removeGroupMember)).Methods("DELETE")
	api.Handle("/groups/{group_id}/leave", g(authz.GroupRoleViewer, s.leaveGroup)).Methods("POST")
}
