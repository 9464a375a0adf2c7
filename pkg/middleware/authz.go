package middleware

import (
	"context"
	"net/http"

	"github.com/fleetgrid/fleetgrid/pkg/audit"
	"github.com/fleetgrid/fleetgrid/pkg/authz"
	"github.com/fleetgrid/fleetgrid/pkg/groups"
	"github.com/fleetgrid/fleetgrid/pkg/httputil"
	"github.com/fleetgrid/fleetgrid/pkg/observability"
)

// SystemAuthority answers platform-scope authorization questions. Implemented
// by platform.Service.
type SystemAuthority interface {
	HighestRole(ctx context.Context, userID int64) (authz.SystemRole, bool, error)
	HasOrgAccess(ctx context.Context, userID, orgID int64) (bool, error)
	CanManageOrg(ctx context.Context, userID, orgID int64) (bool, error)
}

// GroupAuthority resolves group memberships. Implemented by groups.Service.
type GroupAuthority interface {
	GetMembership(ctx context.Context, groupID, userID int64) (*groups.GroupMembership, error)
}

// Guards holds the shared dependencies of the scope guard middlewares.
// audit and metrics may be nil.
type Guards struct {
	audit   audit.Logger
	metrics *observability.Metrics
}

// NewGuards creates the guard factory.
func NewGuards(auditLogger audit.Logger, metrics *observability.Metrics) *Guards {
	if auditLogger == nil {
		auditLogger = audit.NopLogger()
	}
	return &Guards{audit: auditLogger, metrics: metrics}
}

func (g *Guards) decision(scope, decision string) {
	if g.metrics != nil {
		g.metrics.AuthzDecisionsTotal.WithLabelValues(scope, decision).Inc()
	}
}

func (g *Guards) denied(r *http.Request, scope string, userID int64, orgID, groupID *int64) {
	g.decision(scope, "deny")
	g.audit.Record(r.Context(), &audit.Event{
		EventType:      audit.EventTypeAccessDenied,
		Status:         audit.EventStatusDenied,
		ActorID:        &userID,
		OrganizationID: orgID,
		GroupID:        groupID,
		IPAddress:      getClientIP(r),
		Message:        r.Method + " " + r.URL.Path,
	})
}

// RequireSystemRole admits only users whose highest system role meets the
// required one.
func (g *Guards) RequireSystemRole(authority SystemAuthority, required authz.SystemRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil || authCtx.User == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			held, found, err := authority.HighestRole(r.Context(), authCtx.User.ID)
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}
			if !found || !authz.HasSufficientRole(held, required) {
				g.denied(r, "system", authCtx.User.ID, nil, nil)
				httputil.WriteForbidden(w, "insufficient system role")
				return
			}

			g.decision("system", "allow")
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOrgAccess admits users who may read the organization in the request
// context: globally-readable system roles, or scoped roles assigned to it.
func (g *Guards) RequireOrgAccess(authority SystemAuthority) func(http.Handler) http.Handler {
	return g.requireOrg(authority, "org_read", func(ctx context.Context, userID, orgID int64) (bool, error) {
		return authority.HasOrgAccess(ctx, userID, orgID)
	})
}

// RequireOrgManage admits users who may administer the organization in the
// request context.
func (g *Guards) RequireOrgManage(authority SystemAuthority) func(http.Handler) http.Handler {
	return g.requireOrg(authority, "org_manage", func(ctx context.Context, userID, orgID int64) (bool, error) {
		return authority.CanManageOrg(ctx, userID, orgID)
	})
}

func (g *Guards) requireOrg(authority SystemAuthority, scope string, check func(ctx context.Context, userID, orgID int64) (bool, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil || authCtx.User == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			org := GetOrganization(r)
			if org == nil {
				httputil.WriteNotFoundError(w, "organization not found")
				return
			}

			allowed, err := check(r.Context(), authCtx.User.ID, org.ID)
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}
			if !allowed {
				g.denied(r, scope, authCtx.User.ID, &org.ID, nil)
				httputil.WriteForbidden(w, "you do not have access to this organization")
				return
			}

			g.decision(scope, "allow")
			next.ServeHTTP(w, r)
		})
	}
}

// RequireGroupRole admits group members whose role meets the required one.
// Non-members get the same NotFound as a missing group; group membership is
// not disclosed to outsiders.
func (g *Guards) RequireGroupRole(authority GroupAuthority, required authz.GroupRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil || authCtx.User == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			groupID, err := GroupIDFromRequest(r)
			if err != nil {
				httputil.WriteValidationError(w, "invalid group ID")
				return
			}

			membership, err := authority.GetMembership(r.Context(), groupID, authCtx.User.ID)
			if err != nil {
				if authz.IsNotFound(err) {
					g.denied(r, "group", authCtx.User.ID, nil, &groupID)
					httputil.WriteNotFoundError(w, err.Error())
					return
				}
				httputil.WriteInternalError(w, err)
				return
			}

			if !authz.HasSufficientRole(membership.Role, required) {
				g.denied(r, "group", authCtx.User.ID, nil, &groupID)
				httputil.WriteForbidden(w, "insufficient group role")
				return
			}

			g.decision("group", "allow")
			next.ServeHTTP(w, r)
		})
	}
}
