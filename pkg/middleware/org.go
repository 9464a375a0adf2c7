package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/fleetgrid/fleetgrid/pkg/contextkeys"
	"github.com/fleetgrid/fleetgrid/pkg/httputil"
	"github.com/fleetgrid/fleetgrid/pkg/orgs"
)

// OrgDirectory resolves organizations. Implemented by orgs.PostgresService.
type OrgDirectory interface {
	GetOrganization(ctx context.Context, id int64) (*orgs.Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*orgs.Organization, error)
}

// OrgContextMiddleware resolves the {org_id} or {org_slug} route variable
// into the request context. Routes without either variable pass through.
func OrgContextMiddleware(directory OrgDirectory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			vars := mux.Vars(r)

			if orgIDStr, ok := vars["org_id"]; ok {
				orgID, err := strconv.ParseInt(orgIDStr, 10, 64)
				if err != nil {
					httputil.WriteValidationError(w, "invalid organization ID")
					return
				}
				serveWithOrg(w, r, next, func() (*orgs.Organization, error) {
					return directory.GetOrganization(r.Context(), orgID)
				})
				return
			}

			if orgSlug, ok := vars["org_slug"]; ok {
				serveWithOrg(w, r, next, func() (*orgs.Organization, error) {
					return directory.GetOrganizationBySlug(r.Context(), orgSlug)
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func serveWithOrg(w http.ResponseWriter, r *http.Request, next http.Handler, lookup func() (*orgs.Organization, error)) {
	org, err := lookup()
	if err != nil {
		httputil.WriteNotFoundError(w, "organization not found")
		return
	}
	ctx := contextkeys.WithOrg(r.Context(), org)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// GetOrganization extracts the resolved organization from the request.
func GetOrganization(r *http.Request) *orgs.Organization {
	org, ok := r.Context().Value(contextkeys.OrgKey).(*orgs.Organization)
	if !ok {
		return nil
	}
	return org
}

// GroupIDFromRequest parses the {group_id} route variable.
func GroupIDFromRequest(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["group_id"], 10, 64)
}
