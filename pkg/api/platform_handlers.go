package api

import (
	"net/http"

	"github.com/fleetgrid/fleetgrid/pkg/authz"
	"github.com/fleetgrid/fleetgrid/pkg/httputil"
	"github.com/fleetgrid/fleetgrid/pkg/platform"
)

// CreateUserRequest is the request body for creating a user account.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	IsBot    bool   `json:"is_bot,omitempty"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := s.users.CreateUser(r.Context(), req.Username, req.Email, req.FullName, req.IsBot)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, user)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	user, err := s.users.GetUser(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

func (s *Server) deactivateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := s.users.DeactivateUser(r.Context(), userID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) grantSystemRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	var req platform.GrantRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	grant, err := s.platform.AddRole(r.Context(), userID, req.Role, caller.ID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, grant)
}

func (s *Server) revokeSystemRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}
	role, ok := httputil.ParsePathStringOrError(w, r, "role")
	if !ok {
		return
	}

	if err := s.platform.RemoveRole(r.Context(), userID, authz.SystemRole(role)); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) listSystemRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	roles, err := s.platform.GetUserRoles(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if roles == nil {
		roles = []authz.SystemRole{}
	}
	httputil.WriteSuccess(w, roles)
}

func (s *Server) listGrants(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	grants, err := s.platform.ListGrants(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if grants == nil {
		grants = []platform.SystemRoleGrant{}
	}
	httputil.WriteSuccess(w, grants)
}

func (s *Server) assignOrg(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	var req platform.AssignOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	assignment, err := s.platform.AssignOrg(r.Context(), userID, req.OrganizationID, caller.ID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, assignment)
}

func (s *Server) unassignOrg(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
	if !ok {
		return
	}

	if err := s.platform.UnassignOrg(r.Context(), userID, orgID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) listAssignedOrgs(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	orgIDs, err := s.platform.GetAssignedOrgs(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if orgIDs == nil {
		orgIDs = []int64{}
	}
	httputil.WriteSuccess(w, orgIDs)
}
