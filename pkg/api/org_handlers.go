package api

import (
	"net/http"

	"github.com/fleetgrid/fleetgrid/pkg/authz"
	"github.com/fleetgrid/fleetgrid/pkg/httputil"
	"github.com/fleetgrid/fleetgrid/pkg/middleware"
	"github.com/fleetgrid/fleetgrid/pkg/orgs"
)

func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req orgs.CreateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	org := &orgs.Organization{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		QuotaTier:   req.QuotaTier,
		OwnerID:     &user.ID,
	}
	if err := s.orgs.CreateOrganization(r.Context(), org, user.ID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, org)
}

// requireOrgReader admits org members of at least minRole, and platform staff
// with read access to the org. The org must already be resolved into the
// request context.
func (s *Server) requireOrgReader(w http.ResponseWriter, r *http.Request, minRole authz.OrgRole) (*orgs.Organization, bool) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return nil, false
	}
	org := middleware.GetOrganization(r)
	if org == nil {
		httputil.WriteNotFoundError(w, "organization not found")
		return nil, false
	}

	member, err := s.orgs.GetMember(r.Context(), org.ID, user.ID)
	if err == nil && authz.HasSufficientRole(member.Role, minRole) {
		return org, true
	}
	if err != nil && !authz.IsNotFound(err) {
		httputil.WriteInternalError(w, err)
		return nil, false
	}

	staff, err := s.platform.HasOrgAccess(r.Context(), user.ID, org.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return nil, false
	}
	if !staff {
		httputil.WriteForbidden(w, "you do not have access to this organization")
		return nil, false
	}
	return org, true
}

func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	org, ok := s.requireOrgReader(w, r, authz.OrgRoleViewer)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, org)
}

func (s *Server) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	org := middleware.GetOrganization(r)
	if org == nil {
		httputil.WriteNotFoundError(w, "organization not found")
		return
	}

	member, err := s.orgs.GetMember(r.Context(), org.ID, user.ID)
	if err != nil && !authz.IsNotFound(err) {
		httputil.WriteInternalError(w, err)
		return
	}
	if err != nil || member.Role != authz.OrgRoleOwner {
		httputil.WriteForbidden(w, "only an owner can delete the organization")
		return
	}

	if err := s.orgs.DeleteOrganization(r.Context(), org.ID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listOrgMembers requires org role Admin or better, or platform read access.
func (s *Server) listOrgMembers(w http.ResponseWriter, r *http.Request) {
	org, ok := s.requireOrgReader(w, r, authz.OrgRoleAdmin)
	if !ok {
		return
	}
	s.writeMemberList(w, r, org.ID)
}

func (s *Server) writeMemberList(w http.ResponseWriter, r *http.Request, orgID int64) {
	members, err := s.orgs.ListMembers(r.Context(), orgID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if members == nil {
		members = []*orgs.OrgMembership{}
	}
	httputil.WriteSuccess(w, members)
}

func (s *Server) addOrgMember(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	org := middleware.GetOrganization(r)
	if org == nil {
		httputil.WriteNotFoundError(w, "organization not found")
		return
	}

	var req orgs.AddMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	member, err := s.orgs.AddMember(r.Context(), user.ID, org.ID, req.UserID, req.Role, req.Permissions)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, member)
}

func (s *Server) updateOrgMember(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	org := middleware.GetOrganization(r)
	if org == nil {
		httputil.WriteNotFoundError(w, "organization not found")
		return
	}
	targetID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	var req orgs.UpdateMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	member, err := s.orgs.UpdateMember(r.Context(), user.ID, org.ID, targetID, req.Role, req.Permissions)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, member)
}

func (s *Server) removeOrgMember(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	org := middleware.GetOrganization(r)
	if org == nil {
		httputil.WriteNotFoundError(w, "organization not found")
		return
	}
	targetID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := s.orgs.RemoveMember(r.Context(), user.ID, org.ID, targetID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) listOrgRoles(w http.ResponseWriter, r *http.Request) {
	org, ok := s.requireOrgReader(w, r, authz.OrgRoleViewer)
	if !ok {
		return
	}

	var roles []*orgs.Role
	var err error
	switch r.URL.Query().Get("type") {
	case "":
		roles, err = s.orgs.ListRoles(r.Context(), org.ID)
	case "system":
		roles, err = s.orgs.ListSystemRoles(r.Context(), org.ID)
	case "custom":
		roles, err = s.orgs.ListCustomRoles(r.Context(), org.ID)
	default:
		httputil.WriteValidationError(w, "type must be system or custom")
		return
	}
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if roles == nil {
		roles = []*orgs.Role{}
	}
	httputil.WriteSuccess(w, roles)
}

func (s *Server) createOrgRole(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	org := middleware.GetOrganization(r)
	if org == nil {
		httputil.WriteNotFoundError(w, "organization not found")
		return
	}

	var req orgs.CreateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role, err := s.orgs.CreateRole(r.Context(), user.ID, org.ID, &req)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, role)
}

func (s *Server) getOrgRole(w http.ResponseWriter, r *http.Request) {
	org, ok := s.requireOrgReader(w, r, authz.OrgRoleViewer)
	if !ok {
		return
	}
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "role_id")
	if !ok {
		return
	}

	role, err := s.orgs.GetRole(r.Context(), org.ID, roleID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

func (s *Server) deleteOrgRole(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	org := middleware.GetOrganization(r)
	if org == nil {
		httputil.WriteNotFoundError(w, "organization not found")
		return
	}
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "role_id")
	if !ok {
		return
	}

	if err := s.orgs.DeleteRole(r.Context(), user.ID, org.ID, roleID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// Staff handlers behind the platform-scope org guards.

func (s *Server) getOrganizationFromContext(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r)
	if org == nil {
		httputil.WriteNotFoundError(w, "organization not found")
		return
	}
	httputil.WriteSuccess(w, org)
}

func (s *Server) deleteOrganizationFromContext(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r)
	if org == nil {
		httputil.WriteNotFoundError(w, "organization not found")
		return
	}
	if err := s.orgs.DeleteOrganization(r.Context(), org.ID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) listOrgMembersUnchecked(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrganization(r)
	if org == nil {
		httputil.WriteNotFoundError(w, "organization not found")
		return
	}
	s.writeMemberList(w, r, org.ID)
}
