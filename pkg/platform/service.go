package platform

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/fleetgrid/fleetgrid/pkg/audit"
	"github.com/fleetgrid/fleetgrid/pkg/authz"
	"github.com/fleetgrid/fleetgrid/pkg/observability"
)

// Service is the system role registry and organization assignment registry.
// Caller authorization (only a SuperAdmin may grant system roles) is
// enforced by the HTTP layer; this service enforces the data invariants.
type Service struct {
	store  *Store
	cache  *authz.Cache
	audit  audit.Logger
	logger *observability.Logger
}

// NewService creates a new platform service. cache may be nil to disable
// the read cache; auditLogger may be nil to disable the audit trail.
func NewService(db *sql.DB, cache *authz.Cache, auditLogger audit.Logger, logger *observability.Logger) *Service {
	if auditLogger == nil {
		auditLogger = audit.NopLogger()
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		store:  NewStore(db),
		cache:  cache,
		audit:  auditLogger,
		logger: logger,
	}
}

func rolesCacheKey(userID int64) string {
	return "system_roles:" + strconv.FormatInt(userID, 10)
}

func assignmentsCacheKey(userID int64) string {
	return "org_assignments:" + strconv.FormatInt(userID, 10)
}

// AddRole grants a system role to a user. Duplicate grants fail with
// Conflict.
func (s *Service) AddRole(ctx context.Context, userID int64, role authz.SystemRole, grantedBy int64) (*SystemRoleGrant, error) {
	if !role.Valid() {
		return nil, authz.Validation("unknown system role: %s", role)
	}

	grant := &SystemRoleGrant{UserID: userID, Role: role, GrantedBy: &grantedBy}
	if err := s.store.InsertGrant(ctx, grant); err != nil {
		return nil, err
	}
	s.invalidateUser(ctx, userID)

	s.audit.Record(ctx, &audit.Event{
		EventType:    audit.EventTypeRoleGrant,
		Status:       audit.EventStatusSuccess,
		ActorID:      &grantedBy,
		TargetUserID: &userID,
		Message:      fmt.Sprintf("granted system role %s", role),
	})
	return grant, nil
}

// RemoveRole revokes a system role from a user. Revoking the last
// SuperAdmin fails with Conflict. Revoking a scoped admin role cascades
// deletion of all org assignments the user holds.
func (s *Service) RemoveRole(ctx context.Context, userID int64, role authz.SystemRole) error {
	if !role.Valid() {
		return authz.Validation("unknown system role: %s", role)
	}

	if role == authz.SystemRoleSuperAdmin {
		if err := s.removeSuperAdmin(ctx, userID); err != nil {
			return err
		}
	} else {
		removed, err := s.store.DeleteGrant(ctx, userID, role)
		if err != nil {
			return err
		}
		if !removed {
			return authz.NotFound("user does not hold role %s", role)
		}
	}

	if role.RequiresOrgAssignment() {
		deleted, err := s.store.DeleteAssignmentsForUser(ctx, userID)
		if err != nil {
			// The grant is already gone; surface the cascade failure.
			return fmt.Errorf("failed to cascade assignment deletion: %w", err)
		}
		s.logger.WithFields(map[string]interface{}{
			"user_id":  userID,
			"role":     role,
			"cascaded": deleted,
		}).Info("revoked scoped admin role, cascaded org assignments")
	}

	s.invalidateUser(ctx, userID)
	s.audit.Record(ctx, &audit.Event{
		EventType:    audit.EventTypeRoleRevoke,
		Status:       audit.EventStatusSuccess,
		TargetUserID: &userID,
		Message:      fmt.Sprintf("revoked system role %s", role),
	})
	return nil
}

// removeSuperAdmin deletes a SuperAdmin grant behind the atomic last-admin
// guard, then classifies the zero-row outcome.
func (s *Service) removeSuperAdmin(ctx context.Context, userID int64) error {
	removed, err := s.store.DeleteSuperAdminGrant(ctx, userID)
	if err != nil {
		return err
	}
	if removed {
		return nil
	}

	held, err := s.HasRole(ctx, userID, authz.SystemRoleSuperAdmin)
	if err != nil {
		return err
	}
	if !held {
		return authz.NotFound("user does not hold role %s", authz.SystemRoleSuperAdmin)
	}
	return authz.Conflict("cannot remove last super admin")
}

// GetUserRoles returns the set of system roles the user holds.
func (s *Service) GetUserRoles(ctx context.Context, userID int64) ([]authz.SystemRole, error) {
	if s.cache != nil {
		var cached []authz.SystemRole
		if s.cache.Get(ctx, rolesCacheKey(userID), &cached) {
			return cached, nil
		}
	}

	grants, err := s.store.ListGrants(ctx, userID)
	if err != nil {
		return nil, err
	}
	roles := make([]authz.SystemRole, 0, len(grants))
	for _, grant := range grants {
		roles = append(roles, grant.Role)
	}

	if s.cache != nil {
		s.cache.Set(ctx, rolesCacheKey(userID), roles)
	}
	return roles, nil
}

// ListGrants returns the full grant records for a user.
func (s *Service) ListGrants(ctx context.Context, userID int64) ([]SystemRoleGrant, error) {
	return s.store.ListGrants(ctx, userID)
}

// HasRole reports whether the user holds the given system role.
func (s *Service) HasRole(ctx context.Context, userID int64, role authz.SystemRole) (bool, error) {
	roles, err := s.GetUserRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, held := range roles {
		if held == role {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyRole reports whether the user holds at least one of the given roles.
func (s *Service) HasAnyRole(ctx context.Context, userID int64, candidates ...authz.SystemRole) (bool, error) {
	roles, err := s.GetUserRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, held := range roles {
		for _, candidate := range candidates {
			if held == candidate {
				return true, nil
			}
		}
	}
	return false, nil
}

// CountSuperAdmins returns the number of SuperAdmin holders.
func (s *Service) CountSuperAdmins(ctx context.Context) (int64, error) {
	return s.store.CountSuperAdmins(ctx)
}

// HighestRole returns the user's system role with the greatest org-impact
// priority. The second return value is false when the user holds no roles.
func (s *Service) HighestRole(ctx context.Context, userID int64) (authz.SystemRole, bool, error) {
	roles, err := s.GetUserRoles(ctx, userID)
	if err != nil {
		return "", false, err
	}
	var highest authz.SystemRole
	found := false
	for _, role := range roles {
		if !found || role.Priority() > highest.Priority() {
			highest = role
			found = true
		}
	}
	return highest, found, nil
}

// AssignOrg binds a user's scoped admin role to one organization. Guard
// order: organization existence, then prerequisite role, then duplicates.
func (s *Service) AssignOrg(ctx context.Context, userID, orgID int64, assignedBy int64) (*OrgAssignment, error) {
	exists, err := s.store.OrganizationExists(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, authz.NotFound("organization %d not found", orgID)
	}

	assignable, err := s.hasAssignableRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !assignable {
		return nil, authz.Validation("user holds no role that requires an org assignment")
	}

	assignment := &OrgAssignment{UserID: userID, OrganizationID: orgID, AssignedBy: &assignedBy}
	if err := s.store.InsertAssignment(ctx, assignment); err != nil {
		return nil, err
	}
	s.invalidateUser(ctx, userID)

	s.audit.Record(ctx, &audit.Event{
		EventType:      audit.EventTypeOrgAssign,
		Status:         audit.EventStatusSuccess,
		ActorID:        &assignedBy,
		TargetUserID:   &userID,
		OrganizationID: &orgID,
		Message:        "assigned organization",
	})
	return assignment, nil
}

// UnassignOrg removes one org assignment.
func (s *Service) UnassignOrg(ctx context.Context, userID, orgID int64) error {
	removed, err := s.store.DeleteAssignment(ctx, userID, orgID)
	if err != nil {
		return err
	}
	if !removed {
		return authz.NotFound("user is not assigned to organization %d", orgID)
	}
	s.invalidateUser(ctx, userID)

	s.audit.Record(ctx, &audit.Event{
		EventType:      audit.EventTypeOrgUnassign,
		Status:         audit.EventStatusSuccess,
		TargetUserID:   &userID,
		OrganizationID: &orgID,
		Message:        "unassigned organization",
	})
	return nil
}

// GetAssignedOrgs returns the IDs of organizations the user is assigned to.
func (s *Service) GetAssignedOrgs(ctx context.Context, userID int64) ([]int64, error) {
	if s.cache != nil {
		var cached []int64
		if s.cache.Get(ctx, assignmentsCacheKey(userID), &cached) {
			return cached, nil
		}
	}

	assignments, err := s.store.ListAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	orgIDs := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		orgIDs = append(orgIDs, a.OrganizationID)
	}

	if s.cache != nil {
		s.cache.Set(ctx, assignmentsCacheKey(userID), orgIDs)
	}
	return orgIDs, nil
}

// IsAssignedToOrg reports whether the user is explicitly assigned to the
// organization. With a cache the answer comes from the cached assignment
// list; without one a single existence query beats listing.
func (s *Service) IsAssignedToOrg(ctx context.Context, userID, orgID int64) (bool, error) {
	if s.cache == nil {
		return s.store.IsAssigned(ctx, userID, orgID)
	}
	orgIDs, err := s.GetAssignedOrgs(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, id := range orgIDs {
		if id == orgID {
			return true, nil
		}
	}
	return false, nil
}

// HasOrgAccess reports whether the user may read the organization at all:
// SuperAdmin and the global readers (Support/Viewer) see every org, scoped
// admins only the orgs they are assigned to.
func (s *Service) HasOrgAccess(ctx context.Context, userID, orgID int64) (bool, error) {
	roles, err := s.GetUserRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if role.GrantsGlobalRead() {
			return true, nil
		}
	}
	return s.IsAssignedToOrg(ctx, userID, orgID)
}

// CanManageOrg reports whether the user may administer the organization:
// SuperAdmin everywhere, OrgAdmin/OrgManager only where assigned. Support
// and Viewer never manage anything.
func (s *Service) CanManageOrg(ctx context.Context, userID, orgID int64) (bool, error) {
	roles, err := s.GetUserRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	scoped := false
	for _, role := range roles {
		if role == authz.SystemRoleSuperAdmin {
			return true, nil
		}
		if role.RequiresOrgAssignment() {
			scoped = true
		}
	}
	if !scoped {
		return false, nil
	}
	return s.IsAssignedToOrg(ctx, userID, orgID)
}

func (s *Service) hasAssignableRole(ctx context.Context, userID int64) (bool, error) {
	roles, err := s.GetUserRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if role.RequiresOrgAssignment() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) invalidateUser(ctx context.Context, userID int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, rolesCacheKey(userID), assignmentsCacheKey(userID))
	}
}
