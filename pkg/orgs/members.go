package orgs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/fleetgrid/fleetgrid/pkg/audit"
	"github.com/fleetgrid/fleetgrid/pkg/authz"
)

func membershipCacheKey(orgID, userID int64) string {
	return fmt.Sprintf("org_membership:%d:%d", orgID, userID)
}

// GetMember retrieves one membership. Returns NotFound when the user is not
// a member.
func (s *PostgresService) GetMember(ctx context.Context, orgID, userID int64) (*OrgMembership, error) {
	if s.cache != nil {
		var cached OrgMembership
		if s.cache.Get(ctx, membershipCacheKey(orgID, userID), &cached) {
			return &cached, nil
		}
	}

	query := `
		SELECT id, organization_id, user_id, role, permissions, granted_at, granted_by
		FROM org_memberships
		WHERE organization_id = $1 AND user_id = $2
	`
	m := &OrgMembership{}
	var permissionsJSON []byte
	var grantedBy sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, orgID, userID).Scan(
		&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &permissionsJSON,
		&m.GrantedAt, &grantedBy,
	)
	if err == sql.ErrNoRows {
		return nil, authz.NotFound("member not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if grantedBy.Valid {
		v := grantedBy.Int64
		m.GrantedBy = &v
	}
	if len(permissionsJSON) > 0 {
		if err := json.Unmarshal(permissionsJSON, &m.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	if s.cache != nil {
		s.cache.Set(ctx, membershipCacheKey(orgID, userID), m)
	}
	return m, nil
}

// ListMembers retrieves all members of an organization, oldest first.
func (s *PostgresService) ListMembers(ctx context.Context, orgID int64) ([]*OrgMembership, error) {
	query := `
		SELECT id, organization_id, user_id, role, permissions, granted_at, granted_by
		FROM org_memberships
		WHERE organization_id = $1
		ORDER BY granted_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*OrgMembership
	for rows.Next() {
		m := &OrgMembership{}
		var permissionsJSON []byte
		var grantedBy sql.NullInt64
		if err := rows.Scan(
			&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &permissionsJSON,
			&m.GrantedAt, &grantedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if grantedBy.Valid {
			v := grantedBy.Int64
			m.GrantedBy = &v
		}
		if len(permissionsJSON) > 0 {
			if err := json.Unmarshal(permissionsJSON, &m.Permissions); err != nil {
				return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
			}
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// CountOwners returns the number of Owner memberships in an organization.
func (s *PostgresService) CountOwners(ctx context.Context, orgID int64) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM org_memberships WHERE organization_id = $1 AND role = $2`
	if err := s.db.QueryRowContext(ctx, query, orgID, authz.OrgRoleOwner).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return count, nil
}

// AddMember adds a user to an organization. Guard order: organization
// existence, caller scope, role sufficiency, then quota and duplicates. An
// Admin caller may not grant a role above their own.
func (s *PostgresService) AddMember(ctx context.Context, callerID, orgID, userID int64, role authz.OrgRole, permissions []string) (*OrgMembership, error) {
	if !role.Valid() {
		return nil, authz.Validation("unknown org role: %s", role)
	}
	if err := s.catalog.Validate(permissions); err != nil {
		return nil, err
	}

	exists, err := s.organizationExists(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, authz.NotFound("organization not found")
	}

	caller, err := s.requireMutator(ctx, orgID, callerID)
	if err != nil {
		return nil, err
	}
	if !authz.HasSufficientRole(caller.Role, role) {
		return nil, authz.Forbidden("cannot grant a role above your own")
	}

	if err := s.CheckMemberQuota(ctx, orgID); err != nil {
		return nil, err
	}

	membership := &OrgMembership{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		Permissions:    permissions,
		GrantedBy:      &callerID,
	}
	if err := s.insertMembership(ctx, membership); err != nil {
		return nil, err
	}
	s.invalidateMembership(ctx, orgID, userID)

	s.audit.Record(ctx, &audit.Event{
		EventType:      audit.EventTypeMemberAdd,
		Status:         audit.EventStatusSuccess,
		ActorID:        &callerID,
		TargetUserID:   &userID,
		OrganizationID: &orgID,
		RoleName:       string(role),
		Message:        "added organization member",
	})
	return membership, nil
}

// UpdateMember changes a member's role and/or permission set. Nil role and
// nil permissions leave the respective field untouched. Demoting the last
// Owner fails with Conflict.
func (s *PostgresService) UpdateMember(ctx context.Context, callerID, orgID, userID int64, newRole *authz.OrgRole, newPermissions []string) (*OrgMembership, error) {
	if newRole != nil && !newRole.Valid() {
		return nil, authz.Validation("unknown org role: %s", *newRole)
	}
	if newPermissions != nil {
		if err := s.catalog.Validate(newPermissions); err != nil {
			return nil, err
		}
	}

	target, err := s.GetMember(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}

	caller, err := s.requireMutator(ctx, orgID, callerID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAdminTouchRule(caller, target); err != nil {
		return nil, err
	}
	if newRole != nil && !authz.HasSufficientRole(caller.Role, *newRole) {
		return nil, authz.Forbidden("cannot grant a role above your own")
	}

	if newRole != nil && target.Role == authz.OrgRoleOwner && *newRole != authz.OrgRoleOwner {
		demoted, err := s.demoteOwner(ctx, orgID, userID, *newRole)
		if err != nil {
			return nil, err
		}
		if !demoted {
			return nil, authz.Conflict("cannot demote the last owner")
		}
		target.Role = *newRole
	} else if newRole != nil && *newRole != target.Role {
		if err := s.updateRole(ctx, orgID, userID, *newRole); err != nil {
			return nil, err
		}
		target.Role = *newRole
	}

	if newPermissions != nil {
		if err := s.updatePermissions(ctx, orgID, userID, newPermissions); err != nil {
			return nil, err
		}
		target.Permissions = newPermissions
	}

	s.invalidateMembership(ctx, orgID, userID)
	s.audit.Record(ctx, &audit.Event{
		EventType:      audit.EventTypeMemberUpdate,
		Status:         audit.EventStatusSuccess,
		ActorID:        &callerID,
		TargetUserID:   &userID,
		OrganizationID: &orgID,
		RoleName:       string(target.Role),
		Message:        "updated organization member",
	})
	return target, nil
}

// RemoveMember removes a user from an organization. The caller cannot
// remove themself, and removing the last Owner fails with Conflict.
func (s *PostgresService) RemoveMember(ctx context.Context, callerID, orgID, userID int64) error {
	target, err := s.GetMember(ctx, orgID, userID)
	if err != nil {
		return err
	}

	caller, err := s.requireMutator(ctx, orgID, callerID)
	if err != nil {
		return err
	}
	if callerID == userID {
		return authz.Forbidden("cannot remove yourself from the organization")
	}
	if err := s.checkAdminTouchRule(caller, target); err != nil {
		return err
	}

	removed, err := s.deleteMembership(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if !removed {
		// The membership existed above, so the conditional delete was
		// blocked by the owner guard.
		return authz.Conflict("cannot remove the last owner")
	}

	s.invalidateMembership(ctx, orgID, userID)
	s.audit.Record(ctx, &audit.Event{
		EventType:      audit.EventTypeMemberRemove,
		Status:         audit.EventStatusSuccess,
		ActorID:        &callerID,
		TargetUserID:   &userID,
		OrganizationID: &orgID,
		Message:        "removed organization member",
	})
	return nil
}

// requireMutator resolves the caller's membership and checks they hold
// Owner or Admin. Non-members are Forbidden; org scope discloses membership
// state, unlike the group scope.
func (s *PostgresService) requireMutator(ctx context.Context, orgID, callerID int64) (*OrgMembership, error) {
	caller, err := s.GetMember(ctx, orgID, callerID)
	if err != nil {
		if authz.IsNotFound(err) {
			return nil, authz.Forbidden("you are not a member of this organization")
		}
		return nil, err
	}
	if !authz.HasSufficientRole(caller.Role, authz.OrgRoleAdmin) {
		return nil, authz.Forbidden("requires org role admin or above")
	}
	return caller, nil
}

// checkAdminTouchRule rejects an Admin caller acting on another Admin or
// any Owner. Self-modification is permitted.
func (s *PostgresService) checkAdminTouchRule(caller, target *OrgMembership) error {
	if caller.UserID == target.UserID {
		return nil
	}
	if caller.Role == authz.OrgRoleAdmin && authz.HasSufficientRole(target.Role, authz.OrgRoleAdmin) {
		return authz.Forbidden("admins cannot modify other admins or owners")
	}
	return nil
}

func (s *PostgresService) insertMembership(ctx context.Context, m *OrgMembership) error {
	permissionsJSON, err := json.Marshal(m.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}
	query := `
		INSERT INTO org_memberships (organization_id, user_id, role, permissions, granted_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, granted_at
	`
	err = s.db.QueryRowContext(ctx, query, m.OrganizationID, m.UserID, m.Role,
		permissionsJSON, m.GrantedBy).Scan(&m.ID, &m.GrantedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return authz.Conflict("user is already a member")
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// demoteOwner applies an Owner demotion only while another Owner remains.
// The count check and the update are one statement.
func (s *PostgresService) demoteOwner(ctx context.Context, orgID, userID int64, newRole authz.OrgRole) (bool, error) {
	query := `
		UPDATE org_memberships SET role = $1
		WHERE organization_id = $2 AND user_id = $3 AND role = $4
		  AND (SELECT COUNT(*) FROM org_memberships WHERE organization_id = $2 AND role = $4) > 1
	`
	result, err := s.db.ExecContext(ctx, query, newRole, orgID, userID, authz.OrgRoleOwner)
	if err != nil {
		return false, fmt.Errorf("failed to demote owner: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func (s *PostgresService) updateRole(ctx context.Context, orgID, userID int64, role authz.OrgRole) error {
	query := `UPDATE org_memberships SET role = $1 WHERE organization_id = $2 AND user_id = $3`
	result, err := s.db.ExecContext(ctx, query, role, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return authz.NotFound("member not found")
	}
	return nil
}

func (s *PostgresService) updatePermissions(ctx context.Context, orgID, userID int64, permissions []string) error {
	permissionsJSON, err := json.Marshal(permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}
	query := `UPDATE org_memberships SET permissions = $1 WHERE organization_id = $2 AND user_id = $3`
	result, err := s.db.ExecContext(ctx, query, permissionsJSON, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member permissions: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return authz.NotFound("member not found")
	}
	return nil
}

// deleteMembership removes a membership unless it is the last Owner of the
// organization. One statement, same shape as demoteOwner.
func (s *PostgresService) deleteMembership(ctx context.Context, orgID, userID int64) (bool, error) {
	query := `
		DELETE FROM org_memberships
		WHERE organization_id = $1 AND user_id = $2
		  AND (role <> $3
		       OR (SELECT COUNT(*) FROM org_memberships WHERE organization_id = $1 AND role = $3) > 1)
	`
	result, err := s.db.ExecContext(ctx, query, orgID, userID, authz.OrgRoleOwner)
	if err != nil {
		return false, fmt.Errorf("failed to remove member: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func (s *PostgresService) invalidateMembership(ctx context.Context, orgID, userID int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, membershipCacheKey(orgID, userID))
	}
}
