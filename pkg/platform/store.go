package platform

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/fleetgrid/fleetgrid/pkg/authz"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// Store handles persistence for system role grants and org assignments.
type Store struct {
	db *sql.DB
}

// NewStore creates a new platform store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertGrant records a new system role grant. Returns Conflict if the user
// already holds the role.
func (s *Store) InsertGrant(ctx context.Context, grant *SystemRoleGrant) error {
	query := `
		INSERT INTO system_role_grants (user_id, role, granted_by)
		VALUES ($1, $2, $3)
		RETURNING id, granted_at
	`
	err := s.db.QueryRowContext(ctx, query, grant.UserID, grant.Role, grant.GrantedBy).
		Scan(&grant.ID, &grant.GrantedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return authz.Conflict("user already holds role %s", grant.Role)
		}
		return fmt.Errorf("failed to insert grant: %w", err)
	}
	return nil
}

// DeleteGrant removes a grant. Returns false when no matching grant existed.
func (s *Store) DeleteGrant(ctx context.Context, userID int64, role authz.SystemRole) (bool, error) {
	query := `DELETE FROM system_role_grants WHERE user_id = $1 AND role = $2`
	result, err := s.db.ExecContext(ctx, query, userID, role)
	if err != nil {
		return false, fmt.Errorf("failed to delete grant: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteSuperAdminGrant removes a SuperAdmin grant only while at least one
// other SuperAdmin remains. The count check and the delete are one statement
// so two concurrent revocations cannot both pass the check.
func (s *Store) DeleteSuperAdminGrant(ctx context.Context, userID int64) (bool, error) {
	query := `
		DELETE FROM system_role_grants
		WHERE user_id = $1 AND role = $2
		  AND (SELECT COUNT(*) FROM system_role_grants WHERE role = $2) > 1
	`
	result, err := s.db.ExecContext(ctx, query, userID, authz.SystemRoleSuperAdmin)
	if err != nil {
		return false, fmt.Errorf("failed to delete super admin grant: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListGrants returns all grants held by a user, highest priority first.
func (s *Store) ListGrants(ctx context.Context, userID int64) ([]SystemRoleGrant, error) {
	query := `
		SELECT id, user_id, role, granted_at, granted_by
		FROM system_role_grants
		WHERE user_id = $1
		ORDER BY granted_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []SystemRoleGrant
	for rows.Next() {
		var grant SystemRoleGrant
		var grantedBy sql.NullInt64
		if err := rows.Scan(&grant.ID, &grant.UserID, &grant.Role, &grant.GrantedAt, &grantedBy); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		if grantedBy.Valid {
			gb := grantedBy.Int64
			grant.GrantedBy = &gb
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

// CountSuperAdmins returns the number of users currently holding SuperAdmin.
func (s *Store) CountSuperAdmins(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM system_role_grants WHERE role = $1`
	if err := s.db.QueryRowContext(ctx, query, authz.SystemRoleSuperAdmin).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count super admins: %w", err)
	}
	return count, nil
}

// InsertAssignment records a new org assignment. Returns Conflict on a
// duplicate (user, organization) pair.
func (s *Store) InsertAssignment(ctx context.Context, assignment *OrgAssignment) error {
	query := `
		INSERT INTO org_assignments (user_id, organization_id, assigned_by)
		VALUES ($1, $2, $3)
		RETURNING id, assigned_at
	`
	err := s.db.QueryRowContext(ctx, query,
		assignment.UserID, assignment.OrganizationID, assignment.AssignedBy).
		Scan(&assignment.ID, &assignment.AssignedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return authz.Conflict("user already assigned to organization %d", assignment.OrganizationID)
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

// DeleteAssignment removes one assignment. Returns false when it was absent.
func (s *Store) DeleteAssignment(ctx context.Context, userID, orgID int64) (bool, error) {
	query := `DELETE FROM org_assignments WHERE user_id = $1 AND organization_id = $2`
	result, err := s.db.ExecContext(ctx, query, userID, orgID)
	if err != nil {
		return false, fmt.Errorf("failed to delete assignment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteAssignmentsForUser removes every assignment a user holds. Used for
// the cascade when a scoped admin role is revoked; zero rows is not an error.
func (s *Store) DeleteAssignmentsForUser(ctx context.Context, userID int64) (int64, error) {
	query := `DELETE FROM org_assignments WHERE user_id = $1`
	result, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete assignments: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// ListAssignments returns all org assignments for a user.
func (s *Store) ListAssignments(ctx context.Context, userID int64) ([]OrgAssignment, error) {
	query := `
		SELECT id, user_id, organization_id, assigned_at, assigned_by
		FROM org_assignments
		WHERE user_id = $1
		ORDER BY assigned_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []OrgAssignment
	for rows.Next() {
		var a OrgAssignment
		var assignedBy sql.NullInt64
		if err := rows.Scan(&a.ID, &a.UserID, &a.OrganizationID, &a.AssignedAt, &assignedBy); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		if assignedBy.Valid {
			ab := assignedBy.Int64
			a.AssignedBy = &ab
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// IsAssigned reports whether the user is assigned to the organization.
func (s *Store) IsAssigned(ctx context.Context, userID, orgID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM org_assignments WHERE user_id = $1 AND organization_id = $2)`
	if err := s.db.QueryRowContext(ctx, query, userID, orgID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}
	return exists, nil
}

// OrganizationExists reports whether the organization exists and is not
// deleted.
func (s *Store) OrganizationExists(ctx context.Context, orgID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM organizations WHERE id = $1 AND status <> 'deleted')`
	if err := s.db.QueryRowContext(ctx, query, orgID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check organization: %w", err)
	}
	return exists, nil
}
