package orgs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/fleetgrid/fleetgrid/pkg/audit"
	"github.com/fleetgrid/fleetgrid/pkg/authz"
)

// defaultCustomRolePriority is assigned to every custom role regardless of
// caller input; priorities below it are reserved for seeded system roles.
const defaultCustomRolePriority = 100

// seededSystemRoles are created for every new organization. They mirror the
// membership role vocabulary and are immutable.
func seededSystemRoles() []Role {
	return []Role{
		{Name: "owner", DisplayName: "Owner", Permissions: []string{"devices.manage", "members.manage", "roles.manage", "billing.manage", "settings.manage"}, IsSystemRole: true, Priority: 1},
		{Name: "admin", DisplayName: "Admin", Permissions: []string{"devices.manage", "members.manage", "settings.manage"}, IsSystemRole: true, Priority: 2},
		{Name: "member", DisplayName: "Member", Permissions: []string{"devices.read", "devices.commands"}, IsSystemRole: true, Priority: 3},
		{Name: "viewer", DisplayName: "Viewer", Permissions: []string{"devices.read"}, IsSystemRole: true, Priority: 4},
	}
}

// seedSystemRoles inserts the built-in role set for a new organization.
func (s *PostgresService) seedSystemRoles(ctx context.Context, orgID int64) error {
	for _, role := range seededSystemRoles() {
		permissionsJSON, err := json.Marshal(role.Permissions)
		if err != nil {
			return fmt.Errorf("failed to marshal permissions: %w", err)
		}
		query := `
			INSERT INTO org_roles (organization_id, name, display_name, permissions, is_system_role, priority)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (organization_id, name) DO NOTHING
		`
		if _, err := s.db.ExecContext(ctx, query, orgID, role.Name, role.DisplayName,
			permissionsJSON, role.IsSystemRole, role.Priority); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
		}
	}
	return nil
}

// CreateRole creates a custom role. Owner-only; reserved and duplicate
// names fail with Conflict; permissions pass through the catalog.
func (s *PostgresService) CreateRole(ctx context.Context, callerID, orgID int64, req *CreateRoleRequest) (*Role, error) {
	name := strings.ToLower(strings.TrimSpace(req.Name))
	if name == "" {
		return nil, authz.Validation("role name is required")
	}
	if authz.IsSystemRoleName(name) {
		return nil, authz.Conflict("role name %q is reserved", name)
	}
	if err := s.catalog.Validate(req.Permissions); err != nil {
		return nil, err
	}

	exists, err := s.organizationExists(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, authz.NotFound("organization not found")
	}

	if err := s.requireOwner(ctx, orgID, callerID); err != nil {
		return nil, err
	}

	role := &Role{
		OrganizationID: orgID,
		Name:           name,
		DisplayName:    req.DisplayName,
		Permissions:    req.Permissions,
		IsSystemRole:   false,
		Priority:       defaultCustomRolePriority,
		CreatedBy:      &callerID,
	}
	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal permissions: %w", err)
	}
	query := `
		INSERT INTO org_roles (organization_id, name, display_name, permissions, is_system_role, priority, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err = s.db.QueryRowContext(ctx, query, role.OrganizationID, role.Name, role.DisplayName,
		permissionsJSON, role.IsSystemRole, role.Priority, role.CreatedBy).
		Scan(&role.ID, &role.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return nil, authz.Conflict("role %q already exists", role.Name)
		}
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	s.audit.Record(ctx, &audit.Event{
		EventType:      audit.EventTypeRoleCreate,
		Status:         audit.EventStatusSuccess,
		ActorID:        &callerID,
		OrganizationID: &orgID,
		RoleName:       role.Name,
		Message:        "created custom role",
	})
	return role, nil
}

// DeleteRole deletes a custom role. Owner-only; system roles are Forbidden;
// a role with assigned users fails with Conflict via a conditional delete.
func (s *PostgresService) DeleteRole(ctx context.Context, callerID, orgID, roleID int64) error {
	role, err := s.GetRole(ctx, orgID, roleID)
	if err != nil {
		return err
	}

	if err := s.requireOwner(ctx, orgID, callerID); err != nil {
		return err
	}
	if role.IsSystemRole {
		return authz.Forbidden("system roles cannot be deleted")
	}

	query := `
		DELETE FROM org_roles
		WHERE id = $1 AND organization_id = $2 AND is_system_role = FALSE
		  AND NOT EXISTS (SELECT 1 FROM org_role_members WHERE role_id = $1)
	`
	result, err := s.db.ExecContext(ctx, query, roleID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return authz.Conflict("role %q is still assigned to users", role.Name)
	}

	s.audit.Record(ctx, &audit.Event{
		EventType:      audit.EventTypeRoleDelete,
		Status:         audit.EventStatusSuccess,
		ActorID:        &callerID,
		OrganizationID: &orgID,
		RoleName:       role.Name,
		Message:        "deleted custom role",
	})
	return nil
}

// GetRole retrieves one role by ID within an organization.
func (s *PostgresService) GetRole(ctx context.Context, orgID, roleID int64) (*Role, error) {
	query := `
		SELECT id, organization_id, name, display_name, permissions, is_system_role, priority, created_at, created_by
		FROM org_roles
		WHERE id = $1 AND organization_id = $2
	`
	role := &Role{}
	var permissionsJSON []byte
	var createdBy sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, roleID, orgID).Scan(
		&role.ID, &role.OrganizationID, &role.Name, &role.DisplayName,
		&permissionsJSON, &role.IsSystemRole, &role.Priority, &role.CreatedAt, &createdBy,
	)
	if err == sql.ErrNoRows {
		return nil, authz.NotFound("role not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	if createdBy.Valid {
		v := createdBy.Int64
		role.CreatedBy = &v
	}
	if len(permissionsJSON) > 0 {
		if err := json.Unmarshal(permissionsJSON, &role.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}
	return role, nil
}

// ListRoles returns every role in the organization, system roles first.
func (s *PostgresService) ListRoles(ctx context.Context, orgID int64) ([]*Role, error) {
	return s.listRoles(ctx, orgID, "")
}

// ListSystemRoles returns the seeded immutable roles.
func (s *PostgresService) ListSystemRoles(ctx context.Context, orgID int64) ([]*Role, error) {
	return s.listRoles(ctx, orgID, "AND is_system_role = TRUE")
}

// ListCustomRoles returns the org-defined roles.
func (s *PostgresService) ListCustomRoles(ctx context.Context, orgID int64) ([]*Role, error) {
	return s.listRoles(ctx, orgID, "AND is_system_role = FALSE")
}

func (s *PostgresService) listRoles(ctx context.Context, orgID int64, filter string) ([]*Role, error) {
	query := `
		SELECT id, organization_id, name, display_name, permissions, is_system_role, priority, created_at, created_by
		FROM org_roles
		WHERE organization_id = $1 ` + filter + `
		ORDER BY priority ASC, name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		role := &Role{}
		var permissionsJSON []byte
		var createdBy sql.NullInt64
		if err := rows.Scan(
			&role.ID, &role.OrganizationID, &role.Name, &role.DisplayName,
			&permissionsJSON, &role.IsSystemRole, &role.Priority, &role.CreatedAt, &createdBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		if createdBy.Valid {
			v := createdBy.Int64
			role.CreatedBy = &v
		}
		if len(permissionsJSON) > 0 {
			if err := json.Unmarshal(permissionsJSON, &role.Permissions); err != nil {
				return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
			}
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CountUsersWithRole returns the number of users currently assigned a role
// by name within the organization.
func (s *PostgresService) CountUsersWithRole(ctx context.Context, orgID int64, roleName string) (int64, error) {
	var count int64
	query := `
		SELECT COUNT(*)
		FROM org_role_members rm
		JOIN org_roles r ON r.id = rm.role_id
		WHERE r.organization_id = $1 AND r.name = $2
	`
	if err := s.db.QueryRowContext(ctx, query, orgID, roleName).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users with role: %w", err)
	}
	return count, nil
}

// requireOwner checks the caller holds org role Owner.
func (s *PostgresService) requireOwner(ctx context.Context, orgID, callerID int64) error {
	caller, err := s.GetMember(ctx, orgID, callerID)
	if err != nil {
		if authz.IsNotFound(err) {
			return authz.Forbidden("you are not a member of this organization")
		}
		return err
	}
	if caller.Role != authz.OrgRoleOwner {
		return authz.Forbidden("requires org role owner")
	}
	return nil
}
