package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/fleetgrid/fleetgrid/pkg/audit"
	"github.com/fleetgrid/fleetgrid/pkg/authz"
	"github.com/fleetgrid/fleetgrid/pkg/observability"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// PostgresService implements the organization-scope authority on PostgreSQL.
type PostgresService struct {
	db      *sql.DB
	catalog *authz.Catalog
	cache   *authz.Cache
	audit   audit.Logger
	logger  *observability.Logger
}

// NewPostgresService creates the organization service. catalog must be
// non-nil; cache and auditLogger may be nil.
func NewPostgresService(db *sql.DB, catalog *authz.Catalog, cache *authz.Cache, auditLogger audit.Logger, logger *observability.Logger) *PostgresService {
	if auditLogger == nil {
		auditLogger = audit.NopLogger()
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &PostgresService{
		db:      db,
		catalog: catalog,
		cache:   cache,
		audit:   auditLogger,
		logger:  logger,
	}
}

// CreateOrganization creates a new organization, seeds its system roles and
// installs the creator as the first Owner.
func (s *PostgresService) CreateOrganization(ctx context.Context, org *Organization, creatorID int64) error {
	if org.Slug == "" {
		org.Slug = generateSlug(org.Name)
	}
	if org.QuotaTier == "" {
		org.QuotaTier = QuotaTierSmall
	}
	if org.Status == "" {
		org.Status = OrgStatusActive
	}
	org.IsActive = true
	org.OwnerID = &creatorID

	query := `
		INSERT INTO organizations (name, slug, display_name, description, owner_id, quota_tier, status, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, org.Name, org.Slug, org.DisplayName,
		org.Description, org.OwnerID, org.QuotaTier, org.Status, org.IsActive).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return authz.Conflict("organization slug %q already exists", org.Slug)
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}

	if err := s.seedSystemRoles(ctx, org.ID); err != nil {
		return fmt.Errorf("failed to seed system roles: %w", err)
	}

	membership := &OrgMembership{
		OrganizationID: org.ID,
		UserID:         creatorID,
		Role:           authz.OrgRoleOwner,
		GrantedBy:      &creatorID,
	}
	if err := s.insertMembership(ctx, membership); err != nil {
		return fmt.Errorf("failed to add creator as owner: %w", err)
	}
	return nil
}

// GetOrganization retrieves an active or suspended organization by ID.
func (s *PostgresService) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	return s.getOrganization(ctx, "id = $1", id)
}

// GetOrganizationBySlug retrieves an organization by slug.
func (s *PostgresService) GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	return s.getOrganization(ctx, "slug = $1", slug)
}

func (s *PostgresService) getOrganization(ctx context.Context, where string, arg interface{}) (*Organization, error) {
	query := `
		SELECT id, name, slug, display_name, description, owner_id, quota_tier, status,
		       is_active, created_at, updated_at
		FROM organizations
		WHERE ` + where + ` AND status <> 'deleted'`
	org := &Organization{}
	var description sql.NullString
	var ownerID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&org.ID, &org.Name, &org.Slug, &org.DisplayName, &description,
		&ownerID, &org.QuotaTier, &org.Status, &org.IsActive,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, authz.NotFound("organization not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	org.Description = description.String
	if ownerID.Valid {
		v := ownerID.Int64
		org.OwnerID = &v
	}
	return org, nil
}

// DeleteOrganization soft deletes an organization.
func (s *PostgresService) DeleteOrganization(ctx context.Context, id int64) error {
	query := `UPDATE organizations SET status = $1, is_active = false, updated_at = NOW() WHERE id = $2 AND status <> 'deleted'`
	result, err := s.db.ExecContext(ctx, query, OrgStatusDeleted, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return authz.NotFound("organization not found")
	}
	return nil
}

// organizationExists reports whether the organization exists and is not
// deleted.
func (s *PostgresService) organizationExists(ctx context.Context, orgID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM organizations WHERE id = $1 AND status <> 'deleted')`
	if err := s.db.QueryRowContext(ctx, query, orgID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check organization: %w", err)
	}
	return exists, nil
}

func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, slug)
	return slug
}
