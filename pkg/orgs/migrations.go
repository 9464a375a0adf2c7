package orgs

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one schema change for the organization scope.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all organization migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL,
					description TEXT,
					owner_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					quota_tier VARCHAR(20) NOT NULL DEFAULT 'small',
					status VARCHAR(20) NOT NULL DEFAULT 'active',
					is_active BOOLEAN DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_organizations_slug ON organizations(slug);
				CREATE INDEX idx_organizations_status ON organizations(status);
			`,
		},
		{
			Version:     2,
			Description: "Create org_memberships table",
			SQL: `
				CREATE TABLE IF NOT EXISTS org_memberships (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role VARCHAR(20) NOT NULL,
					permissions JSONB NOT NULL DEFAULT '[]',
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					granted_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					UNIQUE(organization_id, user_id)
				);

				CREATE INDEX idx_org_memberships_organization_id ON org_memberships(organization_id);
				CREATE INDEX idx_org_memberships_user_id ON org_memberships(user_id);
				CREATE INDEX idx_org_memberships_role ON org_memberships(organization_id, role);
			`,
		},
		{
			Version:     3,
			Description: "Create org_roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS org_roles (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					name VARCHAR(100) NOT NULL,
					display_name VARCHAR(255) NOT NULL,
					permissions JSONB NOT NULL DEFAULT '[]',
					is_system_role BOOLEAN NOT NULL DEFAULT FALSE,
					priority INT NOT NULL DEFAULT 100,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					UNIQUE(organization_id, name)
				);

				CREATE INDEX idx_org_roles_organization_id ON org_roles(organization_id);
				CREATE INDEX idx_org_roles_name ON org_roles(name);
			`,
		},
		{
			Version:     4,
			Description: "Create org_role_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS org_role_members (
					id BIGSERIAL PRIMARY KEY,
					role_id BIGINT NOT NULL REFERENCES org_roles(id) ON DELETE RESTRICT,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					assigned_at TIMESTAMP NOT NULL DEFAULT NOW(),
					assigned_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					UNIQUE(role_id, user_id)
				);

				CREATE INDEX idx_org_role_members_role_id ON org_role_members(role_id);
				CREATE INDEX idx_org_role_members_user_id ON org_role_members(user_id);
			`,
		},
	}
}

// RunMigrations applies pending organization migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS orgs_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM orgs_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO orgs_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}
	return nil
}
