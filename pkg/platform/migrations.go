package platform

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one schema change for the platform registries.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all platform migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create system_role_grants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS system_role_grants (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role VARCHAR(50) NOT NULL,
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					granted_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					UNIQUE(user_id, role)
				);

				CREATE INDEX idx_system_role_grants_user_id ON system_role_grants(user_id);
				CREATE INDEX idx_system_role_grants_role ON system_role_grants(role);
			`,
		},
		{
			Version:     2,
			Description: "Create org_assignments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS org_assignments (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					assigned_at TIMESTAMP NOT NULL DEFAULT NOW(),
					assigned_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					UNIQUE(user_id, organization_id)
				);

				CREATE INDEX idx_org_assignments_user_id ON org_assignments(user_id);
				CREATE INDEX idx_org_assignments_organization_id ON org_assignments(organization_id);
			`,
		},
	}
}

// RunMigrations applies pending platform migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS platform_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM platform_migrations ORDER BY version")
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
			"INSERT INTO platform_migrations (version, description) VALUES ($1, $2)",
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
