package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"

	"github.com/fleetgrid/fleetgrid/pkg/audit"
	"github.com/fleetgrid/fleetgrid/pkg/auth"
	"github.com/fleetgrid/fleetgrid/pkg/authz"
	"github.com/fleetgrid/fleetgrid/pkg/groups"
	"github.com/fleetgrid/fleetgrid/pkg/orgs"
	"github.com/fleetgrid/fleetgrid/pkg/platform"
)

func newBootstrapCommand() *Command {
	cmd := &Command{
		Name:        "bootstrap",
		Description: "Run migrations and create the first super admin",
		Flags:       flag.NewFlagSet("bootstrap", flag.ExitOnError),
	}

	dbURL := cmd.Flags.String("db-url", dbURLDefault(), "PostgreSQL connection URL")
	username := cmd.Flags.String("username", "", "Username for the first super admin")
	email := cmd.Flags.String("email", "", "Email for the first super admin")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *username == "" {
			return fmt.Errorf("--username is required")
		}
		return runBootstrap(*dbURL, *username, *email)
	}
	return cmd
}

func runBootstrap(dbURL, username, email string) error {
	db, err := openDB(dbURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrateAll(ctx, db); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	fmt.Println("Migrations applied")

	users := auth.NewUserStore(db)
	user, err := users.CreateUser(ctx, username, email, "", false)
	if err != nil {
		if authz.IsConflict(err) {
			// Idempotent bootstrap: reuse the existing account.
			user, err = users.GetUserByUsername(ctx, username)
		}
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
	}

	svc := platformService(db)
	if _, err := svc.AddRole(ctx, user.ID, authz.SystemRoleSuperAdmin, user.ID); err != nil {
		if authz.IsConflict(err) {
			fmt.Printf("User %q (id %d) is already a super admin\n", user.Username, user.ID)
			return nil
		}
		return fmt.Errorf("failed to grant super_admin: %w", err)
	}

	fmt.Printf("User %q (id %d) is now a super admin\n", user.Username, user.ID)
	return nil
}

// migrateAll applies every scope's migrations, auth first.
func migrateAll(ctx context.Context, db *sql.DB) error {
	for _, run := range []func(context.Context, *sql.DB) error{
		auth.RunMigrations,
		orgs.RunMigrations,
		platform.RunMigrations,
		groups.RunMigrations,
		audit.RunMigrations,
	} {
		if err := run(ctx, db); err != nil {
			return err
		}
	}
	return nil
}
