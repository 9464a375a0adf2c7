package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/fleetgrid/fleetgrid/pkg/authz"
)

func newGrantCommand() *Command {
	cmd := &Command{
		Name:        "grant",
		Description: "Grant a system role to a user",
		Flags:       flag.NewFlagSet("grant", flag.ExitOnError),
	}

	dbURL := cmd.Flags.String("db-url", dbURLDefault(), "PostgreSQL connection URL")
	userID := cmd.Flags.Int64("user-id", 0, "User to grant the role to")
	role := cmd.Flags.String("role", "", "System role (super_admin, org_admin, org_manager, support, viewer)")
	grantedBy := cmd.Flags.Int64("granted-by", 0, "Admin user performing the grant")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *userID == 0 {
			return fmt.Errorf("--user-id is required")
		}
		if !authz.SystemRole(*role).Valid() {
			return fmt.Errorf("unknown system role: %q", *role)
		}
		return runGrant(*dbURL, *userID, authz.SystemRole(*role), *grantedBy)
	}
	return cmd
}

func runGrant(dbURL string, userID int64, role authz.SystemRole, grantedBy int64) error {
	db, err := openDB(dbURL)
	if err != nil {
		return err
	}
	defer db.Close()

	grant, err := platformService(db).AddRole(context.Background(), userID, role, grantedBy)
	if err != nil {
		return err
	}
	fmt.Printf("Granted %s to user %d (grant id %d)\n", grant.Role, grant.UserID, grant.ID)
	return nil
}

func newRevokeCommand() *Command {
	cmd := &Command{
		Name:        "revoke",
		Description: "Revoke a system role from a user",
		Flags:       flag.NewFlagSet("revoke", flag.ExitOnError),
	}

	dbURL := cmd.Flags.String("db-url", dbURLDefault(), "PostgreSQL connection URL")
	userID := cmd.Flags.Int64("user-id", 0, "User to revoke the role from")
	role := cmd.Flags.String("role", "", "System role to revoke")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *userID == 0 {
			return fmt.Errorf("--user-id is required")
		}
		if !authz.SystemRole(*role).Valid() {
			return fmt.Errorf("unknown system role: %q", *role)
		}
		return runRevoke(*dbURL, *userID, authz.SystemRole(*role))
	}
	return cmd
}

func runRevoke(dbURL string, userID int64, role authz.SystemRole) error {
	db, err := openDB(dbURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := platformService(db).RemoveRole(context.Background(), userID, role); err != nil {
		return err
	}
	fmt.Printf("Revoked %s from user %d\n", role, userID)
	return nil
}

func newGrantsCommand() *Command {
	cmd := &Command{
		Name:        "grants",
		Description: "List a user's system role grants",
		Flags:       flag.NewFlagSet("grants", flag.ExitOnError),
	}

	dbURL := cmd.Flags.String("db-url", dbURLDefault(), "PostgreSQL connection URL")
	userID := cmd.Flags.Int64("user-id", 0, "User whose grants to list")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *userID == 0 {
			return fmt.Errorf("--user-id is required")
		}
		return runGrants(*dbURL, *userID)
	}
	return cmd
}

func runGrants(dbURL string, userID int64) error {
	db, err := openDB(dbURL)
	if err != nil {
		return err
	}
	defer db.Close()

	grants, err := platformService(db).ListGrants(context.Background(), userID)
	if err != nil {
		return err
	}
	if len(grants) == 0 {
		fmt.Printf("User %d holds no system roles\n", userID)
		return nil
	}
	for _, g := range grants {
		line := fmt.Sprintf("%-12s granted %s", g.Role, g.GrantedAt.Format("2006-01-02 15:04"))
		if g.GrantedBy != nil {
			line += fmt.Sprintf(" by user %d", *g.GrantedBy)
		}
		fmt.Println(line)
	}
	return nil
}
