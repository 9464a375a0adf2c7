package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/fleetgrid/fleetgrid/pkg/auth"
)

func newTokenCommand() *Command {
	cmd := &Command{
		Name:        "token",
		Description: "Mint an API token for a user",
		Flags:       flag.NewFlagSet("token", flag.ExitOnError),
	}

	dbURL := cmd.Flags.String("db-url", dbURLDefault(), "PostgreSQL connection URL")
	userID := cmd.Flags.Int64("user-id", 0, "User the token belongs to")
	name := cmd.Flags.String("name", "", "Token name")
	description := cmd.Flags.String("description", "", "Token description")
	ttl := cmd.Flags.Duration("ttl", 0, "Token lifetime (0 means no expiry)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *userID == 0 {
			return fmt.Errorf("--user-id is required")
		}
		if *name == "" {
			return fmt.Errorf("--name is required")
		}
		return runToken(*dbURL, *userID, *name, *description, *ttl)
	}
	return cmd
}

func runToken(dbURL string, userID int64, name, description string, ttl time.Duration) error {
	db, err := openDB(dbURL)
	if err != nil {
		return err
	}
	defer db.Close()

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	tm := auth.NewTokenManager(db, nil)
	apiToken, plaintext, err := tm.CreateToken(context.Background(), userID, name, description, expiresAt)
	if err != nil {
		return err
	}

	fmt.Printf("Token %q created (id %d)\n", apiToken.Name, apiToken.ID)
	if apiToken.ExpiresAt != nil {
		fmt.Printf("Expires: %s\n", apiToken.ExpiresAt.Format(time.RFC3339))
	}
	// The plaintext is shown exactly once; only the hash is stored.
	fmt.Printf("\n%s\n", plaintext)
	return nil
}
