package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/fleetgrid/fleetgrid/pkg/platform"
)

const defaultDBURL = "postgres://localhost/fleetgrid?sslmode=disable"

// dbURLDefault prefers FLEETGRID_POSTGRES_URL over the local default.
func dbURLDefault() string {
	if url := os.Getenv("FLEETGRID_POSTGRES_URL"); url != "" {
		return url
	}
	return defaultDBURL
}

func openDB(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// platformService builds a platform service without cache or audit trail.
// CLI invocations are one-shot; neither helps.
func platformService(db *sql.DB) *platform.Service {
	return platform.NewService(db, nil, nil, nil)
}
