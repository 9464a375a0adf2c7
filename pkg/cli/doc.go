// Package cli implements the fleetgrid admin command line tool.
//
// The tool talks to PostgreSQL directly rather than going through the HTTP
// API, so it works before the first super admin exists and while the API is
// down.
//
// # Commands
//
//   - bootstrap: run all migrations and create the first super admin
//   - grant / revoke: manage a user's system role grants
//   - grants: list a user's system role grants
//   - token: mint an API token for a user, printing the plaintext once
//
// # Usage
//
//	fleetgrid-cli bootstrap --db-url postgres://localhost/fleetgrid --username admin
//	fleetgrid-cli grant --user-id 7 --role support --granted-by 1
//	fleetgrid-cli token --user-id 7 --name ci --ttl 720h
package cli
