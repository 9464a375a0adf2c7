package authz

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the versioned vocabulary of valid permission tokens. It is
// loaded once at startup and never mutated afterwards, so lookups need no
// locking.
type Catalog struct {
	version string
	tokens  map[string]struct{}
	ordered []string
}

// catalogFile is the YAML shape of a permission catalog.
type catalogFile struct {
	Version     string   `yaml:"version"`
	Permissions []string `yaml:"permissions"`
}

// defaultPermissions is the built-in catalog seeded for every deployment.
var defaultPermissions = []string{
	"devices.read",
	"devices.manage",
	"devices.commands",
	"locations.read",
	"locations.manage",
	"geofences.read",
	"geofences.manage",
	"alerts.read",
	"alerts.manage",
	"reports.read",
	"reports.export",
	"members.read",
	"members.manage",
	"roles.read",
	"roles.manage",
	"billing.read",
	"billing.manage",
	"settings.read",
	"settings.manage",
	"audit.read",
}

// DefaultCatalog returns the built-in permission catalog.
func DefaultCatalog() *Catalog {
	c, _ := newCatalog("builtin", defaultPermissions)
	return c
}

// LoadCatalog reads a permission catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses a permission catalog from YAML bytes.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if file.Version == "" {
		return nil, fmt.Errorf("catalog version is required")
	}
	if len(file.Permissions) == 0 {
		return nil, fmt.Errorf("catalog must define at least one permission")
	}
	return newCatalog(file.Version, file.Permissions)
}

func newCatalog(version string, permissions []string) (*Catalog, error) {
	tokens := make(map[string]struct{}, len(permissions))
	ordered := make([]string, 0, len(permissions))
	for _, p := range permissions {
		if p == "" {
			return nil, fmt.Errorf("catalog contains an empty permission token")
		}
		if _, dup := tokens[p]; dup {
			continue
		}
		tokens[p] = struct{}{}
		ordered = append(ordered, p)
	}
	return &Catalog{version: version, tokens: tokens, ordered: ordered}, nil
}

// Version returns the catalog version string.
func (c *Catalog) Version() string {
	return c.version
}

// Permissions returns all tokens in the catalog in declaration order.
func (c *Catalog) Permissions() []string {
	out := make([]string, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Contains reports whether token is a valid permission.
func (c *Catalog) Contains(token string) bool {
	_, ok := c.tokens[token]
	return ok
}

// Validate checks a permission list against the catalog. It fails on the
// first token not present in the vocabulary. An empty list is legal: a
// membership with no permissions is a valid state.
func (c *Catalog) Validate(permissions []string) error {
	for _, token := range permissions {
		if _, ok := c.tokens[token]; !ok {
			return Validation("unknown permission: %s", token)
		}
	}
	return nil
}
