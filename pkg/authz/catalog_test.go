package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, "builtin", c.Version())
	assert.True(t, c.Contains("devices.read"))
	assert.True(t, c.Contains("billing.manage"))
	assert.False(t, c.Contains("devices.explode"))
}

func TestCatalogValidate(t *testing.T) {
	c := DefaultCatalog()

	t.Run("empty list is legal", func(t *testing.T) {
		assert.NoError(t, c.Validate(nil))
		assert.NoError(t, c.Validate([]string{}))
	})

	t.Run("known tokens pass", func(t *testing.T) {
		assert.NoError(t, c.Validate([]string{"devices.read", "geofences.manage"}))
	})

	t.Run("fails on first unknown token", func(t *testing.T) {
		err := c.Validate([]string{"devices.read", "nope.first", "nope.second"})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.Contains(t, err.Error(), "nope.first")
		assert.NotContains(t, err.Error(), "nope.second")
	})
}

func TestParseCatalog(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		data := []byte(`
version: "2024-11"
permissions:
  - devices.read
  - devices.manage
  - devices.read
`)
		c, err := ParseCatalog(data)
		require.NoError(t, err)
		assert.Equal(t, "2024-11", c.Version())
		// duplicates are collapsed
		assert.Equal(t, []string{"devices.read", "devices.manage"}, c.Permissions())
	})

	t.Run("missing version", func(t *testing.T) {
		_, err := ParseCatalog([]byte("permissions: [devices.read]"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "version")
	})

	t.Run("empty permission list", func(t *testing.T) {
		_, err := ParseCatalog([]byte(`version: "1"`))
		require.Error(t, err)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := ParseCatalog([]byte(`
version: "1"
permissions:
  - devices.read
  - ""
`))
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := ParseCatalog([]byte("{not yaml"))
		require.Error(t, err)
	})
}
