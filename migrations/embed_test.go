package migrations

import (
	"io/fs"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsArePaired(t *testing.T) {
	src, err := iofs.New(FS, ".")
	require.NoError(t, err)
	defer src.Close()

	version, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	up, ident, err := src.ReadUp(version)
	require.NoError(t, err)
	defer up.Close()
	assert.Equal(t, "create_schema", ident)

	down, _, err := src.ReadDown(version)
	require.NoError(t, err)
	down.Close()
}

func TestSchemaMatchesRepositoryConflictKey(t *testing.T) {
	body, err := fs.ReadFile(FS, "001_create_schema.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "UNIQUE (grain, dteday, hr)")
	assert.Contains(t, string(body), "loaded_at")
}
