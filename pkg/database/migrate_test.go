package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file in migrations: %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitialMigrationCreatesMediaTables(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, "migrations/000001_create_media_library.up.sql")
	require.NoError(t, err)
	sql := string(data)
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS media_libraries")
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS media_library_items")
	assert.Contains(t, sql, "UNIQUE (media_unique_id)")
	assert.Contains(t, sql, "ON DELETE CASCADE")
}
