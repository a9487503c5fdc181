package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, 1, "init_schema_migrations"},
		{"0012_create_knot_products.sql", true, 12, "create_knot_products"},
		{"001_invalid.sql", false, 0, ""},       // wrong number format
		{"0001_test", false, 0, ""},             // missing .sql
		{"0001.sql", false, 0, ""},              // missing name
		{"invalid_0001_test.sql", false, 0, ""}, // wrong order
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseFilename(tt.filename)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestChecksumIgnoresPlaceholders(t *testing.T) {
	content := []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (id INT64);")

	assert.Equal(t, checksum(content), checksum([]byte(string(content))))
	assert.NotEqual(t, checksum(content), checksum([]byte("CREATE TABLE other (id INT64);")))
	assert.Len(t, checksum(content), 64)

	assert.Equal(t, "CREATE TABLE `proj.ds.t` (id INT64);", render(content, "proj", "ds"))
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestReadMigrations(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"0002_second.sql": "SELECT 2 FROM `{{PROJECT_ID}}.{{DATASET_ID}}.x`",
		"0001_first.sql":  "SELECT 1",
		"README.md":       "notes",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0003_dir.sql"), 0o755))

	migrations, skipped, err := readMigrations(dir, "proj", "ds")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "second", migrations[1].Name)
	assert.Equal(t, "SELECT 2 FROM `proj.ds.x`", migrations[1].SQL)
	assert.Equal(t, []string{"README.md"}, skipped)
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"0001_a.sql": "SELECT 1",
		"0001_b.sql": "SELECT 2",
	})
	_, _, err := readMigrations(dir, "p", "d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate migration version 0001")
}

func TestPending(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "a", Checksum: "aaa"},
		{Version: 2, Name: "b", Checksum: "bbb"},
		{Version: 3, Name: "c", Checksum: "ccc"},
	}

	todo, err := pending(migrations, []AppliedMigration{{Version: 1, Checksum: "aaa"}, {Version: 2}})
	require.NoError(t, err)
	require.Len(t, todo, 1)
	assert.Equal(t, 3, todo[0].Version)

	_, err = pending(migrations, []AppliedMigration{{Version: 2, Checksum: "changed"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0002_b changed")
}

func TestRepositoryMigrationsAreValid(t *testing.T) {
	dir, err := resolveDir("migrations/bigquery")
	require.NoError(t, err)

	migrations, skipped, err := readMigrations(dir, "proj", "ds")
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "versions are contiguous")
		assert.NotContains(t, m.SQL, "{{", "%s has unreplaced placeholders", m.Filename)
		assert.True(t, strings.Contains(m.SQL, "`proj.ds."), "%s targets the dataset", m.Filename)
	}
}
