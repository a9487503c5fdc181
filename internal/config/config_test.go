package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv("PORT", "")
	t.Setenv("KNOT_API_KEY", "")
	t.Setenv("KNOT_CLIENT_ID", "")
	t.Setenv("KNOT_API_BASE_URL", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "https://api.knotapi.com/v1", cfg.Knot.BaseURL)
	assert.Equal(t, 44, cfg.Knot.Merchants["Amazon"])
	assert.Len(t, cfg.Knot.Merchants, 7)
	assert.False(t, cfg.Knot.Configured())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "altcredit.yaml")
	content := `
server:
  port: "9090"
knot:
  client_id: file-client
  merchants:
    Amazon: 44
warehouse:
  project_id: file-project
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("PORT", "")
	t.Setenv("KNOT_API_KEY", "secret")
	t.Setenv("KNOT_CLIENT_ID", "")
	t.Setenv("BIGQUERY_PROJECT", "env-project")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "file-client", cfg.Knot.ClientID)
	assert.Equal(t, map[string]int{"Amazon": 44}, cfg.Knot.Merchants)
	assert.Equal(t, "env-project", cfg.Warehouse.ProjectID)
	assert.Equal(t, "altcredit", cfg.Warehouse.DatasetID, "absent yaml keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Knot.Configured())
}

func TestLoad_FileWithoutMerchantsKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultMerchants(), cfg.Knot.Merchants)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidInt(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv("KNOT_SYNC_LIMIT", "five")

	_, err := Load("")
	assert.ErrorContains(t, err, "KNOT_SYNC_LIMIT")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Warehouse.DatasetID = ""

	err := cfg.ValidateWarehouse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BIGQUERY_PROJECT")
	assert.Contains(t, err.Error(), "BIGQUERY_DATASET")

	cfg.Nessie.APIKey = "k"
	cfg.Nessie.AccountID = "acct"
	assert.NoError(t, cfg.ValidateNessie())
}
