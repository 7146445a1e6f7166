package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "server"
log_level = "debug"

[postgres]
host = "db.internal"
database = "mint"

[mint]
lock_ttl = "30s"

[chain]
rpc_url = "https://rpc.example.com"
admin_addresses = ["0x3333333333333333333333333333333333333333"]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "mint", cfg.Postgres.Database)
	assert.Equal(t, 30*time.Second, cfg.Mint.LockTTL.Duration)
	require.Len(t, cfg.Chain.Admins(), 1)

	// Untouched sections keep their defaults.
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DUTCHMINT_POSTGRES_PASSWORD", "s3cret")
	t.Setenv("DUTCHMINT_REDIS_DB", "4")
	t.Setenv("DUTCHMINT_ARCHIVE_ENABLED", "true")
	t.Setenv("DUTCHMINT_MINT_LOCK_TTL", "5s")
	t.Setenv("DUTCHMINT_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "s3cret", cfg.Postgres.Password)
	assert.Equal(t, 4, cfg.Redis.DB)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Mint.LockTTL.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Redis.Addr = ""
	cfg.Mint.LockTTL.Duration = 0
	cfg.Chain.AdminAddresses = []string{"not-an-address"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "lock_ttl")
	assert.Contains(t, err.Error(), "not-an-address")
}

func TestValidateArchiveRequiresS3(t *testing.T) {
	cfg := Defaults()
	cfg.Archive.Enabled = true
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: bucket")
}
