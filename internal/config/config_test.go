package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":3001", cfg.Server.HTTP.Address)
	assert.Equal(t, 5*time.Second, cfg.Match.EndDelay)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, CatalogEmbedded, cfg.Catalog.Source)
	assert.False(t, cfg.Match.RedactHiddenZones)
	assert.Equal(t, []string{"*"}, cfg.Server.WebSocket.AllowedOrigins)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":50051", cfg.Server.GRPC.Address)
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http:
    address: ":8080"
logging:
  level: debug
  format: json
match:
  end_delay: 2s
  redact_hidden_zones: true
  seed: 42
database:
  driver: none
`), 0o644))

	t.Setenv("MUSHI_SERVER_HTTP_ADDRESS", ":9090")
	t.Setenv("MUSHI_AUTH_ADMIN_PASSWORD_HASH", "$2a$10$abc")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.HTTP.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 2*time.Second, cfg.Match.EndDelay)
	assert.True(t, cfg.Match.RedactHiddenZones)
	assert.Equal(t, uint64(42), cfg.Match.Seed)
	assert.Equal(t, DriverNone, cfg.Database.Driver)
	assert.Equal(t, "$2a$10$abc", cfg.Auth.AdminPasswordHash)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MUSHI_MATCH_RANDOM_DECK_ATTEMPTS=3\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("MUSHI_MATCH_RANDOM_DECK_ATTEMPTS") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Match.RandomDeckAttempts)
}

func TestValidateRejectsInconsistentSettings(t *testing.T) {
	cases := map[string]func(c *Config){
		"postgres without url":    func(c *Config) { c.Database.Driver = DriverPostgres },
		"unknown driver":          func(c *Config) { c.Database.Driver = "mysql" },
		"file catalog no path":    func(c *Config) { c.Catalog.Source = CatalogFile },
		"postgres catalog sqlite": func(c *Config) { c.Catalog.Source = CatalogPostgres },
		"negative end delay":      func(c *Config) { c.Match.EndDelay = -time.Second },
		"zero deck attempts":      func(c *Config) { c.Match.RandomDeckAttempts = 0 },
		"bad log level":           func(c *Config) { c.Logging.Level = "verbose" },
		"replay without dir": func(c *Config) {
			c.Replay.Enabled = true
			c.Replay.Directory = ""
		},
		"pool bounds": func(c *Config) {
			c.Database.Driver = DriverPostgres
			c.Database.URL = "postgres://localhost/mushi"
			c.Database.MinConns = 5
			c.Database.MaxConns = 2
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}
