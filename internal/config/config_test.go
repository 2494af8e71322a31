package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ndomog/internal/reconcile"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ndomog.db", filepath.Base(cfg.Database))
	assert.Equal(t, "ndomog", filepath.Base(filepath.Dir(cfg.Database)))
	assert.Equal(t, reconcile.DefaultConfig(), cfg.Reconcile())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := load("", noEnv)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "ndomog.yaml", `
database: /tmp/shop.db
user:
  id: user-7
  name: Bo
sync:
  interval: 5s
  backoff_min: 250ms
  reject_policy: block
activity:
  recent_limit: 10
`)
	cfg, err := load(path, noEnv)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/shop.db", cfg.Database)
	assert.Equal(t, Default().RemoteDatabase, cfg.RemoteDatabase)
	assert.Equal(t, "user-7", cfg.User.ID)
	assert.Equal(t, "Bo", cfg.User.Name)
	assert.Equal(t, 10, cfg.Activity.RecentLimit)

	rc := cfg.Reconcile()
	assert.Equal(t, 5*time.Second, rc.Interval)
	assert.Equal(t, 250*time.Millisecond, rc.BackoffMin)
	assert.Equal(t, time.Minute, rc.BackoffMax)
	assert.Equal(t, reconcile.RejectBlock, rc.RejectPolicy)
}

func TestLoad_EmptyFileIsAllowed(t *testing.T) {
	cfg, err := load(writeFile(t, "empty.yaml", ""), noEnv)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownKeyFails(t *testing.T) {
	path := writeFile(t, "typo.yaml", "databse: /tmp/x.db\n")
	_, err := load(path, noEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "databse")
}

func TestLoad_BadDurationFails(t *testing.T) {
	path := writeFile(t, "bad.yaml", "sync:\n  interval: soon\n")
	_, err := load(path, noEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.yaml"), noEnv)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "ndomog.yaml", "database: /tmp/file.db\nuser:\n  id: from-file\n")
	cfg, err := load(path, envMap(map[string]string{
		EnvDatabase:       "/tmp/env.db",
		EnvRemoteDatabase: "/tmp/remote-env.db",
		EnvUserID:         "from-env",
		EnvUserName:       "Env User",
		EnvSyncInterval:   "90s",
		EnvRejectPolicy:   "block",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.Database)
	assert.Equal(t, "/tmp/remote-env.db", cfg.RemoteDatabase)
	assert.Equal(t, "from-env", cfg.User.ID)
	assert.Equal(t, "Env User", cfg.User.Name)
	assert.Equal(t, Duration(90*time.Second), cfg.Sync.Interval)
	assert.Equal(t, "block", cfg.Sync.RejectPolicy)
}

func TestLoad_EmptyEnvValueIsIgnored(t *testing.T) {
	cfg, err := load("", envMap(map[string]string{EnvDatabase: ""}))
	require.NoError(t, err)
	assert.Equal(t, Default().Database, cfg.Database)
}

func TestLoad_BadEnvDurationFails(t *testing.T) {
	_, err := load("", envMap(map[string]string{EnvSyncInterval: "often"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvSyncInterval)
}

func TestValidate_SchemaViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"empty database", func(c *Config) { c.Database = "" }, "database"},
		{"empty user id", func(c *Config) { c.User.ID = "" }, "user.id"},
		{"zero interval", func(c *Config) { c.Sync.Interval = 0 }, "sync.interval_ms"},
		{"max below min", func(c *Config) { c.Sync.BackoffMax = Duration(time.Millisecond) }, "sync.backoff_max_ms"},
		{"shrinking multiplier", func(c *Config) { c.Sync.BackoffMultiplier = 0.5 }, "sync.backoff_multiplier"},
		{"jitter above one", func(c *Config) { c.Sync.Jitter = 1.5 }, "sync.jitter"},
		{"no attempts", func(c *Config) { c.Sync.MaxAttempts = 0 }, "sync.max_attempts"},
		{"unknown policy", func(c *Config) { c.Sync.RejectPolicy = "retry" }, "sync.reject_policy"},
		{"zero recent limit", func(c *Config) { c.Activity.RecentLimit = 0 }, "activity.recent_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %T: %v", err, err)
			assert.Equal(t, tt.path, verr.Path)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("NDOMOG_TEST_DOTENV_A=from-file\nNDOMOG_TEST_DOTENV_B=from-file\n"), 0o644))

	t.Setenv("NDOMOG_TEST_DOTENV_B", "already-set")
	t.Cleanup(func() { os.Unsetenv("NDOMOG_TEST_DOTENV_A") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("NDOMOG_TEST_DOTENV_A"))
	assert.Equal(t, "already-set", os.Getenv("NDOMOG_TEST_DOTENV_B"))
}

func TestLoadDotEnv_NoFiles(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Database = filepath.Join(dir, "a", "local.db")
	cfg.RemoteDatabase = filepath.Join(dir, "b", "remote.db")

	require.NoError(t, cfg.EnsureDirs())
	assert.DirExists(t, filepath.Join(dir, "a"))
	assert.DirExists(t, filepath.Join(dir, "b"))
}

func TestString_RendersDurations(t *testing.T) {
	out := Default().String()
	assert.Contains(t, out, "interval: 30s")
	assert.Contains(t, out, "reject_policy: skip")
}
