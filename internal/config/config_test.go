// ABOUTME: Tests for configuration loading, validation, and env expansion
// ABOUTME: Covers YAML parsing, duration conversion, and required-field checks

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:8080"

database:
  path: "/tmp/scry-test.db"

auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"

agents:
  profile_dir: "/etc/scry/agents"
  idle_timeout: "30m"
  evict_interval: "10m"

jobs:
  retention: "1h"
  purge_interval: "5m"

logging:
  level: "debug"
  format: "json"

telemetry:
  enabled: true
  exporter: "stdout"
  interval: "30s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/scry-test.db", cfg.Database.Path)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Auth.JWTSecret)
	assert.Equal(t, "/etc/scry/agents", cfg.Agents.ProfileDir)
	assert.Equal(t, 30*time.Minute, cfg.Agents.IdleTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Agents.EvictInterval)
	assert.Equal(t, time.Hour, cfg.Jobs.Retention)
	assert.Equal(t, 5*time.Minute, cfg.Jobs.PurgeInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "stdout", cfg.Telemetry.Exporter)
	assert.Equal(t, 30*time.Second, cfg.Telemetry.Interval)
}

func TestLoadMinimalConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/scry.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Optional durations stay zero; consumers apply their own defaults.
	assert.Zero(t, cfg.Agents.IdleTimeout)
	assert.Zero(t, cfg.Jobs.Retention)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("SCRY_TEST_SECRET", "super-secret-value")
	t.Setenv("SCRY_TEST_DB", "/tmp/from-env.db")

	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "${SCRY_TEST_DB}"
auth:
  jwt_secret: "${SCRY_TEST_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-env.db", cfg.Database.Path)
	assert.Equal(t, "super-secret-value", cfg.Auth.JWTSecret)
}

func TestLoadUnsetEnvVarExpandsEmpty(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/scry.db"
auth:
  jwt_secret: "${SCRY_DEFINITELY_UNSET_VAR}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [this is: not yaml\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/scry.db"
jobs:
  retention: "banana"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobs.retention")
}

func TestValidateRequiresHTTPAddr(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/scry.db"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.http_addr")
}

func TestValidateTailscaleReplacesHTTPAddr(t *testing.T) {
	path := writeConfig(t, `
tailscale:
  enabled: true
  hostname: "scry-gateway"
database:
  path: "/tmp/scry.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Tailscale.Enabled)
}

func TestValidateTailscaleRequiresHostname(t *testing.T) {
	path := writeConfig(t, `
tailscale:
  enabled: true
database:
  path: "/tmp/scry.db"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tailscale.hostname")
}

func TestValidateRequiresDatabasePath(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path")
}
