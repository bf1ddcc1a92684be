package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8970, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.Paths.ActivationFile)
	assert.NotEmpty(t, cfg.Paths.SaltFile)
	assert.Nil(t, cfg.SigningSecret(), "embedded secret used unless overridden")
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("BEIRUT_SERVER_PORT", "9100")
	t.Setenv("BEIRUT_LOGGING_LEVEL", "debug")
	t.Setenv("BEIRUT_LICENSE_SECRET", "override-secret")
	t.Setenv("BEIRUT_PATHS_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []byte("override-secret"), cfg.SigningSecret())
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("BEIRUT_SERVER_PORT", "70000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestMergePrecedence(t *testing.T) {
	file := Config{}
	file.Server.Port = 9000
	file.Logging.Level = "warn"
	file.License.Secret = "file-secret"

	env := Config{}
	env.Server.Port = 9100 // env wins
	// Logging level unset in env: file value applies.

	merged := merge(file, env)
	assert.Equal(t, 9100, merged.Server.Port)
	assert.Equal(t, "warn", merged.Logging.Level)
	assert.Equal(t, "file-secret", merged.License.Secret)
}

func TestGetPaths(t *testing.T) {
	paths, err := GetPaths()
	require.NoError(t, err)

	assert.NotEmpty(t, paths.ExecutableDir)
	assert.Contains(t, paths.ActivationFile, "activation.json")
	assert.Contains(t, paths.SaltFile, "activation.salt")
	assert.Contains(t, paths.LogFile, "beirut-pos.log")
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{}
	cfg.Paths.DataDir = dir + "/data"
	cfg.Paths.LogsDir = dir + "/logs"

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, cfg.Paths.DataDir)
	assert.DirExists(t, cfg.Paths.LogsDir)
}
