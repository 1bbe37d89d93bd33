package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "license_private.pem", cfg.Signing.PrivateKeyFile)
	assert.True(t, cfg.Limits.Enabled)
	assert.Equal(t, 50.0, cfg.Limits.RPS)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LICENSER_SERVER_PORT", "9999")
	t.Setenv("LICENSER_LOGGING_LEVEL", "debug")
	t.Setenv("LICENSER_SIGNING_PASSPHRASE", "hunter2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "hunter2", cfg.Signing.Passphrase)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port too large", "LICENSER_SERVER_PORT", "70000"},
		{"port zero", "LICENSER_SERVER_PORT", "0"},
		{"unknown level", "LICENSER_LOGGING_LEVEL", "verbose"},
		{"unknown output", "LICENSER_LOGGING_OUTPUT", "syslog"},
		{"bad rps", "LICENSER_LIMITS_RPS", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "licensed.yaml")
	content := []byte("signing:\n  private_key_file: /etc/licenser/key.pem\n  public_key_file: /etc/licenser/pub.pem\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/licenser/key.pem", cfg.Signing.PrivateKeyFile)
	assert.Equal(t, "/etc/licenser/pub.pem", cfg.Signing.PublicKeyFile)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "licensed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
