package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenser/internal/config"
	"licenser/internal/security"
)

func writeKeyPair(t *testing.T, dir, passphrase string) config.SigningConfig {
	t.Helper()
	priv, err := security.GenerateKeyPair()
	require.NoError(t, err)

	privPEM, err := security.EncodePrivateKey(priv, passphrase)
	require.NoError(t, err)
	pubPEM, err := security.EncodePublicKey(&priv.PublicKey)
	require.NoError(t, err)

	cfg := config.SigningConfig{
		PrivateKeyFile: filepath.Join(dir, "private.pem"),
		PublicKeyFile:  filepath.Join(dir, "public.pem"),
		Passphrase:     passphrase,
	}
	require.NoError(t, os.WriteFile(cfg.PrivateKeyFile, privPEM, 0o600))
	require.NoError(t, os.WriteFile(cfg.PublicKeyFile, pubPEM, 0o644))
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestLoadKeys(t *testing.T) {
	cfg := writeKeyPair(t, t.TempDir(), "")

	priv, pub, err := loadKeys(cfg, testLogger())
	require.NoError(t, err)
	assert.NotNil(t, priv)
	assert.NotNil(t, pub)
}

func TestLoadKeysEncryptedPrivateKey(t *testing.T) {
	cfg := writeKeyPair(t, t.TempDir(), "correct horse")

	priv, _, err := loadKeys(cfg, testLogger())
	require.NoError(t, err)
	assert.NotNil(t, priv)

	cfg.Passphrase = "wrong"
	_, _, err = loadKeys(cfg, testLogger())
	assert.Error(t, err)
}

func TestLoadKeysMissingPrivateKeyIsVerifyOnly(t *testing.T) {
	cfg := writeKeyPair(t, t.TempDir(), "")
	require.NoError(t, os.Remove(cfg.PrivateKeyFile))

	priv, pub, err := loadKeys(cfg, testLogger())
	require.NoError(t, err)
	assert.Nil(t, priv)
	assert.NotNil(t, pub)
}

func TestLoadKeysMissingPublicKeyFails(t *testing.T) {
	cfg := writeKeyPair(t, t.TempDir(), "")
	require.NoError(t, os.Remove(cfg.PublicKeyFile))

	_, _, err := loadKeys(cfg, testLogger())
	assert.Error(t, err)
}
