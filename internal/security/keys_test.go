package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPairPEMRoundTrip(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)

	t.Run("private key without passphrase", func(t *testing.T) {
		pemBytes, err := EncodePrivateKey(key, "")
		require.NoError(t, err)
		assert.Contains(t, string(pemBytes), "BEGIN PRIVATE KEY")

		decoded, err := DecodePrivateKey(pemBytes, "")
		require.NoError(t, err)
		assert.True(t, key.Equal(decoded))
	})

	t.Run("public key", func(t *testing.T) {
		pemBytes, err := EncodePublicKey(&key.PublicKey)
		require.NoError(t, err)
		assert.Contains(t, string(pemBytes), "BEGIN PUBLIC KEY")

		decoded, err := DecodePublicKey(pemBytes)
		require.NoError(t, err)
		assert.True(t, key.PublicKey.Equal(decoded))
	})
}

func TestEncryptedPrivateKey(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)

	pemBytes, err := EncodePrivateKey(key, "correct horse battery staple")
	require.NoError(t, err)
	text := string(pemBytes)
	assert.Contains(t, text, "BEGIN ENCRYPTED PRIVATE KEY")
	assert.Contains(t, text, "KDF: scrypt")
	assert.NotContains(t, text, "BEGIN PRIVATE KEY\n", "plaintext block must not appear")

	t.Run("opens with the right passphrase", func(t *testing.T) {
		decoded, err := DecodePrivateKey(pemBytes, "correct horse battery staple")
		require.NoError(t, err)
		assert.True(t, key.Equal(decoded))
	})

	t.Run("wrong passphrase is a clean error", func(t *testing.T) {
		_, err := DecodePrivateKey(pemBytes, "wrong")
		assert.ErrorIs(t, err, ErrWrongPassphrase)
	})

	t.Run("missing passphrase is a clean error", func(t *testing.T) {
		_, err := DecodePrivateKey(pemBytes, "")
		assert.ErrorIs(t, err, ErrWrongPassphrase)
	})

	t.Run("fresh salt per encode", func(t *testing.T) {
		again, err := EncodePrivateKey(key, "correct horse battery staple")
		require.NoError(t, err)
		assert.NotEqual(t, string(pemBytes), string(again))
	})
}

func TestDecodeRejectsGarbage(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not pem", "definitely not a key"},
		{"wrong block type", "-----BEGIN CERTIFICATE-----\nZm9v\n-----END CERTIFICATE-----\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePrivateKey([]byte(tt.input), "")
			assert.Error(t, err)
			_, err = DecodePublicKey([]byte(tt.input))
			assert.Error(t, err)
		})
	}

	t.Run("tampered ciphertext", func(t *testing.T) {
		key, err := GenerateKeyPair()
		require.NoError(t, err)
		pemBytes, err := EncodePrivateKey(key, "pw")
		require.NoError(t, err)

		// Flip a character inside the base64 body.
		text := string(pemBytes)
		bodyStart := strings.Index(text, "\n\n") + 2
		mutated := []byte(text)
		if mutated[bodyStart] == 'A' {
			mutated[bodyStart] = 'B'
		} else {
			mutated[bodyStart] = 'A'
		}
		_, err = DecodePrivateKey(mutated, "pw")
		assert.Error(t, err)
	})
}
