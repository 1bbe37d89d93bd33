package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/crypto/scrypt"
)

// PEM block types for key material.
const (
	pemTypePrivate          = "PRIVATE KEY"
	pemTypeEncryptedPrivate = "ENCRYPTED PRIVATE KEY"
	pemTypePublic           = "PUBLIC KEY"
)

// scrypt parameters for the passphrase envelope (OWASP recommended
// minimums). Recorded in the PEM headers so they can be raised later
// without breaking existing key files.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32 // AES-256
	saltLen      = 32
)

// ErrWrongPassphrase is returned when an encrypted private key cannot be
// opened with the supplied passphrase.
var ErrWrongPassphrase = errors.New("security: wrong passphrase or corrupted key file")

// GenerateKeyPair creates a fresh P-521 ECDSA key pair. P-521 pairs with
// the SHA-512 digest used by the signer.
func GenerateKeyPair() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("security: generate key pair: %w", err)
	}
	return key, nil
}

// EncodePrivateKey renders the private key as PEM (PKCS#8). With a
// non-empty passphrase the DER bytes are sealed with AES-256-GCM under a
// scrypt-derived key; salt, nonce, and KDF parameters travel in the PEM
// headers.
func EncodePrivateKey(key *ecdsa.PrivateKey, passphrase string) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("security: marshal private key: %w", err)
	}
	if passphrase == "" {
		return pem.EncodeToMemory(&pem.Block{Type: pemTypePrivate, Bytes: der}), nil
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("security: generate salt: %w", err)
	}
	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("security: generate nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, der, nil)

	block := &pem.Block{
		Type: pemTypeEncryptedPrivate,
		Headers: map[string]string{
			"KDF":   "scrypt",
			"N":     strconv.Itoa(scryptN),
			"R":     strconv.Itoa(scryptR),
			"P":     strconv.Itoa(scryptP),
			"Salt":  hex.EncodeToString(salt),
			"Nonce": hex.EncodeToString(nonce),
		},
		Bytes: sealed,
	}
	return pem.EncodeToMemory(block), nil
}

// DecodePrivateKey parses a PEM private key, opening the passphrase
// envelope when present. An empty passphrase with an encrypted key, or a
// wrong passphrase, yields ErrWrongPassphrase.
func DecodePrivateKey(pemBytes []byte, passphrase string) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("security: no PEM block found in private key data")
	}

	der := block.Bytes
	switch block.Type {
	case pemTypePrivate:
	case pemTypeEncryptedPrivate:
		if block.Headers["KDF"] != "scrypt" {
			return nil, fmt.Errorf("security: unsupported key KDF %q", block.Headers["KDF"])
		}
		salt, err := hex.DecodeString(block.Headers["Salt"])
		if err != nil || len(salt) == 0 {
			return nil, errors.New("security: malformed salt header in encrypted key")
		}
		nonce, err := hex.DecodeString(block.Headers["Nonce"])
		if err != nil || len(nonce) == 0 {
			return nil, errors.New("security: malformed nonce header in encrypted key")
		}
		aead, err := newAEAD(passphrase, salt)
		if err != nil {
			return nil, err
		}
		if len(nonce) != aead.NonceSize() {
			return nil, errors.New("security: malformed nonce header in encrypted key")
		}
		der, err = aead.Open(nil, nonce, block.Bytes, nil)
		if err != nil {
			return nil, ErrWrongPassphrase
		}
	default:
		return nil, fmt.Errorf("security: unexpected PEM block type %q", block.Type)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		// Accept legacy SEC1 encoding as well.
		if ecKey, ecErr := x509.ParseECPrivateKey(der); ecErr == nil {
			return ecKey, nil
		}
		return nil, fmt.Errorf("security: parse private key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("security: private key is %T, want *ecdsa.PrivateKey", parsed)
	}
	return key, nil
}

// EncodePublicKey renders the public key as PKIX PEM.
func EncodePublicKey(key *ecdsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("security: marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePublic, Bytes: der}), nil
}

// DecodePublicKey parses a PKIX PEM public key.
func DecodePublicKey(pemBytes []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("security: no PEM block found in public key data")
	}
	if block.Type != pemTypePublic {
		return nil, fmt.Errorf("security: unexpected PEM block type %q", block.Type)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("security: parse public key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("security: public key is %T, want *ecdsa.PublicKey", parsed)
	}
	return key, nil
}

func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("security: derive key: %w", err)
	}
	blockCipher, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("security: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(blockCipher)
	if err != nil {
		return nil, fmt.Errorf("security: init gcm: %w", err)
	}
	return aead, nil
}
