// Package security provides the cryptographic collaborators consumed by
// the license package: the ECDSA Signer capability and PEM key handling,
// including passphrase-protected private key files.
package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha512"
	"fmt"
)

// AlgorithmECDSASHA512 is the only signature algorithm this signer speaks:
// ECDSA with a SHA-512 digest and ASN.1 DER signature encoding.
const AlgorithmECDSASHA512 = "ECDSA-SHA512"

// ECDSASigner implements the license Signer capability. It is stateless;
// a single value may be shared across goroutines.
type ECDSASigner struct{}

// NewECDSASigner returns the ECDSA signer.
func NewECDSASigner() ECDSASigner { return ECDSASigner{} }

// Sign signs message with the given ECDSA private key.
func (ECDSASigner) Sign(algorithm string, key crypto.PrivateKey, message []byte) ([]byte, error) {
	if algorithm != AlgorithmECDSASHA512 {
		return nil, fmt.Errorf("security: unsupported signature algorithm %q", algorithm)
	}
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("security: expected *ecdsa.PrivateKey, got %T", key)
	}
	digest := sha512.Sum512(message)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("security: ecdsa sign: %w", err)
	}
	return sig, nil
}

// Verify reports whether sig is a valid ECDSA signature over message. A
// signature that fails to parse or does not match is (false, nil); only
// unusable key material is an error.
func (ECDSASigner) Verify(algorithm string, key crypto.PublicKey, message, sig []byte) (bool, error) {
	if algorithm != AlgorithmECDSASHA512 {
		return false, fmt.Errorf("security: unsupported signature algorithm %q", algorithm)
	}
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return false, fmt.Errorf("security: expected *ecdsa.PublicKey, got %T", key)
	}
	digest := sha512.Sum512(message)
	return ecdsa.VerifyASN1(pub, digest[:], sig), nil
}
