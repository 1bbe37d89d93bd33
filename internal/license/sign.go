package license

import (
	"crypto"
	"encoding/base64"
)

// SignatureAlgorithm is the fixed algorithm identifier handed to the Signer
// capability. The scheme is not negotiable per document; the identifier is
// part of the protocol, not of the serialized form.
const SignatureAlgorithm = "ECDSA-SHA512"

// Signer is the asymmetric-crypto capability the protocol is built on. Key
// parsing and the signature primitives live behind it; this package only
// decides which bytes the signature covers.
//
// Implementations must be safe for concurrent use with per-call key
// material.
type Signer interface {
	// Sign returns raw signature bytes over message.
	Sign(algorithm string, key crypto.PrivateKey, message []byte) ([]byte, error)
	// Verify reports whether sig is a valid signature over message. A
	// signature that merely does not match is (false, nil); unusable key
	// material is an error.
	Verify(algorithm string, key crypto.PublicKey, message, sig []byte) (bool, error)
}

// Sign produces a new record carrying a signature over the canonical form
// of r without its signature element. The receiver is not modified. The
// returned record retains the exact canonical element that was signed, so
// it can be verified directly as well as after a round-trip through text.
func (r *Record) Sign(signer Signer, key crypto.PrivateKey) (*Record, error) {
	body := r.element(false)
	message, err := canonicalBytes(body)
	if err != nil {
		return nil, &SigningError{Err: err}
	}
	sig, err := signer.Sign(SignatureAlgorithm, key, message)
	if err != nil {
		return nil, &SigningError{Err: err}
	}

	signed := *r
	signed.signature = base64.StdEncoding.EncodeToString(sig)
	signed.rawBody = body
	return &signed, nil
}

// Verify checks r's signature against the retained signed body.
//
// Only records that hold a signed byte history can be verified: records
// obtained by parsing, or returned by Sign. A freshly built record fails
// closed with ErrMissingRawBody — this is the contract, not an oversight,
// because there are no original bytes to check a fresh record against.
//
// A clean mismatch is (false, nil). Malformed signature encoding or
// unusable key material is a *VerificationError.
//
// Sub-licenses are never verified here; walk Sublicenses and verify each
// child against its own key explicitly.
func (r *Record) Verify(signer Signer, key crypto.PublicKey) (bool, error) {
	if r.signature == "" {
		return false, ErrMissingSignature
	}
	if r.rawBody == nil {
		return false, ErrMissingRawBody
	}
	sig, err := base64.StdEncoding.DecodeString(r.signature)
	if err != nil {
		return false, &VerificationError{Err: err}
	}
	message, err := canonicalBytes(r.rawBody)
	if err != nil {
		return false, &VerificationError{Err: err}
	}
	ok, err := signer.Verify(SignatureAlgorithm, key, message, sig)
	if err != nil {
		return false, &VerificationError{Err: err}
	}
	return ok, nil
}
