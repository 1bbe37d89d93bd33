package license

import (
	"errors"
	"fmt"
)

// Field names reported by MalformedRecordError.
const (
	FieldDocument    = "document"
	FieldID          = "id"
	FieldKind        = "kind"
	FieldQuantity    = "quantity"
	FieldExpiration  = "expiration"
	FieldVersion     = "version"
	FieldSublicenses = "sublicenses"
)

// MalformedRecordError reports a structural parse failure. Parsing is
// all-or-nothing: the first malformed field aborts the whole document.
type MalformedRecordError struct {
	Field string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("license: malformed record (%s): %v", e.Field, e.Err)
	}
	return fmt.Sprintf("license: malformed record (%s)", e.Field)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

func malformed(field string, err error) error {
	return &MalformedRecordError{Field: field, Err: err}
}

func malformedf(field, format string, args ...any) error {
	return &MalformedRecordError{Field: field, Err: fmt.Errorf(format, args...)}
}

// Verification preconditions. These are ordinary outcomes of asking to
// verify a record that cannot support it, not crypto failures: a record
// with no signature, or one that was built in memory and therefore has no
// signed byte history to check against.
var (
	ErrMissingSignature = errors.New("license: record carries no signature")
	ErrMissingRawBody   = errors.New("license: record retains no signed body; only parsed or freshly signed records can be verified")
)

// VerificationError reports that verification could not be carried out at
// all: malformed signature encoding or unusable key material. It is
// distinct from a clean mismatch, which Verify reports as (false, nil).
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("license: verification failed: %v", e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// SigningError propagates a failure from the Signer capability.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("license: signing failed: %v", e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }
