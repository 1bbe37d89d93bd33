// Package license implements signed license documents: building,
// canonical serialization, and the sign/verify protocol over an external
// Signer capability.
//
// # Architecture Overview
//
// The package consists of four pieces:
//
//	- Record: the immutable license document (id, kind, quantity,
//	  expiration, customer, attributes, features, sub-licenses)
//	- Builder: fluent accumulator that materializes Records
//	- Canonical codec: the fixed XML form shared by storage and signing
//	- Protocol: Sign and Verify, which decide exactly which bytes a
//	  signature covers
//
// # Canonical Form
//
// A record serializes to a sparse <License> tree in a fixed element order.
// Fields equal to their zero value are omitted entirely, the expiration
// uses a fixed RFC-1123/GMT layout, and map keys are emitted sorted. The
// resulting compact byte stream is the compatibility contract: signer and
// verifier must produce it identically, forever.
//
// # Signing and Verification
//
// Sign serializes the record without its Signature element and hands those
// bytes to the Signer capability (ECDSA over SHA-512). Verification never
// re-serializes the structured fields: every parsed or signed record
// retains the exact element tree its signature covers, and Verify replays
// those retained bytes. A record built in memory and never signed or
// parsed has no such history and cannot be verified.
//
// # Sub-licenses
//
// Records embed complete child records, each independently built and
// signed bottom-up. Parent and child signatures are never combined:
// verifying a parent says nothing about its children, and a validly signed
// child re-attached to a different parent still verifies. Callers needing
// tamper evidence over the child set must bind it themselves.
package license
