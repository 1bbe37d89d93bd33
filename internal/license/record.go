package license

import (
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// Kind categorizes a license.
type Kind int

const (
	KindNone Kind = iota
	KindTrial
	KindStandard
	KindUnrestricted
)

// String returns the canonical token for the kind as it appears in the
// serialized document.
func (k Kind) String() string {
	switch k {
	case KindTrial:
		return "Trial"
	case KindStandard:
		return "Standard"
	case KindUnrestricted:
		return "Unrestricted"
	default:
		return "None"
	}
}

// ParseKind maps a canonical token back to a Kind. The token set is closed;
// anything else is rejected.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "None":
		return KindNone, true
	case "Trial":
		return KindTrial, true
	case "Standard":
		return KindStandard, true
	case "Unrestricted":
		return KindUnrestricted, true
	}
	return KindNone, false
}

// Customer identifies who a license was issued to. Both fields are optional;
// attaching an empty Customer is distinct from attaching none at all.
type Customer struct {
	Name  string
	Email string
}

// NeverExpires is the sentinel expiration meaning the license does not
// expire. It serializes to MaxDateString, so an explicit far-future
// expiration and "no expiration" are indistinguishable on the wire.
var NeverExpires = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// MaxDateString is the fixed serialized form of NeverExpires.
const MaxDateString = "Fri, 31 Dec 9999 23:59:59 GMT"

// Record is a single license document. Records are immutable: they are
// produced either by a Builder or by parsing serialized text, and signing
// returns a new Record rather than mutating the receiver.
//
// A Record obtained by parsing (or by signing) retains the exact element
// tree its signature covers. Verification re-serializes that retained tree,
// never a fresh canonicalization of the structured fields, so whitespace or
// codec differences in later re-serializations cannot break it.
type Record struct {
	id          uuid.UUID
	kind        Kind
	quantity    int
	expiration  time.Time
	customer    *Customer
	attributes  map[string]string
	features    map[string]string
	sublicenses []*Record
	version     int
	signature   string

	// rawBody is the signable sub-tree (signature element removed). Nil for
	// records that were built but never signed or parsed.
	rawBody *etree.Element
}

// ID returns the license identifier. The zero UUID means no identifier was
// assigned.
func (r *Record) ID() uuid.UUID { return r.id }

// Kind returns the license category.
func (r *Record) Kind() Kind { return r.kind }

// Quantity returns the licensed seat/usage count. Zero means the quantity
// was never set; an explicit zero-seat grant is not representable.
func (r *Record) Quantity() int { return r.quantity }

// Expiration returns the absolute expiration time, or NeverExpires.
func (r *Record) Expiration() time.Time { return r.expiration }

// Expired reports whether the license expiration lies in the past.
func (r *Record) Expired(now time.Time) bool { return now.After(r.expiration) }

// Customer returns a copy of the customer the license was issued to, or nil.
func (r *Record) Customer() *Customer {
	if r.customer == nil {
		return nil
	}
	c := *r.customer
	return &c
}

// Attribute returns the named license attribute and whether it is present.
func (r *Record) Attribute(name string) (string, bool) {
	v, ok := r.attributes[name]
	return v, ok
}

// Attributes returns a copy of the license attribute map.
func (r *Record) Attributes() map[string]string { return copyMap(r.attributes) }

// Feature returns the named product feature and whether it is present.
func (r *Record) Feature(name string) (string, bool) {
	v, ok := r.features[name]
	return v, ok
}

// Features returns a copy of the product feature map.
func (r *Record) Features() map[string]string { return copyMap(r.features) }

// Sublicenses returns the embedded child records in order. Children are
// complete records with their own optional signatures; verifying the parent
// never verifies them. Callers that need tamper evidence over the child set
// must bind it themselves, for example by recording a digest of the set as
// a parent attribute before signing the parent.
func (r *Record) Sublicenses() []*Record {
	if len(r.sublicenses) == 0 {
		return nil
	}
	out := make([]*Record, len(r.sublicenses))
	copy(out, r.sublicenses)
	return out
}

// Version returns the structural document version; zero means unset.
func (r *Record) Version() int { return r.version }

// Signature returns the base64-encoded signature, or "" if unsigned.
func (r *Record) Signature() string { return r.signature }

// Signed reports whether the record carries a signature.
func (r *Record) Signed() bool { return r.signature != "" }

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
