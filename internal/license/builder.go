package license

import (
	"crypto"
	"time"

	"github.com/google/uuid"
)

// Builder accumulates license fields and materializes immutable Records.
// Every setter overwrites prior state; the map and sub-license setters come
// in replace-all and add-one flavors. A Builder is owned by a single caller
// and is not safe for concurrent use.
//
// The builder enforces no cross-field rules (for example "Standard licenses
// need features"); that is deliberately left to callers.
type Builder struct {
	id          uuid.UUID
	kind        Kind
	quantity    int
	expiration  time.Time
	customer    *Customer
	attributes  map[string]string
	features    map[string]string
	sublicenses []*Record
	version     int
}

// New returns an empty Builder. An untouched Builder creates the minimal
// record: no id, KindNone, no quantity, never expiring, nothing attached.
func New() *Builder {
	return &Builder{expiration: NeverExpires}
}

// ID sets the license identifier.
func (b *Builder) ID(id uuid.UUID) *Builder {
	b.id = id
	return b
}

// Kind sets the license category.
func (b *Builder) Kind(k Kind) *Builder {
	b.kind = k
	return b
}

// Quantity sets the seat/usage count. Zero and negative values mean unset;
// the canonical form cannot express an explicit zero-seat grant.
func (b *Builder) Quantity(n int) *Builder {
	if n < 0 {
		n = 0
	}
	b.quantity = n
	return b
}

// ExpiresAt sets the absolute expiration time.
func (b *Builder) ExpiresAt(t time.Time) *Builder {
	b.expiration = t.UTC()
	return b
}

// NeverExpire resets the expiration to the never-expires sentinel.
func (b *Builder) NeverExpire() *Builder {
	b.expiration = NeverExpires
	return b
}

// LicensedTo attaches customer details. Empty name and email still attach a
// customer; use no call at all for an anonymous license.
func (b *Builder) LicensedTo(name, email string) *Builder {
	b.customer = &Customer{Name: name, Email: email}
	return b
}

// Attributes replaces the whole license attribute map.
func (b *Builder) Attributes(m map[string]string) *Builder {
	b.attributes = copyMap(m)
	return b
}

// Attribute sets a single license attribute.
func (b *Builder) Attribute(name, value string) *Builder {
	if b.attributes == nil {
		b.attributes = make(map[string]string)
	}
	b.attributes[name] = value
	return b
}

// Features replaces the whole product feature map.
func (b *Builder) Features(m map[string]string) *Builder {
	b.features = copyMap(m)
	return b
}

// Feature sets a single product feature.
func (b *Builder) Feature(name, value string) *Builder {
	if b.features == nil {
		b.features = make(map[string]string)
	}
	b.features[name] = value
	return b
}

// Sublicenses replaces the whole sub-license list. Children are complete,
// independently signed records; attach them only after signing, since the
// parent embeds whatever state the child has at Create time.
func (b *Builder) Sublicenses(subs ...*Record) *Builder {
	b.sublicenses = nil
	if len(subs) > 0 {
		b.sublicenses = make([]*Record, len(subs))
		copy(b.sublicenses, subs)
	}
	return b
}

// Sublicense appends one child record.
func (b *Builder) Sublicense(sub *Record) *Builder {
	b.sublicenses = append(b.sublicenses, sub)
	return b
}

// Version sets the structural document version. Zero and negative values
// mean unset.
func (b *Builder) Version(v int) *Builder {
	if v < 0 {
		v = 0
	}
	b.version = v
	return b
}

// Create materializes an immutable, unsigned Record from the accumulated
// state. The Builder remains usable afterwards; later mutations do not
// affect records already created.
func (b *Builder) Create() *Record {
	r := &Record{
		id:         b.id,
		kind:       b.kind,
		quantity:   b.quantity,
		expiration: b.expiration,
		attributes: copyMap(b.attributes),
		features:   copyMap(b.features),
		version:    b.version,
	}
	if r.expiration.IsZero() {
		r.expiration = NeverExpires
	}
	if b.customer != nil {
		c := *b.customer
		r.customer = &c
	}
	if len(b.sublicenses) > 0 {
		r.sublicenses = make([]*Record, len(b.sublicenses))
		copy(r.sublicenses, b.sublicenses)
	}
	return r
}

// CreateAndSign is Create followed by Sign.
func (b *Builder) CreateAndSign(signer Signer, key crypto.PrivateKey) (*Record, error) {
	return b.Create().Sign(signer, key)
}
