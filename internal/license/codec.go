package license

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// Canonical document tags. These names are the compatibility contract: any
// change breaks signature verification for every previously issued license.
const (
	tagLicense     = "License"
	tagID          = "Id"
	tagType        = "Type"
	tagQuantity    = "Quantity"
	tagCustomer    = "Customer"
	tagName        = "Name"
	tagEmail       = "Email"
	tagAttributes  = "LicenseAttributes"
	tagAttribute   = "Attribute"
	tagExpiration  = "Expiration"
	tagFeatures    = "ProductFeatures"
	tagFeature     = "Feature"
	tagSublicenses = "Sublicenses"
	tagSignature   = "Signature"

	attrVersion = "version"
	attrName    = "name"
)

// Additional field names for MalformedRecordError.
const (
	FieldCustomer   = "customer"
	FieldAttributes = "attributes"
	FieldFeatures   = "features"
	FieldSignature  = "signature"
)

// dateLayout is the only accepted expiration format: RFC-1123 with a fixed
// GMT designator, always UTC. "GMT" is a literal here, not a zone token, so
// formatting never falls back to the local zone abbreviation.
const dateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// canonicalSettings produce the deterministic byte form used for signing
// and for persistence. End tags are always written out, so the minimal
// document is <License></License>, never <License/>.
var canonicalSettings = etree.WriteSettings{
	CanonicalEndTags: true,
	CanonicalText:    true,
	CanonicalAttrVal: true,
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// element builds a fresh canonical element from the structured fields.
// Emission is sparse: fields equal to their zero value are omitted, and the
// order below is fixed because signer and verifier must agree on it.
func (r *Record) element(includeSignature bool) *etree.Element {
	el := etree.NewElement(tagLicense)
	if r.version > 0 {
		el.CreateAttr(attrVersion, strconv.Itoa(r.version))
	}
	if r.id != uuid.Nil {
		el.CreateElement(tagID).SetText(r.id.String())
	}
	if r.kind != KindNone {
		el.CreateElement(tagType).SetText(r.kind.String())
	}
	if r.quantity > 0 {
		el.CreateElement(tagQuantity).SetText(strconv.Itoa(r.quantity))
	}
	if r.customer != nil {
		c := el.CreateElement(tagCustomer)
		if r.customer.Name != "" {
			c.CreateElement(tagName).SetText(r.customer.Name)
		}
		if r.customer.Email != "" {
			c.CreateElement(tagEmail).SetText(r.customer.Email)
		}
	}
	writeNamedMap(el, tagAttributes, tagAttribute, r.attributes)
	if !r.expiration.Equal(NeverExpires) {
		el.CreateElement(tagExpiration).SetText(formatDate(r.expiration))
	}
	writeNamedMap(el, tagFeatures, tagFeature, r.features)
	if len(r.sublicenses) > 0 {
		s := el.CreateElement(tagSublicenses)
		for _, sub := range r.sublicenses {
			s.AddChild(sub.embeddedElement())
		}
	}
	if includeSignature && r.signature != "" {
		el.CreateElement(tagSignature).SetText(r.signature)
	}
	return el
}

// embeddedElement returns the element to write when persisting the record.
// A record that retains a signed body must be re-emitted from that body,
// not from the structured fields: re-canonicalizing the fields of a record
// parsed from foreign text is not guaranteed byte-identical to what its
// signature covers.
func (r *Record) embeddedElement() *etree.Element {
	if r.rawBody == nil {
		return r.element(true)
	}
	el := r.rawBody.Copy()
	if r.signature != "" {
		el.CreateElement(tagSignature).SetText(r.signature)
	}
	return el
}

// writeNamedMap emits a <container><item name="k">v</item>...</container>
// block. Keys are semantically unordered but emitted sorted so the canonical
// bytes are reproducible from the field values alone.
func writeNamedMap(parent *etree.Element, container, item string, m map[string]string) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	c := parent.CreateElement(container)
	for _, k := range keys {
		it := c.CreateElement(item)
		it.CreateAttr(attrName, k)
		it.SetText(m[k])
	}
}

// canonicalBytes serializes an element with the canonical settings: compact
// UTF-8, no XML declaration, no indentation. Signing and verification both
// funnel through here so the two byte streams can never diverge.
func canonicalBytes(el *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	doc.WriteSettings = canonicalSettings
	return doc.WriteToBytes()
}

// Encode writes the record to w. With pretty set the output is indented for
// humans; parsing strips that whitespace again, so a pretty-printed license
// still verifies.
func (r *Record) Encode(w io.Writer, pretty bool) error {
	doc := etree.NewDocument()
	doc.SetRoot(r.embeddedElement())
	doc.WriteSettings = canonicalSettings
	if pretty {
		doc.Indent(2)
	}
	_, err := doc.WriteTo(w)
	return err
}

// String returns the compact serialized document.
func (r *Record) String() string {
	var b strings.Builder
	if err := r.Encode(&b, false); err != nil {
		return ""
	}
	return b.String()
}

// Parse reads a serialized license document. Parsing is lenient about
// missing optional elements and strict about everything else; the first
// malformed field aborts with a MalformedRecordError, including failures
// inside sub-licenses.
func Parse(data []byte) (*Record, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, malformed(FieldDocument, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, malformedf(FieldDocument, "document has no root element")
	}
	if root.Tag != tagLicense {
		return nil, malformedf(FieldDocument, "unexpected root element %q", root.Tag)
	}
	return parseElement(root)
}

// ParseString is Parse over a string.
func ParseString(text string) (*Record, error) {
	return Parse([]byte(text))
}

// Decode is Parse over a reader.
func Decode(r io.Reader) (*Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, malformed(FieldDocument, err)
	}
	return Parse(data)
}

func parseElement(el *etree.Element) (*Record, error) {
	r := &Record{expiration: NeverExpires}

	if v := el.SelectAttrValue(attrVersion, ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, malformedf(FieldVersion, "invalid version attribute %q", v)
		}
		r.version = n
	}
	if id := el.SelectElement(tagID); id != nil {
		u, err := uuid.Parse(strings.TrimSpace(id.Text()))
		if err != nil {
			return nil, malformed(FieldID, err)
		}
		r.id = u
	}
	if t := el.SelectElement(tagType); t != nil {
		k, ok := ParseKind(strings.TrimSpace(t.Text()))
		if !ok {
			return nil, malformedf(FieldKind, "unrecognized license type %q", strings.TrimSpace(t.Text()))
		}
		r.kind = k
	}
	if q := el.SelectElement(tagQuantity); q != nil {
		text := strings.TrimSpace(q.Text())
		n, err := strconv.Atoi(text)
		if err != nil || n < 0 {
			return nil, malformedf(FieldQuantity, "invalid quantity %q", text)
		}
		r.quantity = n
	}
	if c := el.SelectElement(tagCustomer); c != nil {
		cust := &Customer{}
		if n := c.SelectElement(tagName); n != nil {
			cust.Name = n.Text()
		}
		if e := c.SelectElement(tagEmail); e != nil {
			cust.Email = e.Text()
		}
		r.customer = cust
	}
	attrs, err := parseNamedMap(el, tagAttributes, tagAttribute, FieldAttributes)
	if err != nil {
		return nil, err
	}
	r.attributes = attrs
	if e := el.SelectElement(tagExpiration); e != nil {
		text := strings.TrimSpace(e.Text())
		t, err := parseDate(text)
		if err != nil {
			return nil, malformedf(FieldExpiration, "invalid expiration %q: expected %q form", text, dateLayout)
		}
		r.expiration = t
	}
	features, err := parseNamedMap(el, tagFeatures, tagFeature, FieldFeatures)
	if err != nil {
		return nil, err
	}
	r.features = features
	if s := el.SelectElement(tagSublicenses); s != nil {
		for _, child := range s.ChildElements() {
			if child.Tag != tagLicense {
				return nil, malformedf(FieldSublicenses, "unexpected element %q under %s", child.Tag, tagSublicenses)
			}
			sub, err := parseElement(child)
			if err != nil {
				return nil, malformed(FieldSublicenses, err)
			}
			r.sublicenses = append(r.sublicenses, sub)
		}
	}
	if sig := el.SelectElement(tagSignature); sig != nil {
		r.signature = strings.TrimSpace(sig.Text())
		if r.signature == "" {
			return nil, malformedf(FieldSignature, "empty signature element")
		}
	}

	// Retain the exact parsed sub-tree minus the signature element. This,
	// not a re-serialization of the fields above, is what verification
	// hashes against.
	body := el.Copy()
	stripInsignificantWhitespace(body)
	if sigEl := body.SelectElement(tagSignature); sigEl != nil {
		body.RemoveChild(sigEl)
	}
	r.rawBody = body

	return r, nil
}

func parseNamedMap(el *etree.Element, container, item, field string) (map[string]string, error) {
	c := el.SelectElement(container)
	if c == nil {
		return nil, nil
	}
	var m map[string]string
	for _, it := range c.ChildElements() {
		if it.Tag != item {
			return nil, malformedf(field, "unexpected element %q under %s", it.Tag, container)
		}
		name := it.SelectAttrValue(attrName, "")
		if name == "" {
			return nil, malformedf(field, "%s element without a name attribute", item)
		}
		if _, dup := m[name]; dup {
			return nil, malformedf(field, "duplicate %s %q", item, name)
		}
		if m == nil {
			m = make(map[string]string)
		}
		m[name] = it.Text()
	}
	return m, nil
}

// stripInsignificantWhitespace removes whitespace-only character data
// between elements, recursively. Signing serializes compactly, so this is
// what lets an indented on-disk document verify against the bytes that
// were actually signed.
func stripInsignificantWhitespace(el *etree.Element) {
	children := make([]etree.Token, len(el.Child))
	copy(children, el.Child)
	for _, tok := range children {
		switch t := tok.(type) {
		case *etree.CharData:
			if strings.TrimSpace(t.Data) == "" {
				el.RemoveChild(t)
			}
		case *etree.Element:
			stripInsignificantWhitespace(t)
		case *etree.Comment:
			el.RemoveChild(t)
		}
	}
}
