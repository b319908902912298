package tlv

import (
	"unicode/utf8"

	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/ksierr"
)

// kind tags what a TLV's payload has been cast to. A freshly parsed TLV is
// kindRaw until the caller asks for an interpretation.
type kind int

const (
	kindRaw kind = iota
	kindUint
	kindString
	kindNested
)

// TLV is a single parsed wire element: a tag/flag header plus a payload
// that is lazily interpreted on demand ("casting").
type TLV struct {
	Tag         uint16
	NonCritical bool
	Forward     bool

	raw []byte // the undecoded payload bytes, always populated

	cast     kind
	uintVal  uint64
	strVal   string
	children []*TLV
}

// New builds a raw TLV from already-encoded payload bytes.
func New(tag uint16, nonCritical, forward bool, payload []byte) *TLV {
	return &TLV{Tag: tag, NonCritical: nonCritical, Forward: forward, raw: payload}
}

// NewUint builds a TLV whose payload is the minimum-length big-endian
// encoding of v.
func NewUint(tag uint16, nonCritical, forward bool, v uint64) *TLV {
	t := &TLV{Tag: tag, NonCritical: nonCritical, Forward: forward}
	t.raw = encodeUint(v)
	t.cast = kindUint
	t.uintVal = v
	return t
}

// NewString builds a TLV whose payload is the null-terminated UTF-8
// encoding of s.
func NewString(tag uint16, nonCritical, forward bool, s string) *TLV {
	t := &TLV{Tag: tag, NonCritical: nonCritical, Forward: forward}
	t.raw = append([]byte(s), 0)
	t.cast = kindString
	t.strVal = s
	return t
}

// NewImprint builds a TLV whose payload is the wire form of an imprint.
func NewImprint(tag uint16, nonCritical, forward bool, im hash.Imprint) *TLV {
	return &TLV{Tag: tag, NonCritical: nonCritical, Forward: forward, raw: im.Bytes()}
}

// NewComposite builds a TLV whose payload is the concatenated encoding of
// its children, in the given order.
func NewComposite(tag uint16, nonCritical, forward bool, children []*TLV) *TLV {
	t := &TLV{Tag: tag, NonCritical: nonCritical, Forward: forward, cast: kindNested, children: children}
	t.raw = encodeChildren(children)
	return t
}

// Raw returns the undecoded payload bytes.
func (t *TLV) Raw() []byte {
	return t.raw
}

// AsUint64 casts the payload to a big-endian, minimum-length-canonical
// unsigned integer. Re-casting from an incompatible prior cast fails.
func (t *TLV) AsUint64() (uint64, error) {
	if t.cast == kindUint {
		return t.uintVal, nil
	}
	if t.cast != kindRaw {
		return 0, ksierr.New(ksierr.InvalidFormat, "tlv already cast to an incompatible kind")
	}
	v, err := decodeUint(t.raw)
	if err != nil {
		return 0, err
	}
	t.cast = kindUint
	t.uintVal = v
	return v, nil
}

// AsString casts the payload to a null-terminated UTF-8 string, returning
// the string without its trailing NUL.
func (t *TLV) AsString() (string, error) {
	if t.cast == kindString {
		return t.strVal, nil
	}
	if t.cast != kindRaw {
		return "", ksierr.New(ksierr.InvalidFormat, "tlv already cast to an incompatible kind")
	}
	if len(t.raw) == 0 || t.raw[len(t.raw)-1] != 0 {
		return "", ksierr.New(ksierr.InvalidFormat, "utf8 payload missing NUL terminator")
	}
	s := t.raw[:len(t.raw)-1]
	if !utf8.Valid(s) {
		return "", ksierr.New(ksierr.InvalidFormat, "invalid utf8 payload")
	}
	t.cast = kindString
	t.strVal = string(s)
	return t.strVal, nil
}

// AsImprint casts the payload to an imprint.
func (t *TLV) AsImprint() (hash.Imprint, error) {
	return hash.FromImprint(t.raw)
}

// Nested parses the payload as a sequence of child TLVs and caches them.
func (t *TLV) Nested() ([]*TLV, error) {
	if t.cast == kindNested {
		return t.children, nil
	}
	if t.cast != kindRaw {
		return nil, ksierr.New(ksierr.InvalidFormat, "tlv already cast to an incompatible kind")
	}
	children, err := decodeChildren(t.raw)
	if err != nil {
		return nil, err
	}
	t.cast = kindNested
	t.children = children
	return children, nil
}

// isShortForm reports whether t would be encoded in short form.
func (t *TLV) isShortForm() bool {
	return !chooseForm(t.Tag, len(t.raw))
}

// Encode serializes t (and, if composite, its children) to its wire form.
func (t *TLV) Encode() []byte {
	h := header{
		tag:         t.Tag,
		nonCritical: t.NonCritical,
		forward:     t.Forward,
		longForm:    chooseForm(t.Tag, len(t.raw)),
		payloadLen:  len(t.raw),
	}
	buf := make([]byte, h.size()+len(t.raw))
	n := encodeHeader(h, buf)
	copy(buf[n:], t.raw)
	return buf
}

// EncodedLen returns the length Encode() would produce, without allocating.
func (t *TLV) EncodedLen() int {
	longForm := chooseForm(t.Tag, len(t.raw))
	if longForm {
		return longHeaderSize + len(t.raw)
	}
	return shortHeaderSize + len(t.raw)
}

func encodeChildren(children []*TLV) []byte {
	total := 0
	for _, c := range children {
		total += c.EncodedLen()
	}
	buf := make([]byte, 0, total)
	for _, c := range children {
		buf = append(buf, c.Encode()...)
	}
	return buf
}

// Decode parses a single TLV element from the front of b, returning the
// element and the number of bytes consumed. Unknown-critical-ness is not
// evaluated here; that happens at template-extraction time where the
// template for the enclosing composite is known.
func Decode(b []byte) (*TLV, int, error) {
	h, n, err := decodeHeader(b)
	if err != nil {
		return nil, 0, err
	}
	if len(b) < n+h.payloadLen {
		return nil, 0, ksierr.New(ksierr.InvalidFormat, "truncated payload")
	}
	payload := make([]byte, h.payloadLen)
	copy(payload, b[n:n+h.payloadLen])
	t := &TLV{Tag: h.tag, NonCritical: h.nonCritical, Forward: h.forward, raw: payload}
	return t, n + h.payloadLen, nil
}

// decodeChildren parses a flat buffer into an ordered list of top-level
// TLV elements, requiring the buffer to be exactly consumed.
func decodeChildren(b []byte) ([]*TLV, error) {
	var out []*TLV
	off := 0
	for off < len(b) {
		t, n, err := Decode(b[off:])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		off += n
	}
	return out, nil
}

// DecodeAll is the top-level entry point: it parses buf as a sequence of
// sibling TLVs with no enclosing element (used for concatenated PDU
// streams read off a connection).
func DecodeAll(buf []byte) ([]*TLV, error) {
	return decodeChildren(buf)
}

// encodeUint produces the minimum-length big-endian encoding of v; zero
// encodes to an empty payload.
func encodeUint(v uint64) []byte {
	if v == 0 {
		return nil
	}
	var tmp [8]byte
	for i := 7; i >= 0; i-- {
		tmp[i] = byte(v)
		v >>= 8
	}
	i := 0
	for i < 7 && tmp[i] == 0 {
		i++
	}
	out := make([]byte, 8-i)
	copy(out, tmp[i:])
	return out
}

// decodeUint parses a big-endian, minimum-length-canonical integer. A
// leading zero byte is only legal when the whole payload is empty (value
// 0); any non-empty payload starting with a zero byte is rejected, and
// payloads over 8 bytes cannot fit a uint64.
func decodeUint(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, nil
	}
	if len(b) > 8 {
		return 0, ksierr.New(ksierr.InvalidFormat, "integer payload too long")
	}
	if b[0] == 0 {
		return 0, ksierr.New(ksierr.InvalidFormat, "integer payload has leading zero byte")
	}
	var v uint64
	for _, c := range b {
		v = (v << 8) | uint64(c)
	}
	return v, nil
}
