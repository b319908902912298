package tlv

import (
	"fmt"

	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/ksierr"
)

// Kind is the payload interpretation an Element expects.
type Kind int

const (
	KindInt Kind = iota
	KindBytes
	KindUTF8
	KindImprint
	KindComposite
	KindCallback
)

// Element is one entry of a Template: it binds a tag to an expected
// payload kind, a cardinality, criticality, and a getter/setter pair over
// the target object. Getters/setters are function values closed over the
// target's concrete type rather than a void*/function-pointer pair.
type Element struct {
	Tag         uint16
	NonCritical bool
	Forward     bool
	Kind        Kind
	List        bool

	// Sub and New are set for KindComposite: Sub is the sub-template, New
	// constructs a fresh zero-value target for it.
	Sub *Template
	New func() interface{}

	// Get returns the value to encode, or ok=false to skip a single-valued
	// element entirely. For List elements Get returns a []interface{}
	// already in emission order.
	Get func(target interface{}) (value interface{}, ok bool)

	// Set applies one decoded value to target. For List elements Set is
	// called once per occurrence and is expected to append.
	Set func(target interface{}, value interface{}) error

	// Encode/Decode implement KindCallback: arbitrary, context-sensitive
	// encodings (e.g. DER-encoded certificates) that the generic kinds
	// cannot express.
	Encode func(target interface{}) (*TLV, error)
	Decode func(target interface{}, t *TLV) error
}

// Template is an ordered sequence of Elements. Order governs canonical
// encoding (Construct); Extract treats it as a tag -> Element map.
type Template []Element

// Tmpl builds a Template from a literal element list; it exists purely for
// a readable call site at the schema definition.
func Tmpl(elems ...Element) Template {
	return Template(elems)
}

func (t Template) byTag(tag uint16) (Element, bool) {
	for _, e := range t {
		if e.Tag == tag {
			return e, true
		}
	}
	return Element{}, false
}

// Extract populates target from node's children according to tmpl. Unknown
// tags marked non-critical are returned in remainder rather than failing;
// unknown critical tags fail with InvalidFormat, since ksierr's closed
// error enum has no separate code for an unknown-critical-tag condition
// (see DESIGN.md). Duplicate occurrences of a single-cardinality tag fail;
// missing required elements are NOT checked here — that is the calling
// data-model layer's responsibility, not the generic template machinery's.
func Extract(tmpl Template, target interface{}, node *TLV) (remainder []*TLV, err error) {
	children, err := node.Nested()
	if err != nil {
		return nil, err
	}
	seen := make(map[uint16]bool)
	for _, c := range children {
		el, ok := tmpl.byTag(c.Tag)
		if !ok {
			if c.NonCritical {
				remainder = append(remainder, c)
				continue
			}
			return remainder, ksierr.New(ksierr.InvalidFormat,
				fmt.Sprintf("unknown critical tag 0x%x", c.Tag))
		}
		if !el.List && seen[c.Tag] {
			return remainder, ksierr.New(ksierr.InvalidFormat,
				fmt.Sprintf("duplicate single-cardinality tag 0x%x", c.Tag))
		}
		seen[c.Tag] = true
		if err := extractElement(el, target, c); err != nil {
			return remainder, err
		}
	}
	return remainder, nil
}

func extractElement(el Element, target interface{}, c *TLV) error {
	switch el.Kind {
	case KindInt:
		v, err := c.AsUint64()
		if err != nil {
			return err
		}
		return el.Set(target, v)
	case KindBytes:
		return el.Set(target, append([]byte(nil), c.Raw()...))
	case KindUTF8:
		s, err := c.AsString()
		if err != nil {
			return err
		}
		return el.Set(target, s)
	case KindImprint:
		im, err := c.AsImprint()
		if err != nil {
			return err
		}
		return el.Set(target, im)
	case KindComposite:
		if el.New == nil {
			return ksierr.New(ksierr.InvalidState, "composite element missing New constructor")
		}
		sub := el.New()
		if el.Sub == nil {
			return ksierr.New(ksierr.InvalidState, "composite element missing sub-template")
		}
		if _, err := Extract(*el.Sub, sub, c); err != nil {
			return err
		}
		return el.Set(target, sub)
	case KindCallback:
		if el.Decode == nil {
			return ksierr.New(ksierr.InvalidState, "callback element missing Decode")
		}
		return el.Decode(target, c)
	default:
		return ksierr.New(ksierr.InvalidState, "unknown element kind")
	}
}

// Construct emits target's TLV children in template-declaration order.
// Elements whose getter returns ok=false are skipped; list elements are
// emitted once per entry in the slice Get returns, in order.
func Construct(tmpl Template, target interface{}) ([]*TLV, error) {
	var out []*TLV
	for _, el := range tmpl {
		if el.Get == nil {
			continue
		}
		v, ok := el.Get(target)
		if !ok {
			continue
		}
		if el.List {
			values, ok := v.([]interface{})
			if !ok {
				return nil, ksierr.New(ksierr.InvalidState, "list element getter must return []interface{}")
			}
			for _, item := range values {
				child, err := constructElement(el, item)
				if err != nil {
					return nil, err
				}
				out = append(out, child)
			}
			continue
		}
		child, err := constructElement(el, v)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

func constructElement(el Element, v interface{}) (*TLV, error) {
	switch el.Kind {
	case KindInt:
		iv, ok := v.(uint64)
		if !ok {
			return nil, ksierr.New(ksierr.InvalidState, "int element getter did not return uint64")
		}
		return NewUint(el.Tag, el.NonCritical, el.Forward, iv), nil
	case KindBytes:
		b, ok := v.([]byte)
		if !ok {
			return nil, ksierr.New(ksierr.InvalidState, "bytes element getter did not return []byte")
		}
		return New(el.Tag, el.NonCritical, el.Forward, b), nil
	case KindUTF8:
		s, ok := v.(string)
		if !ok {
			return nil, ksierr.New(ksierr.InvalidState, "utf8 element getter did not return string")
		}
		return NewString(el.Tag, el.NonCritical, el.Forward, s), nil
	case KindImprint:
		im, ok := v.(hash.Imprint)
		if !ok {
			return nil, ksierr.New(ksierr.InvalidState, "imprint element getter did not return hash.Imprint")
		}
		return NewImprint(el.Tag, el.NonCritical, el.Forward, im), nil
	case KindComposite:
		if el.Sub == nil {
			return nil, ksierr.New(ksierr.InvalidState, "composite element missing sub-template")
		}
		children, err := Construct(*el.Sub, v)
		if err != nil {
			return nil, err
		}
		return NewComposite(el.Tag, el.NonCritical, el.Forward, children), nil
	case KindCallback:
		if el.Encode == nil {
			return nil, ksierr.New(ksierr.InvalidState, "callback element missing Encode")
		}
		return el.Encode(v)
	default:
		return nil, ksierr.New(ksierr.InvalidState, "unknown element kind")
	}
}
