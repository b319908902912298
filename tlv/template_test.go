package tlv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type leaf struct {
	Value uint64
}

type widget struct {
	Name  string
	Count uint64
	Leafs []*leaf
}

var leafTemplate = Tmpl(
	Element{
		Tag:  0x01,
		Kind: KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			return t.(*leaf).Value, true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*leaf).Value = v.(uint64)
			return nil
		},
	},
)

var widgetTemplate = Tmpl(
	Element{
		Tag:  0x01,
		Kind: KindUTF8,
		Get: func(t interface{}) (interface{}, bool) {
			w := t.(*widget)
			if w.Name == "" {
				return nil, false
			}
			return w.Name, true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*widget).Name = v.(string)
			return nil
		},
	},
	Element{
		Tag:  0x02,
		Kind: KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			return t.(*widget).Count, true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*widget).Count = v.(uint64)
			return nil
		},
	},
	Element{
		Tag:  0x03,
		Kind: KindComposite,
		List: true,
		Sub:  &leafTemplate,
		New:  func() interface{} { return &leaf{} },
		Get: func(t interface{}) (interface{}, bool) {
			w := t.(*widget)
			if len(w.Leafs) == 0 {
				return nil, false
			}
			out := make([]interface{}, len(w.Leafs))
			for i, l := range w.Leafs {
				out[i] = l
			}
			return out, true
		},
		Set: func(t interface{}, v interface{}) error {
			w := t.(*widget)
			w.Leafs = append(w.Leafs, v.(*leaf))
			return nil
		},
	},
)

func TestTemplateRoundTrip(t *testing.T) {
	w := &widget{Name: "gizmo", Count: 3, Leafs: []*leaf{{Value: 1}, {Value: 2}}}

	children, err := Construct(widgetTemplate, w)
	require.NoError(t, err)
	node := NewComposite(0x20, false, false, children)
	buf := node.Encode()

	got, _, err := Decode(buf)
	require.NoError(t, err)

	var out widget
	remainder, err := Extract(widgetTemplate, &out, got)
	require.NoError(t, err)
	require.Empty(t, remainder)
	require.Equal(t, w.Name, out.Name)
	require.Equal(t, w.Count, out.Count)
	require.Len(t, out.Leafs, 2)
	require.Equal(t, uint64(1), out.Leafs[0].Value)
	require.Equal(t, uint64(2), out.Leafs[1].Value)
}

func TestTemplateSkipsEmptyGetter(t *testing.T) {
	w := &widget{Count: 5}
	children, err := Construct(widgetTemplate, w)
	require.NoError(t, err)
	// Name getter returned ok=false, so only Count should be present.
	require.Len(t, children, 1)
	require.Equal(t, uint16(0x02), children[0].Tag)
}

func TestTemplateDuplicateSingleTagFails(t *testing.T) {
	dup := NewUint(0x02, false, false, 1)
	dup2 := NewUint(0x02, false, false, 2)
	node := NewComposite(0x20, false, false, []*TLV{dup, dup2})

	var out widget
	_, err := Extract(widgetTemplate, &out, node)
	require.Error(t, err)
}

func TestTemplateUnknownCriticalTagFails(t *testing.T) {
	unknown := New(0x7f, false, false, []byte{1})
	node := NewComposite(0x20, false, false, []*TLV{unknown})

	var out widget
	_, err := Extract(widgetTemplate, &out, node)
	require.Error(t, err)
}

func TestTemplateUnknownNonCriticalTagCollected(t *testing.T) {
	unknown := New(0x7f, true, false, []byte{1})
	known := NewUint(0x02, false, false, 4)
	node := NewComposite(0x20, false, false, []*TLV{unknown, known})

	var out widget
	remainder, err := Extract(widgetTemplate, &out, node)
	require.NoError(t, err)
	require.Len(t, remainder, 1)
	require.Equal(t, uint16(0x7f), remainder[0].Tag)
	require.Equal(t, uint64(4), out.Count)
}
