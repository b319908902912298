package pdu

import "github.com/ekobi/goksi/tlv"

// Header carries the per-message instance/message/client identifiers;
// ksi.Context stamps the instance and message ids before a request is
// sent.
type Header struct {
	InstanceID uint64
	HasInst    bool
	MessageID  uint64
	HasMsg     bool
	ClientID   string
}

var headerTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: TagHeaderInstanceID, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			h := t.(*Header)
			if !h.HasInst {
				return nil, false
			}
			return h.InstanceID, true
		},
		Set: func(t interface{}, v interface{}) error {
			h := t.(*Header)
			h.InstanceID = v.(uint64)
			h.HasInst = true
			return nil
		},
	},
	tlv.Element{
		Tag: TagHeaderMessageID, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			h := t.(*Header)
			if !h.HasMsg {
				return nil, false
			}
			return h.MessageID, true
		},
		Set: func(t interface{}, v interface{}) error {
			h := t.(*Header)
			h.MessageID = v.(uint64)
			h.HasMsg = true
			return nil
		},
	},
	tlv.Element{
		Tag: TagHeaderClientID, Kind: tlv.KindUTF8,
		Get: func(t interface{}) (interface{}, bool) {
			h := t.(*Header)
			if h.ClientID == "" {
				return nil, false
			}
			return h.ClientID, true
		},
		Set: func(t interface{}, v interface{}) error { t.(*Header).ClientID = v.(string); return nil },
	},
)

func encodeHeaderTLV(h *Header) (*tlv.TLV, error) {
	children, err := tlv.Construct(headerTemplate, h)
	if err != nil {
		return nil, err
	}
	return tlv.NewComposite(TagHeader, false, false, children), nil
}

func decodeHeaderTLV(t *tlv.TLV) (*Header, error) {
	var h Header
	if _, err := tlv.Extract(headerTemplate, &h, t); err != nil {
		return nil, err
	}
	return &h, nil
}
