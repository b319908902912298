package pdu

import (
	"github.com/ekobi/goksi/ksierr"
	"github.com/ekobi/goksi/signature"
	"github.com/ekobi/goksi/tlv"
)

// ExtendRequest asks an extender for a calendar hash chain from AggrTime
// up to PubTime, or up to the extender's latest publication when
// HasPubTime is false.
type ExtendRequest struct {
	RequestID  uint64
	AggrTime   uint64
	PubTime    uint64
	HasPubTime bool
}

var extendRequestTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: TagExtRequestID, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) { return t.(*ExtendRequest).RequestID, true },
		Set: func(t interface{}, v interface{}) error { t.(*ExtendRequest).RequestID = v.(uint64); return nil },
	},
	tlv.Element{
		Tag: TagExtAggrTime, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) { return t.(*ExtendRequest).AggrTime, true },
		Set: func(t interface{}, v interface{}) error { t.(*ExtendRequest).AggrTime = v.(uint64); return nil },
	},
	tlv.Element{
		Tag: TagExtPubTime, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			r := t.(*ExtendRequest)
			if !r.HasPubTime {
				return nil, false
			}
			return r.PubTime, true
		},
		Set: func(t interface{}, v interface{}) error {
			r := t.(*ExtendRequest)
			r.PubTime = v.(uint64)
			r.HasPubTime = true
			return nil
		},
	},
)

// ExtendResponse carries the requested calendar hash chain, re-using
// signature.CalendarChain's template since the wire shape is identical.
type ExtendResponse struct {
	RequestID    uint64
	HasRequestID bool
	Status       uint64
	ErrorMessage string
	CalChain     *signature.CalendarChain
}

var extendResponseTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: TagExtRequestID, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			r := t.(*ExtendResponse)
			if !r.HasRequestID {
				return nil, false
			}
			return r.RequestID, true
		},
		Set: func(t interface{}, v interface{}) error {
			r := t.(*ExtendResponse)
			r.RequestID = v.(uint64)
			r.HasRequestID = true
			return nil
		},
	},
	tlv.Element{
		Tag: TagExtError, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			r := t.(*ExtendResponse)
			if r.Status == 0 {
				return nil, false
			}
			return r.Status, true
		},
		Set: func(t interface{}, v interface{}) error { t.(*ExtendResponse).Status = v.(uint64); return nil },
	},
	tlv.Element{
		Tag: TagExtErrorMsg, Kind: tlv.KindUTF8,
		Get: func(t interface{}) (interface{}, bool) {
			r := t.(*ExtendResponse)
			if r.ErrorMessage == "" {
				return nil, false
			}
			return r.ErrorMessage, true
		},
		Set: func(t interface{}, v interface{}) error { t.(*ExtendResponse).ErrorMessage = v.(string); return nil },
	},
	tlv.Element{
		Tag: TagCalChain, Kind: tlv.KindComposite, Sub: &calendarChainTemplate,
		New: func() interface{} { return &signature.CalendarChain{} },
		Get: func(t interface{}) (interface{}, bool) {
			r := t.(*ExtendResponse)
			if r.CalChain == nil {
				return nil, false
			}
			return r.CalChain, true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*ExtendResponse).CalChain = v.(*signature.CalendarChain)
			return nil
		},
	},
)

// EncodeExtendRequest serializes req for the given PDU version.
func EncodeExtendRequest(ver Version, hdr *Header, req *ExtendRequest, macKey []byte) ([]byte, error) {
	reqChildren, err := tlv.Construct(extendRequestTemplate, req)
	if err != nil {
		return nil, err
	}
	reqTLV := tlv.NewComposite(TagExtendRequest, false, false, reqChildren)

	if ver == V1 {
		return reqTLV.Encode(), nil
	}

	var pduChildren []*tlv.TLV
	if hdr != nil {
		h, err := encodeHeaderTLV(hdr)
		if err != nil {
			return nil, err
		}
		pduChildren = append(pduChildren, h)
	}
	pduChildren = append(pduChildren, reqTLV)
	pdu := tlv.NewComposite(TagPDUExtend, false, false, pduChildren)

	if macKey != nil {
		return signAndAppendMAC(pdu, TagExtMAC, macKey)
	}
	return pdu.Encode(), nil
}

// EncodeExtendResponse serializes resp for the given PDU version, the
// mock-server counterpart of DecodeExtendResponse.
func EncodeExtendResponse(ver Version, hdr *Header, resp *ExtendResponse, macKey []byte) ([]byte, error) {
	respChildren, err := tlv.Construct(extendResponseTemplate, resp)
	if err != nil {
		return nil, err
	}
	respTLV := tlv.NewComposite(TagExtendResponse, false, false, respChildren)

	if ver == V1 {
		return respTLV.Encode(), nil
	}

	var pduChildren []*tlv.TLV
	if hdr != nil {
		h, err := encodeHeaderTLV(hdr)
		if err != nil {
			return nil, err
		}
		pduChildren = append(pduChildren, h)
	}
	pduChildren = append(pduChildren, respTLV)
	pdu := tlv.NewComposite(TagPDUExtend, false, false, pduChildren)

	if macKey != nil {
		return signAndAppendMAC(pdu, TagExtMAC, macKey)
	}
	return pdu.Encode(), nil
}

// DecodeExtendResponse parses buf for the given PDU version.
func DecodeExtendResponse(ver Version, buf []byte, macKey []byte) (*Header, *ExtendResponse, error) {
	node, n, err := tlv.Decode(buf)
	if err != nil {
		return nil, nil, err
	}
	if n != len(buf) {
		return nil, nil, ksierr.New(ksierr.InvalidFormat, "trailing bytes after extend PDU")
	}

	if ver == V1 {
		if node.Tag != TagExtendResponse {
			return nil, nil, ksierr.New(ksierr.InvalidFormat, "expected extend response TLV")
		}
		var resp ExtendResponse
		if _, err := tlv.Extract(extendResponseTemplate, &resp, node); err != nil {
			return nil, nil, err
		}
		return nil, &resp, nil
	}

	if node.Tag != TagPDUExtend {
		return nil, nil, ksierr.New(ksierr.InvalidFormat, "expected extend PDU")
	}
	if macKey != nil {
		if err := verifyMAC(node, TagExtMAC, macKey); err != nil {
			return nil, nil, err
		}
	}
	kids, err := node.Nested()
	if err != nil {
		return nil, nil, err
	}
	var hdr *Header
	var resp ExtendResponse
	found := false
	for _, k := range kids {
		switch k.Tag {
		case TagHeader:
			hdr, err = decodeHeaderTLV(k)
			if err != nil {
				return nil, nil, err
			}
		case TagExtendResponse:
			if _, err := tlv.Extract(extendResponseTemplate, &resp, k); err != nil {
				return nil, nil, err
			}
			found = true
		case TagExtMAC:
			// consumed by verifyMAC above
		}
	}
	if !found {
		return nil, nil, ksierr.New(ksierr.InvalidFormat, "extend PDU missing response")
	}
	return hdr, &resp, nil
}
