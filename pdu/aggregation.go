package pdu

import (
	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/ksierr"
	"github.com/ekobi/goksi/signature"
	"github.com/ekobi/goksi/tlv"
)

// Version selects the wire shape of a PDU. Both are controlled per-context
// by the aggregator/extender PDU version options.
type Version int

const (
	// V1 is the original flat shape: the request/response TLV is the
	// top-level PDU, with no enclosing header/MAC wrapper (see DESIGN.md
	// for the fixtures this was reconstructed against).
	V1 Version = 1
	// V2 wraps the request/response in a PDU composite alongside an
	// optional Header and a MAC.
	V2 Version = 2
)

// AggregationRequest is a single signing request.
type AggregationRequest struct {
	RequestID    uint64
	RequestHash  hash.Imprint
	RequestLevel uint64
	HasLevel     bool
}

var aggregationRequestTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: TagAggrRequestID, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) { return t.(*AggregationRequest).RequestID, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*AggregationRequest).RequestID = v.(uint64)
			return nil
		},
	},
	tlv.Element{
		Tag: TagAggrRequestHash, Kind: tlv.KindImprint,
		Get: func(t interface{}) (interface{}, bool) { return t.(*AggregationRequest).RequestHash, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*AggregationRequest).RequestHash = v.(hash.Imprint)
			return nil
		},
	},
	tlv.Element{
		Tag: TagAggrReqLevel, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			r := t.(*AggregationRequest)
			if !r.HasLevel {
				return nil, false
			}
			return r.RequestLevel, true
		},
		Set: func(t interface{}, v interface{}) error {
			r := t.(*AggregationRequest)
			r.RequestLevel = v.(uint64)
			r.HasLevel = true
			return nil
		},
	},
)

// AggregationResponse is the aggregator's reply to one request, or a
// server-initiated push-config with RequestID unset (see HasRequestID).
type AggregationResponse struct {
	RequestID    uint64
	HasRequestID bool
	Status       uint64
	ErrorMessage string
	Config       *AggregatorConfig
	Signature    *signature.Signature
}

var aggregationResponseTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: TagAggrRequestID, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			r := t.(*AggregationResponse)
			if !r.HasRequestID {
				return nil, false
			}
			return r.RequestID, true
		},
		Set: func(t interface{}, v interface{}) error {
			r := t.(*AggregationResponse)
			r.RequestID = v.(uint64)
			r.HasRequestID = true
			return nil
		},
	},
	tlv.Element{
		Tag: TagAggrError, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			r := t.(*AggregationResponse)
			if r.Status == 0 {
				return nil, false
			}
			return r.Status, true
		},
		Set: func(t interface{}, v interface{}) error { t.(*AggregationResponse).Status = v.(uint64); return nil },
	},
	tlv.Element{
		Tag: TagAggrErrorMsg, Kind: tlv.KindUTF8,
		Get: func(t interface{}) (interface{}, bool) {
			r := t.(*AggregationResponse)
			if r.ErrorMessage == "" {
				return nil, false
			}
			return r.ErrorMessage, true
		},
		Set: func(t interface{}, v interface{}) error { t.(*AggregationResponse).ErrorMessage = v.(string); return nil },
	},
	tlv.Element{
		Tag: TagAggrConf, Kind: tlv.KindComposite, Sub: &aggregatorConfigTemplate,
		New: func() interface{} { return &AggregatorConfig{} },
		Get: func(t interface{}) (interface{}, bool) {
			r := t.(*AggregationResponse)
			if r.Config == nil {
				return nil, false
			}
			return r.Config, true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*AggregationResponse).Config = v.(*AggregatorConfig)
			return nil
		},
	},
	tlv.Element{
		Tag: TagSignature, Kind: tlv.KindComposite, Sub: &signatureTemplate,
		New: func() interface{} { return &signature.Signature{} },
		Get: func(t interface{}) (interface{}, bool) {
			r := t.(*AggregationResponse)
			if r.Signature == nil {
				return nil, false
			}
			return r.Signature, true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*AggregationResponse).Signature = v.(*signature.Signature)
			return nil
		},
	},
)

// EncodeAggregationRequest serializes req for the given PDU version. In
// V2 it also wraps a Header (may be nil) and, when mac is non-nil, a MAC
// computed over the encoded request.
func EncodeAggregationRequest(ver Version, hdr *Header, req *AggregationRequest, macKey []byte) ([]byte, error) {
	reqChildren, err := tlv.Construct(aggregationRequestTemplate, req)
	if err != nil {
		return nil, err
	}
	reqTLV := tlv.NewComposite(TagAggrRequest, false, false, reqChildren)

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
	pdu := tlv.NewComposite(TagPDUAggregation, false, false, pduChildren)

	if macKey != nil {
		return signAndAppendMAC(pdu, TagAggrMAC, macKey)
	}
	return pdu.Encode(), nil
}

// EncodeAggregationResponse serializes resp for the given PDU version,
// the server-side (or mock-server, per original_source/test/ksi_net_mock.c's
// canned-response-by-imprint pattern) counterpart of
// DecodeAggregationResponse.
func EncodeAggregationResponse(ver Version, hdr *Header, resp *AggregationResponse, macKey []byte) ([]byte, error) {
	respChildren, err := tlv.Construct(aggregationResponseTemplate, resp)
	if err != nil {
		return nil, err
	}
	respTLV := tlv.NewComposite(TagAggrResponse, false, false, respChildren)

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
	pdu := tlv.NewComposite(TagPDUAggregation, false, false, pduChildren)

	if macKey != nil {
		return signAndAppendMAC(pdu, TagAggrMAC, macKey)
	}
	return pdu.Encode(), nil
}

// DecodeAggregationResponse parses buf for the given PDU version,
// optionally verifying an embedded MAC against macKey.
func DecodeAggregationResponse(ver Version, buf []byte, macKey []byte) (*Header, *AggregationResponse, error) {
	node, n, err := tlv.Decode(buf)
	if err != nil {
		return nil, nil, err
	}
	if n != len(buf) {
		return nil, nil, ksierr.New(ksierr.InvalidFormat, "trailing bytes after aggregation PDU")
	}

	if ver == V1 {
		if node.Tag != TagAggrResponse {
			return nil, nil, ksierr.New(ksierr.InvalidFormat, "expected aggregation response TLV")
		}
		var resp AggregationResponse
		if _, err := tlv.Extract(aggregationResponseTemplate, &resp, node); err != nil {
			return nil, nil, err
		}
		return nil, &resp, nil
	}

	if node.Tag != TagPDUAggregation {
		return nil, nil, ksierr.New(ksierr.InvalidFormat, "expected aggregation PDU")
	}
	if macKey != nil {
		if err := verifyMAC(node, TagAggrMAC, macKey); err != nil {
			return nil, nil, err
		}
	}
	kids, err := node.Nested()
	if err != nil {
		return nil, nil, err
	}
	var hdr *Header
	var resp AggregationResponse
	found := false
	for _, k := range kids {
		switch k.Tag {
		case TagHeader:
			hdr, err = decodeHeaderTLV(k)
			if err != nil {
				return nil, nil, err
			}
		case TagAggrResponse:
			if _, err := tlv.Extract(aggregationResponseTemplate, &resp, k); err != nil {
				return nil, nil, err
			}
			found = true
		case TagAggrMAC:
			// consumed by verifyMAC above
		}
	}
	if !found {
		return nil, nil, ksierr.New(ksierr.InvalidFormat, "aggregation PDU missing response")
	}
	return hdr, &resp, nil
}
