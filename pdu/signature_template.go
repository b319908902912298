package pdu

import (
	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/ksierr"
	"github.com/ekobi/goksi/signature"
	"github.com/ekobi/goksi/tlv"
)

// metadataTemplate binds signature.Metadata to its TLV fields.
var metadataTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: TagMetaClientID, Kind: tlv.KindUTF8,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.Metadata).ClientID, true },
		Set: func(t interface{}, v interface{}) error { t.(*signature.Metadata).ClientID = v.(string); return nil },
	},
	tlv.Element{
		Tag: TagMetaMachineID, Kind: tlv.KindUTF8,
		Get: func(t interface{}) (interface{}, bool) {
			m := t.(*signature.Metadata)
			if m.MachineID == "" {
				return nil, false
			}
			return m.MachineID, true
		},
		Set: func(t interface{}, v interface{}) error { t.(*signature.Metadata).MachineID = v.(string); return nil },
	},
	tlv.Element{
		Tag: TagMetaSeqNr, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			m := t.(*signature.Metadata)
			if !m.HasSeq {
				return nil, false
			}
			return m.SequenceNr, true
		},
		Set: func(t interface{}, v interface{}) error {
			m := t.(*signature.Metadata)
			m.SequenceNr = v.(uint64)
			m.HasSeq = true
			return nil
		},
	},
	tlv.Element{
		Tag: TagMetaReqTime, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			m := t.(*signature.Metadata)
			if !m.HasReqTime {
				return nil, false
			}
			return m.RequestTime, true
		},
		Set: func(t interface{}, v interface{}) error {
			m := t.(*signature.Metadata)
			m.RequestTime = v.(uint64)
			m.HasReqTime = true
			return nil
		},
	},
)

// linkBodyTemplate encodes everything about a signature.Link except its
// Direction, which is carried by the enclosing TLV's Forward bit (see
// TagAggrChainLink in tags.go).
var linkBodyTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: TagLinkLevelC, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.Link).LevelCorrection, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.Link).LevelCorrection = v.(uint64)
			return nil
		},
	},
	tlv.Element{
		Tag: TagLinkSibling, Kind: tlv.KindImprint,
		Get: func(t interface{}) (interface{}, bool) {
			l := t.(*signature.Link)
			if l.Metadata != nil {
				return nil, false
			}
			return l.Sibling, true
		},
		Set: func(t interface{}, v interface{}) error { t.(*signature.Link).Sibling = v.(hash.Imprint); return nil },
	},
	tlv.Element{
		Tag: TagLinkMeta, Kind: tlv.KindComposite, Sub: &metadataTemplate,
		New: func() interface{} { return &signature.Metadata{} },
		Get: func(t interface{}) (interface{}, bool) {
			l := t.(*signature.Link)
			if l.Metadata == nil {
				return nil, false
			}
			return l.Metadata, true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.Link).Metadata = v.(*signature.Metadata)
			return nil
		},
	},
)

// encodeLink wraps a signature.Link as a single TLV whose Forward bit
// carries its Direction.
func encodeLink(tag uint16, l signature.Link) (*tlv.TLV, error) {
	children, err := tlv.Construct(linkBodyTemplate, &l)
	if err != nil {
		return nil, err
	}
	return tlv.NewComposite(tag, false, l.Direction == signature.Right, children), nil
}

// decodeLink unwraps a TLV produced by encodeLink.
func decodeLink(t *tlv.TLV) (signature.Link, error) {
	var l signature.Link
	if t.Forward {
		l.Direction = signature.Right
	} else {
		l.Direction = signature.Left
	}
	if _, err := tlv.Extract(linkBodyTemplate, &l, t); err != nil {
		return signature.Link{}, err
	}
	return l, nil
}

// linksElement builds the List/Callback Element for an aggregation
// chain's ordered Links, parameterized by the wire tag to use (aggregation
// and calendar chains reuse the same shape at different tags).
func linksElement(tag uint16, get func(interface{}) []signature.Link, set func(interface{}, signature.Link)) tlv.Element {
	return tlv.Element{
		Tag: tag, Kind: tlv.KindCallback, List: true,
		Get: func(t interface{}) (interface{}, bool) {
			links := get(t)
			if len(links) == 0 {
				return nil, false
			}
			out := make([]interface{}, len(links))
			for i, l := range links {
				out[i] = l
			}
			return out, true
		},
		Encode: func(v interface{}) (*tlv.TLV, error) {
			return encodeLink(tag, v.(signature.Link))
		},
		Decode: func(target interface{}, t *tlv.TLV) error {
			l, err := decodeLink(t)
			if err != nil {
				return err
			}
			set(target, l)
			return nil
		},
	}
}

var aggregationChainTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: TagAggrChainTime, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.AggregationChain).AggregationTime, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.AggregationChain).AggregationTime = v.(uint64)
			return nil
		},
	},
	tlv.Element{
		Tag: TagAggrChainIndex, Kind: tlv.KindInt, List: true,
		Get: func(t interface{}) (interface{}, bool) {
			idx := t.(*signature.AggregationChain).ChainIndex
			if len(idx) == 0 {
				return nil, false
			}
			out := make([]interface{}, len(idx))
			for i, v := range idx {
				out[i] = v
			}
			return out, true
		},
		Set: func(t interface{}, v interface{}) error {
			c := t.(*signature.AggregationChain)
			c.ChainIndex = append(c.ChainIndex, v.(uint64))
			return nil
		},
	},
	tlv.Element{
		Tag: TagAggrChainInputLevel, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			c := t.(*signature.AggregationChain)
			if c.InputLevel == 0 {
				return nil, false
			}
			return c.InputLevel, true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.AggregationChain).InputLevel = v.(uint64)
			return nil
		},
	},
	tlv.Element{
		Tag: TagAggrChainInput, Kind: tlv.KindImprint,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.AggregationChain).InputImprint, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.AggregationChain).InputImprint = v.(hash.Imprint)
			return nil
		},
	},
	tlv.Element{
		Tag: TagAggrChainAlgo, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			return uint64(t.(*signature.AggregationChain).Algorithm), true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.AggregationChain).Algorithm = hash.Algorithm(v.(uint64))
			return nil
		},
	},
	linksElement(TagAggrChainLink,
		func(t interface{}) []signature.Link { return t.(*signature.AggregationChain).Links },
		func(t interface{}, l signature.Link) {
			c := t.(*signature.AggregationChain)
			c.Links = append(c.Links, l)
		}),
)

var calendarChainTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: TagCalChainInp, Kind: tlv.KindImprint,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.CalendarChain).InputImprint, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.CalendarChain).InputImprint = v.(hash.Imprint)
			return nil
		},
	},
	tlv.Element{
		Tag: TagCalChainPubT, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.CalendarChain).PublicationTime, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.CalendarChain).PublicationTime = v.(uint64)
			return nil
		},
	},
	tlv.Element{
		Tag: TagCalChainAggT, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.CalendarChain).AggregationTime, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.CalendarChain).AggregationTime = v.(uint64)
			return nil
		},
	},
	tlv.Element{
		Tag: TagCalChainLink, Kind: tlv.KindCallback, List: true,
		Get: func(t interface{}) (interface{}, bool) {
			links := t.(*signature.CalendarChain).Links
			if len(links) == 0 {
				return nil, false
			}
			out := make([]interface{}, len(links))
			for i, l := range links {
				out[i] = l
			}
			return out, true
		},
		Encode: func(v interface{}) (*tlv.TLV, error) {
			l := v.(signature.CalendarLink)
			forward := l.Direction == signature.Right
			children := []*tlv.TLV{tlv.NewImprint(TagCalLinkSibling, false, false, l.Sibling)}
			return tlv.NewComposite(TagCalChainLink, false, forward, children), nil
		},
		Decode: func(target interface{}, t *tlv.TLV) error {
			kids, err := t.Nested()
			if err != nil {
				return err
			}
			var sib hash.Imprint
			for _, k := range kids {
				if k.Tag == TagCalLinkSibling {
					sib, err = k.AsImprint()
					if err != nil {
						return err
					}
				}
			}
			dir := signature.Left
			if t.Forward {
				dir = signature.Right
			}
			c := target.(*signature.CalendarChain)
			c.Links = append(c.Links, signature.CalendarLink{Direction: dir, Sibling: sib})
			return nil
		},
	},
)

var calendarAuthRecordTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: TagCalAuthPubT, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.CalendarAuthRecord).PublicationTime, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.CalendarAuthRecord).PublicationTime = v.(uint64)
			return nil
		},
	},
	tlv.Element{
		Tag: TagCalAuthHash, Kind: tlv.KindImprint,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.CalendarAuthRecord).PublishedHash, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.CalendarAuthRecord).PublishedHash = v.(hash.Imprint)
			return nil
		},
	},
	tlv.Element{
		Tag: TagCalAuthSigDER, Kind: tlv.KindBytes,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.CalendarAuthRecord).SignatureDER, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.CalendarAuthRecord).SignatureDER = v.([]byte)
			return nil
		},
	},
)

var publicationRecordTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: TagPubRecTime, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.PublicationRecord).PublicationTime, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.PublicationRecord).PublicationTime = v.(uint64)
			return nil
		},
	},
	tlv.Element{
		Tag: TagPubRecHash, Kind: tlv.KindImprint,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.PublicationRecord).PublishedHash, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.PublicationRecord).PublishedHash = v.(hash.Imprint)
			return nil
		},
	},
	tlv.Element{
		Tag: TagPubRecRef, Kind: tlv.KindUTF8, List: true,
		Get: func(t interface{}) (interface{}, bool) {
			refs := t.(*signature.PublicationRecord).PublicationRefs
			if len(refs) == 0 {
				return nil, false
			}
			out := make([]interface{}, len(refs))
			for i, r := range refs {
				out[i] = r
			}
			return out, true
		},
		Set: func(t interface{}, v interface{}) error {
			p := t.(*signature.PublicationRecord)
			p.PublicationRefs = append(p.PublicationRefs, v.(string))
			return nil
		},
	},
	tlv.Element{
		Tag: TagPubRecURI, Kind: tlv.KindUTF8, List: true,
		Get: func(t interface{}) (interface{}, bool) {
			uris := t.(*signature.PublicationRecord).RepositoryURIs
			if len(uris) == 0 {
				return nil, false
			}
			out := make([]interface{}, len(uris))
			for i, r := range uris {
				out[i] = r
			}
			return out, true
		},
		Set: func(t interface{}, v interface{}) error {
			p := t.(*signature.PublicationRecord)
			p.RepositoryURIs = append(p.RepositoryURIs, v.(string))
			return nil
		},
	},
)

var rfc3161RecordTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: TagRFC3161AggrTime, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.RFC3161Record).AggregationTime, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.RFC3161Record).AggregationTime = v.(uint64)
			return nil
		},
	},
	tlv.Element{
		Tag: TagRFC3161ChainIndex, Kind: tlv.KindInt, List: true,
		Get: func(t interface{}) (interface{}, bool) {
			idx := t.(*signature.RFC3161Record).ChainIndex
			if len(idx) == 0 {
				return nil, false
			}
			out := make([]interface{}, len(idx))
			for i, v := range idx {
				out[i] = v
			}
			return out, true
		},
		Set: func(t interface{}, v interface{}) error {
			r := t.(*signature.RFC3161Record)
			r.ChainIndex = append(r.ChainIndex, v.(uint64))
			return nil
		},
	},
	tlv.Element{
		Tag: TagRFC3161InputAlgo, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			return uint64(t.(*signature.RFC3161Record).InputHashAlgo), true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.RFC3161Record).InputHashAlgo = hash.Algorithm(v.(uint64))
			return nil
		},
	},
	tlv.Element{
		Tag: TagRFC3161TstInfoPrefix, Kind: tlv.KindBytes,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.RFC3161Record).TstInfoPrefix, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.RFC3161Record).TstInfoPrefix = v.([]byte)
			return nil
		},
	},
	tlv.Element{
		Tag: TagRFC3161TstInfoSuffix, Kind: tlv.KindBytes,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.RFC3161Record).TstInfoSuffix, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.RFC3161Record).TstInfoSuffix = v.([]byte)
			return nil
		},
	},
	tlv.Element{
		Tag: TagRFC3161TstInfoAlgo, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			return uint64(t.(*signature.RFC3161Record).TstInfoAlgo), true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.RFC3161Record).TstInfoAlgo = hash.Algorithm(v.(uint64))
			return nil
		},
	},
	tlv.Element{
		Tag: TagRFC3161SigAttrPrefix, Kind: tlv.KindBytes,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.RFC3161Record).SignedAttrPrefix, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.RFC3161Record).SignedAttrPrefix = v.([]byte)
			return nil
		},
	},
	tlv.Element{
		Tag: TagRFC3161SigAttrSuffix, Kind: tlv.KindBytes,
		Get: func(t interface{}) (interface{}, bool) { return t.(*signature.RFC3161Record).SignedAttrSuffix, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.RFC3161Record).SignedAttrSuffix = v.([]byte)
			return nil
		},
	},
	tlv.Element{
		Tag: TagRFC3161SigAttrAlgo, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) {
			return uint64(t.(*signature.RFC3161Record).SignedAttrAlgo), true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.RFC3161Record).SignedAttrAlgo = hash.Algorithm(v.(uint64))
			return nil
		},
	},
)

// signatureTemplate binds signature.Signature to TagSignature's children.
var signatureTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: TagAggrChain, Kind: tlv.KindComposite, List: true, Sub: &aggregationChainTemplate,
		New: func() interface{} { return &signature.AggregationChain{} },
		Get: func(t interface{}) (interface{}, bool) {
			chains := t.(*signature.Signature).Chains
			if len(chains) == 0 {
				return nil, false
			}
			out := make([]interface{}, len(chains))
			for i, c := range chains {
				out[i] = c
			}
			return out, true
		},
		Set: func(t interface{}, v interface{}) error {
			s := t.(*signature.Signature)
			s.Chains = append(s.Chains, v.(*signature.AggregationChain))
			return nil
		},
	},
	tlv.Element{
		Tag: TagCalChain, Kind: tlv.KindComposite, Sub: &calendarChainTemplate,
		New: func() interface{} { return &signature.CalendarChain{} },
		Get: func(t interface{}) (interface{}, bool) {
			c := t.(*signature.Signature).Calendar
			if c == nil {
				return nil, false
			}
			return c, true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.Signature).Calendar = v.(*signature.CalendarChain)
			return nil
		},
	},
	tlv.Element{
		Tag: TagCalAuthRec, Kind: tlv.KindComposite, Sub: &calendarAuthRecordTemplate,
		New: func() interface{} { return &signature.CalendarAuthRecord{} },
		Get: func(t interface{}) (interface{}, bool) {
			r := t.(*signature.Signature).CalendarAuthRecord
			if r == nil {
				return nil, false
			}
			return r, true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.Signature).CalendarAuthRecord = v.(*signature.CalendarAuthRecord)
			return nil
		},
	},
	tlv.Element{
		Tag: TagPubRecord, Kind: tlv.KindComposite, Sub: &publicationRecordTemplate,
		New: func() interface{} { return &signature.PublicationRecord{} },
		Get: func(t interface{}) (interface{}, bool) {
			r := t.(*signature.Signature).PublicationRecord
			if r == nil {
				return nil, false
			}
			return r, true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.Signature).PublicationRecord = v.(*signature.PublicationRecord)
			return nil
		},
	},
	tlv.Element{
		Tag: TagRFC3161Rec, Kind: tlv.KindComposite, Sub: &rfc3161RecordTemplate,
		New: func() interface{} { return &signature.RFC3161Record{} },
		Get: func(t interface{}) (interface{}, bool) {
			r := t.(*signature.Signature).RFC3161
			if r == nil {
				return nil, false
			}
			return r, true
		},
		Set: func(t interface{}, v interface{}) error {
			t.(*signature.Signature).RFC3161 = v.(*signature.RFC3161Record)
			return nil
		},
	},
)

// EncodeSignature serializes sig as a TagSignature-tagged TLV tree.
func EncodeSignature(sig *signature.Signature) ([]byte, error) {
	if sig.CalendarAuthRecord != nil && sig.PublicationRecord != nil {
		return nil, ksierr.New(ksierr.InvalidState, "signature carries both a calendar auth record and a publication record")
	}
	children, err := tlv.Construct(signatureTemplate, sig)
	if err != nil {
		return nil, err
	}
	node := tlv.NewComposite(TagSignature, false, false, children)
	return node.Encode(), nil
}

// DecodeSignature parses b as a TagSignature-tagged TLV tree.
func DecodeSignature(b []byte) (*signature.Signature, error) {
	node, n, err := tlv.Decode(b)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, ksierr.New(ksierr.InvalidFormat, "trailing bytes after signature")
	}
	if node.Tag != TagSignature {
		return nil, ksierr.New(ksierr.InvalidFormat, "not a signature TLV")
	}
	var sig signature.Signature
	if _, err := tlv.Extract(signatureTemplate, &sig, node); err != nil {
		return nil, err
	}
	if sig.CalendarAuthRecord != nil && sig.PublicationRecord != nil {
		return nil, ksierr.New(ksierr.InvalidFormat, "signature carries both a calendar auth record and a publication record")
	}
	return &sig, nil
}
