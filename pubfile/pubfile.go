// Package pubfile parses, PKI-verifies, and queries the KSI publications
// file: a periodically republished, PKI-signed list of calendar roots
// clients extend and verify against without contacting a service. Built
// on package tlv's template machinery, the same Construct/Extract
// pattern package pdu uses for signatures, with a TTL'd, flock-guarded
// on-disk cache alongside it.
package pubfile

import (
	"bytes"

	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/ksierr"
	"github.com/ekobi/goksi/tlv"
)

// magic is the fixed 8-byte prefix every publications file begins with,
// ahead of the TLV stream; it has no TLV structure of its own and is
// verified byte-for-byte before any TLV parsing is attempted.
var magic = []byte("KSIPUBLF")

// Wire tags for the publications file's own TLV namespace, disjoint from
// package pdu's PDU tags since a publications file is never embedded in a
// request/response (Open Question resolution, no original_source coverage
// for this block - see DESIGN.md).
const (
	tagFile       uint16 = 0x0700
	tagHeader     uint16 = 0x0701
	tagVersion    uint16 = 0x01
	tagCreateTime uint16 = 0x02

	tagCertRecord  uint16 = 0x0702
	tagCertID      uint16 = 0x01
	tagCertDER     uint16 = 0x02

	tagPubRecord uint16 = 0x0703
	tagPubTime   uint16 = 0x02
	tagPubHash   uint16 = 0x04
	tagPubRef    uint16 = 0x09
	tagPubURI    uint16 = 0x0a

	tagSignature uint16 = 0x0704
)

// CertRecord binds a short certificate ID (referenced from a signed
// publications-file header) to its DER-encoded X.509 certificate.
type CertRecord struct {
	CertID string
	CertDER []byte
}

// PublicationRecord is one published calendar root.
type PublicationRecord struct {
	PublicationTime uint64
	PublishedHash   hash.Imprint
	PublicationRefs []string
	RepositoryURIs  []string
}

// File is a fully parsed (but not yet PKI-verified) publications file.
type File struct {
	Version         uint64
	CreationTime    uint64
	CertRecords     []CertRecord
	PublicationRecs []PublicationRecord

	// signedPrefix is the exact byte range the embedded signature covers:
	// everything from the start of the TLV stream up to (not including)
	// the signature TLV itself.
	signedPrefix []byte
	signatureDER []byte
}

var certRecordTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: tagCertID, Kind: tlv.KindUTF8,
		Get: func(t interface{}) (interface{}, bool) { return t.(*CertRecord).CertID, true },
		Set: func(t interface{}, v interface{}) error { t.(*CertRecord).CertID = v.(string); return nil },
	},
	tlv.Element{
		Tag: tagCertDER, Kind: tlv.KindBytes,
		Get: func(t interface{}) (interface{}, bool) { return t.(*CertRecord).CertDER, true },
		Set: func(t interface{}, v interface{}) error { t.(*CertRecord).CertDER = v.([]byte); return nil },
	},
)

var pubRecordTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: tagPubTime, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) { return t.(*PublicationRecord).PublicationTime, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*PublicationRecord).PublicationTime = v.(uint64)
			return nil
		},
	},
	tlv.Element{
		Tag: tagPubHash, Kind: tlv.KindImprint,
		Get: func(t interface{}) (interface{}, bool) { return t.(*PublicationRecord).PublishedHash, true },
		Set: func(t interface{}, v interface{}) error {
			t.(*PublicationRecord).PublishedHash = v.(hash.Imprint)
			return nil
		},
	},
	tlv.Element{
		Tag: tagPubRef, Kind: tlv.KindUTF8, List: true,
		Get: func(t interface{}) (interface{}, bool) {
			refs := t.(*PublicationRecord).PublicationRefs
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
			p := t.(*PublicationRecord)
			p.PublicationRefs = append(p.PublicationRefs, v.(string))
			return nil
		},
	},
	tlv.Element{
		Tag: tagPubURI, Kind: tlv.KindUTF8, List: true,
		Get: func(t interface{}) (interface{}, bool) {
			uris := t.(*PublicationRecord).RepositoryURIs
			if len(uris) == 0 {
				return nil, false
			}
			out := make([]interface{}, len(uris))
			for i, u := range uris {
				out[i] = u
			}
			return out, true
		},
		Set: func(t interface{}, v interface{}) error {
			p := t.(*PublicationRecord)
			p.RepositoryURIs = append(p.RepositoryURIs, v.(string))
			return nil
		},
	},
)

var headerTemplate = tlv.Tmpl(
	tlv.Element{
		Tag: tagVersion, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) { return t.(*File).Version, true },
		Set: func(t interface{}, v interface{}) error { t.(*File).Version = v.(uint64); return nil },
	},
	tlv.Element{
		Tag: tagCreateTime, Kind: tlv.KindInt,
		Get: func(t interface{}) (interface{}, bool) { return t.(*File).CreationTime, true },
		Set: func(t interface{}, v interface{}) error { t.(*File).CreationTime = v.(uint64); return nil },
	},
)

// Parse validates the magic prefix, decodes the TLV stream, and returns a
// File with its signature still unverified; call Verify before trusting
// any query result.
func Parse(b []byte) (*File, error) {
	if len(b) < len(magic) || !bytes.Equal(b[:len(magic)], magic) {
		return nil, ksierr.New(ksierr.InvalidFormat, "publications file missing magic prefix")
	}
	body := b[len(magic):]

	children, err := tlv.DecodeAll(body)
	if err != nil {
		return nil, err
	}

	var f File
	var sigOffset int
	off := 0
	for _, c := range children {
		switch c.Tag {
		case tagHeader:
			if _, err := tlv.Extract(headerTemplate, &f, c); err != nil {
				return nil, err
			}
		case tagCertRecord:
			var cr CertRecord
			if _, err := tlv.Extract(certRecordTemplate, &cr, c); err != nil {
				return nil, err
			}
			f.CertRecords = append(f.CertRecords, cr)
		case tagPubRecord:
			var pr PublicationRecord
			if _, err := tlv.Extract(pubRecordTemplate, &pr, c); err != nil {
				return nil, err
			}
			f.PublicationRecs = append(f.PublicationRecs, pr)
		case tagSignature:
			f.signatureDER = append([]byte(nil), c.Raw()...)
			f.signedPrefix = append([]byte(nil), body[:off]...)
		default:
			return nil, ksierr.New(ksierr.InvalidFormat, "unknown critical tag in publications file")
		}
		off += c.EncodedLen()
	}
	if f.signatureDER == nil {
		return nil, ksierr.New(ksierr.InvalidFormat, "publications file missing signature")
	}
	if len(f.PublicationRecs) == 0 {
		return nil, ksierr.New(ksierr.InvalidFormat, "publications file has no publication records")
	}
	return &f, nil
}

// Encode serializes f back to its wire form, magic prefix included. Used
// by tests to exercise the parse/encode round trip.
func (f *File) Encode() ([]byte, error) {
	var children []*tlv.TLV
	hdrChildren, err := tlv.Construct(headerTemplate, f)
	if err != nil {
		return nil, err
	}
	children = append(children, tlv.NewComposite(tagHeader, false, false, hdrChildren))
	for i := range f.CertRecords {
		cc, err := tlv.Construct(certRecordTemplate, &f.CertRecords[i])
		if err != nil {
			return nil, err
		}
		children = append(children, tlv.NewComposite(tagCertRecord, false, false, cc))
	}
	for i := range f.PublicationRecs {
		pc, err := tlv.Construct(pubRecordTemplate, &f.PublicationRecs[i])
		if err != nil {
			return nil, err
		}
		children = append(children, tlv.NewComposite(tagPubRecord, false, false, pc))
	}
	children = append(children, tlv.New(tagSignature, false, false, f.signatureDER))

	var body []byte
	for _, c := range children {
		body = append(body, c.Encode()...)
	}
	return append(append([]byte{}, magic...), body...), nil
}
