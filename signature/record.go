package signature

import "github.com/ekobi/goksi/hash"

// CalendarAuthRecord anchors a calendar chain's root to a PKI-signed
// statement from the calendar service, used before a publication is
// available to extend against.
type CalendarAuthRecord struct {
	PublicationTime uint64
	PublishedHash   hash.Imprint
	// SignatureDER is a [2-byte cert length][DER cert][raw signature]
	// block over the big-endian PublicationTime followed by
	// PublishedHash's wire bytes; verified against a trust store
	// by the policy engine's key-based rules, not here.
	SignatureDER []byte
}

// PublicationRecord anchors a calendar chain's root to a value that has
// been independently published (e.g. in a newspaper or the publications
// file).
type PublicationRecord struct {
	PublicationTime   uint64
	PublishedHash     hash.Imprint
	PublicationRefs   []string
	RepositoryURIs    []string
}

// RFC3161Record is a legacy compatibility record allowing a KSI signature
// to also validate as an RFC 3161 timestamp. It is informational only:
// verification never treats its presence or content as authoritative
// over the calendar chain.
type RFC3161Record struct {
	AggregationTime  uint64
	ChainIndex       []uint64
	InputHashAlgo    hash.Algorithm
	TstInfoPrefix    []byte
	TstInfoSuffix    []byte
	TstInfoAlgo      hash.Algorithm
	SignedAttrPrefix []byte
	SignedAttrSuffix []byte
	SignedAttrAlgo   hash.Algorithm
}
