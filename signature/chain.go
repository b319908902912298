// Package signature implements the KSI signature data model: aggregation
// hash chains, the calendar hash chain, the records that anchor a
// signature to a calendar root, and the aggregate Signature type itself.
package signature

import (
	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/ksierr"
)

// Direction is the side a sibling imprint sits on when a link is applied.
type Direction int

const (
	Left Direction = iota
	Right
)

// Metadata is optional per-link provenance an aggregator may record
// instead of a plain sibling hash: client id, machine id, sequence
// number, and request time. When present it is itself hashed (via the
// fixed byte encoding built by encodeMetadata) to produce the sibling
// imprint for that link.
type Metadata struct {
	ClientID    string
	MachineID   string
	SequenceNr  uint64
	HasSeq      bool
	RequestTime uint64
	HasReqTime  bool
}

// Link is one step of an aggregation or calendar hash chain.
type Link struct {
	Direction Direction
	// Sibling is used when Metadata is nil.
	Sibling hash.Imprint
	// Metadata, when non-nil, replaces Sibling: the sibling imprint is
	// derived from the metadata's encoding instead of a bare hash.
	Metadata *Metadata
	// LevelCorrection is the number of extra levels this link accounts
	// for beyond the implicit +1 per link.
	LevelCorrection uint64
}

// siblingImprint resolves the effective sibling for a link, hashing
// Metadata's canonical encoding with alg when no plain sibling is set.
func (l Link) siblingImprint(alg hash.Algorithm) (hash.Imprint, error) {
	if l.Metadata == nil {
		return l.Sibling, nil
	}
	return hash.New(alg, encodeMetadata(l.Metadata))
}

// encodeMetadata produces a small canonical byte encoding of metadata for
// hashing; field order is fixed so the same metadata always hashes the
// same way.
func encodeMetadata(m *Metadata) []byte {
	var b []byte
	b = append(b, []byte(m.ClientID)...)
	b = append(b, 0)
	b = append(b, []byte(m.MachineID)...)
	b = append(b, 0)
	if m.HasSeq {
		b = append(b, 1)
		b = appendUint64(b, m.SequenceNr)
	} else {
		b = append(b, 0)
	}
	if m.HasReqTime {
		b = append(b, 1)
		b = appendUint64(b, m.RequestTime)
	} else {
		b = append(b, 0)
	}
	return b
}

func appendUint64(b []byte, v uint64) []byte {
	for i := 7; i >= 0; i-- {
		b = append(b, byte(v>>(8*uint(i))))
	}
	return b
}

// AggregationChain is one ordered sequence of links computing from an
// input imprint (a document hash, or the previous chain's output, when a
// signature carries more than one chain) up to an output imprint at the
// next aggregation round.
type AggregationChain struct {
	Algorithm       hash.Algorithm // hash function used to apply links
	AggregationTime uint64
	ChainIndex      []uint64 // aggregator shape indices, opaque to verification
	InputImprint    hash.Imprint
	InputLevel      uint64 // local aggregation level the input commits to
	Links           []Link
}

// Apply runs the chain's link-application algorithm: for each link,
// concatenate sibling/running per direction, append the accumulated level
// as a single byte, and hash with Algorithm. It returns the chain's
// output imprint.
func (c *AggregationChain) Apply() (hash.Imprint, error) {
	if !c.Algorithm.Defined() {
		return hash.Imprint{}, ksierr.New(ksierr.UnavailableHashAlgorithm, c.Algorithm.String())
	}
	running := c.InputImprint
	level := c.InputLevel
	for i, link := range c.Links {
		level += link.LevelCorrection + 1
		if level > 0xff {
			return hash.Imprint{}, ksierr.New(ksierr.InvalidFormat, "aggregation level overflow")
		}
		sib, err := link.siblingImprint(c.Algorithm)
		if err != nil {
			return hash.Imprint{}, err
		}
		var data []byte
		switch link.Direction {
		case Left:
			data = append(append([]byte{}, sib.Bytes()...), running.Bytes()...)
		case Right:
			data = append(append([]byte{}, running.Bytes()...), sib.Bytes()...)
		default:
			return hash.Imprint{}, ksierr.New(ksierr.InvalidFormat, "invalid link direction")
		}
		data = append(data, byte(level))
		next, err := hash.New(c.Algorithm, data)
		if err != nil {
			return hash.Imprint{}, err
		}
		running = next
		_ = i
	}
	return running, nil
}

// OutputLevel returns the accumulated level after applying all links,
// without hashing; used by verification rules that need to cross-check
// level bookkeeping independent of the digest itself.
func (c *AggregationChain) OutputLevel() uint64 {
	level := c.InputLevel
	for _, l := range c.Links {
		level += l.LevelCorrection + 1
	}
	return level
}
