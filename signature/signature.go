package signature

import (
	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/ksierr"
)

// Signature is a non-empty list of aggregation chains ordered bottom-up
// (Chains[0] takes the document hash, each later chain the previous
// chain's output), a calendar chain (nil until one is present; it is
// replaced on Extend), and at most one of {CalendarAuthRecord,
// PublicationRecord}.
type Signature struct {
	Chains             []*AggregationChain
	Calendar           *CalendarChain
	CalendarAuthRecord *CalendarAuthRecord
	PublicationRecord  *PublicationRecord
	RFC3161            *RFC3161Record
}

// DocumentHash returns the digest the signature was issued over: the
// input imprint of the first (lowest-level) aggregation chain.
func (s *Signature) DocumentHash() (hash.Imprint, error) {
	if len(s.Chains) == 0 {
		return hash.Imprint{}, ksierr.New(ksierr.InvalidState, "signature has no aggregation chains")
	}
	return s.Chains[0].InputImprint, nil
}

// DocumentHashLevel returns the local aggregation level the signature's
// first chain commits to.
func (s *Signature) DocumentHashLevel() uint64 {
	if len(s.Chains) == 0 {
		return 0
	}
	return s.Chains[0].InputLevel
}

// IsExtended reports whether the signature carries a PublicationRecord
// (extended) rather than only a CalendarAuthRecord (not yet extended).
func (s *Signature) IsExtended() bool {
	return s.PublicationRecord != nil
}

// AggregationRoot runs the chain-to-chain algorithm: chain i's output
// imprint must feed chain i+1's input imprint, and the function returns
// the topmost (last) chain's output. This is the recomputed root that
// must equal the calendar chain's input imprint.
func (s *Signature) AggregationRoot() (hash.Imprint, error) {
	if len(s.Chains) == 0 {
		return hash.Imprint{}, ksierr.New(ksierr.InvalidState, "signature has no aggregation chains")
	}
	var running hash.Imprint
	for i, chain := range s.Chains {
		out, err := chain.Apply()
		if err != nil {
			return hash.Imprint{}, err
		}
		if i > 0 && !chain.InputImprint.Equal(running) {
			return hash.Imprint{}, ksierr.New(ksierr.InvalidFormat, "aggregation chain input does not match previous chain's output")
		}
		running = out
	}
	return running, nil
}

// CalendarRoot computes the calendar chain's root, or returns an error if
// no calendar chain is present.
func (s *Signature) CalendarRoot() (hash.Imprint, error) {
	if s.Calendar == nil {
		return hash.Imprint{}, ksierr.New(ksierr.InvalidState, "signature has no calendar chain")
	}
	return s.Calendar.Root()
}

// PublishedImprint returns the imprint the signature's calendar root must
// match: the CalendarAuthRecord's signed hash, or the PublicationRecord's
// published hash, whichever is present.
func (s *Signature) PublishedImprint() (hash.Imprint, error) {
	switch {
	case s.PublicationRecord != nil:
		return s.PublicationRecord.PublishedHash, nil
	case s.CalendarAuthRecord != nil:
		return s.CalendarAuthRecord.PublishedHash, nil
	default:
		return hash.Imprint{}, ksierr.New(ksierr.InvalidState, "signature has neither a publication nor a calendar auth record")
	}
}

// PublicationTime returns the publication time carried by whichever of
// {CalendarAuthRecord, PublicationRecord} is set.
func (s *Signature) PublicationTime() (uint64, error) {
	switch {
	case s.PublicationRecord != nil:
		return s.PublicationRecord.PublicationTime, nil
	case s.CalendarAuthRecord != nil:
		return s.CalendarAuthRecord.PublicationTime, nil
	default:
		return 0, ksierr.New(ksierr.InvalidState, "signature has neither a publication nor a calendar auth record")
	}
}

// AggregationTime returns the aggregation time recorded in the calendar
// chain, or an error if no calendar chain is present.
func (s *Signature) AggregationTime() (uint64, error) {
	if s.Calendar == nil {
		return 0, ksierr.New(ksierr.InvalidState, "signature has no calendar chain")
	}
	return s.Calendar.AggregationTime, nil
}
