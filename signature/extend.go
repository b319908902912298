package signature

import (
	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/ksierr"
)

// PublicationLookup resolves the nearest publication at-or-after a given
// time, used by ResolveExtensionTarget.
type PublicationLookup interface {
	PublicationAtOrAfter(t uint64) (time uint64, imprint hash.Imprint, ok bool)
}

// ExtendedCalendar is what an extender service returns for a given
// aggregation time and (possibly zero) target publication time.
type ExtendedCalendar struct {
	Chain *CalendarChain
}

// Extend replaces s's calendar chain with newCal, which must keep s's
// aggregation time and whose root must equal pub's published hash; the
// result carries pub as its PublicationRecord. Picking the publication to
// extend to is done separately, by ResolveExtensionTarget.
//
// It returns a new Signature; s is left unmodified.
func (s *Signature) Extend(newCal *CalendarChain, pub PublicationRecord) (*Signature, error) {
	if s.Calendar == nil {
		return nil, ksierr.New(ksierr.InvalidState, "signature has no calendar chain to extend from")
	}
	if newCal.AggregationTime != s.Calendar.AggregationTime {
		return nil, ksierr.New(ksierr.ExtendWrongCalChain, "extended chain aggregation time does not match original")
	}
	root, err := newCal.Root()
	if err != nil {
		return nil, err
	}
	if !root.Equal(pub.PublishedHash) {
		return nil, ksierr.New(ksierr.ExtendWrongCalChain, "extended chain root does not match target publication record")
	}

	out := &Signature{
		Chains:             s.Chains,
		Calendar:           newCal,
		PublicationRecord:  &pub,
		CalendarAuthRecord: nil,
		RFC3161:            s.RFC3161,
	}
	return out, nil
}

// ResolveExtensionTarget picks the publication time to extend to: target
// when non-zero, otherwise the nearest publication at-or-after
// aggregationTime from lookup.
func ResolveExtensionTarget(lookup PublicationLookup, aggregationTime, target uint64) (uint64, hash.Imprint, error) {
	if target != 0 {
		t, im, ok := lookup.PublicationAtOrAfter(target)
		if !ok || t != target {
			return 0, hash.Imprint{}, ksierr.New(ksierr.InvalidArgument, "no publication exists at the requested target time")
		}
		return t, im, nil
	}
	t, im, ok := lookup.PublicationAtOrAfter(aggregationTime)
	if !ok {
		return 0, hash.Imprint{}, ksierr.New(ksierr.InvalidState, "no publication available at or after aggregation time")
	}
	return t, im, nil
}
