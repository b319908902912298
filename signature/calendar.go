package signature

import (
	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/ksierr"
)

// CalendarChain is the hash path from an aggregator root to the calendar
// root at a given publication time.
type CalendarChain struct {
	InputImprint    hash.Imprint
	PublicationTime uint64
	AggregationTime uint64
	Links           []CalendarLink
}

// CalendarLink is one (direction, sibling) step of a calendar chain. The
// calendar algorithm has no metadata links and no level byte: each link is
// a plain direction-ordered concatenation hashed with the running
// imprint's own algorithm.
type CalendarLink struct {
	Direction Direction
	Sibling   hash.Imprint
}

// Root computes the calendar chain's root imprint.
func (c *CalendarChain) Root() (hash.Imprint, error) {
	running := c.InputImprint
	if !running.Algorithm.Defined() {
		return hash.Imprint{}, ksierr.New(ksierr.UnavailableHashAlgorithm, running.Algorithm.String())
	}
	for _, link := range c.Links {
		var data []byte
		switch link.Direction {
		case Left:
			data = append(append([]byte{}, link.Sibling.Bytes()...), running.Bytes()...)
		case Right:
			data = append(append([]byte{}, running.Bytes()...), link.Sibling.Bytes()...)
		default:
			return hash.Imprint{}, ksierr.New(ksierr.InvalidFormat, "invalid link direction")
		}
		next, err := hash.New(running.Algorithm, data)
		if err != nil {
			return hash.Imprint{}, err
		}
		running = next
	}
	return running, nil
}
