package signature

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekobi/goksi/hash"
)

func mustImprint(t *testing.T, data []byte) hash.Imprint {
	t.Helper()
	im, err := hash.New(hash.SHA256, data)
	require.NoError(t, err)
	return im
}

func buildChain(t *testing.T, input hash.Imprint, siblings ...[]byte) *AggregationChain {
	t.Helper()
	var links []Link
	for _, s := range siblings {
		links = append(links, Link{Direction: Left, Sibling: mustImprint(t, s)})
	}
	return &AggregationChain{Algorithm: hash.SHA256, InputImprint: input, Links: links}
}

func TestAggregationRootSingleChain(t *testing.T) {
	docHash := mustImprint(t, []byte("abc"))
	chain := buildChain(t, docHash, []byte("sib1"), []byte("sib2"))

	out, err := chain.Apply()
	require.NoError(t, err)
	require.NotEqual(t, docHash, out)

	sig := &Signature{Chains: []*AggregationChain{chain}}
	root, err := sig.AggregationRoot()
	require.NoError(t, err)
	require.Equal(t, out, root)
}

func TestAggregationRootMultiChainConsistency(t *testing.T) {
	docHash := mustImprint(t, []byte("abc"))
	chain0 := buildChain(t, docHash, []byte("sib1"))
	out0, err := chain0.Apply()
	require.NoError(t, err)

	chain1 := buildChain(t, out0, []byte("sib2"))
	sig := &Signature{Chains: []*AggregationChain{chain0, chain1}}

	root, err := sig.AggregationRoot()
	require.NoError(t, err)
	out1, err := chain1.Apply()
	require.NoError(t, err)
	require.Equal(t, out1, root)
}

func TestAggregationRootMultiChainMismatchFails(t *testing.T) {
	docHash := mustImprint(t, []byte("abc"))
	chain0 := buildChain(t, docHash, []byte("sib1"))
	// chain1's input is deliberately wrong (not chain0's output).
	chain1 := buildChain(t, docHash, []byte("sib2"))
	sig := &Signature{Chains: []*AggregationChain{chain0, chain1}}

	_, err := sig.AggregationRoot()
	require.Error(t, err)
}

func TestCalendarRootAndExtend(t *testing.T) {
	aggRoot := mustImprint(t, []byte("agg-root"))
	calChain := &CalendarChain{
		InputImprint:    aggRoot,
		AggregationTime: 1398866256,
		Links: []CalendarLink{
			{Direction: Right, Sibling: mustImprint(t, []byte("cal-sib"))},
		},
	}
	root, err := calChain.Root()
	require.NoError(t, err)

	authRecord := &CalendarAuthRecord{PublicationTime: 1398866256, PublishedHash: root}
	sig := &Signature{
		Chains:             []*AggregationChain{buildChain(t, mustImprint(t, []byte("abc")))},
		Calendar:           calChain,
		CalendarAuthRecord: authRecord,
	}
	require.False(t, sig.IsExtended())

	// Extend to a new calendar chain with the same aggregation time whose
	// root matches a publication record.
	newCal := &CalendarChain{
		InputImprint:    aggRoot,
		AggregationTime: 1398866256,
		Links: []CalendarLink{
			{Direction: Left, Sibling: mustImprint(t, []byte("new-sib"))},
		},
	}
	newRoot, err := newCal.Root()
	require.NoError(t, err)
	pub := PublicationRecord{PublicationTime: 1398870000, PublishedHash: newRoot}

	extended, err := sig.Extend(newCal, pub)
	require.NoError(t, err)
	require.True(t, extended.IsExtended())
	gotRoot, err := extended.CalendarRoot()
	require.NoError(t, err)
	require.Equal(t, newRoot, gotRoot)
}

func TestExtendRejectsMismatchedAggregationTime(t *testing.T) {
	sig := &Signature{
		Chains: []*AggregationChain{buildChain(t, mustImprint(t, []byte("abc")))},
		Calendar: &CalendarChain{
			InputImprint:    mustImprint(t, []byte("agg-root")),
			AggregationTime: 100,
		},
	}
	newCal := &CalendarChain{InputImprint: mustImprint(t, []byte("agg-root")), AggregationTime: 200}
	_, err := sig.Extend(newCal, PublicationRecord{})
	require.Error(t, err)
}

// TestVerificationFailureOnInputMismatch confirms the input-imprint
// mismatch path at the cross-chain layer. (An altered aggregation-chain
// time is not covered here: the chain-level time is not hashed by Apply,
// and only package policy's time rules catch it.)
func TestVerificationFailureOnInputMismatch(t *testing.T) {
	docHash := mustImprint(t, []byte("abc"))
	chain0 := buildChain(t, docHash, []byte("sib1"))
	out0, err := chain0.Apply()
	require.NoError(t, err)

	// Tamper: chain1's declared input differs from chain0's real output.
	tampered := mustImprint(t, append(out0.Digest, 0xff))
	chain1 := &AggregationChain{Algorithm: hash.SHA256, InputImprint: tampered}
	sig := &Signature{Chains: []*AggregationChain{chain0, chain1}}

	_, err = sig.AggregationRoot()
	require.Error(t, err)
}
