package policy

import (
	stdctx "context"
	"encoding/binary"

	"github.com/ekobi/goksi/ksierr"
	"github.com/ekobi/goksi/pubfile"
	"github.com/ekobi/goksi/signature"
)

// verifyCalendarAuthSignature checks rec.SignatureDER against the
// canonical (PublicationTime, PublishedHash) encoding it was issued over,
// reusing the publications file's [length][cert][signature] scheme
// (pubfile.VerifySignatureBlock) since both records are signed the same
// way in the original protocol.
func verifyCalendarAuthSignature(rec *signature.CalendarAuthRecord, store pubfile.TrustStore) (bool, error) {
	var signedData [8]byte
	binary.BigEndian.PutUint64(signedData[:], rec.PublicationTime)
	data := append(signedData[:], rec.PublishedHash.Bytes()...)
	if err := pubfile.VerifySignatureBlock(store, data, rec.SignatureDER, ""); err != nil {
		return false, err
	}
	return true, nil
}

// ruleAggrChainTimeConsistency checks every aggregation chain in the
// signature agrees on the aggregation time, since they are all produced
// by the same aggregation round.
var ruleAggrChainTimeConsistency = Rule{
	Name: "aggr-chain-time-consistency",
	Eval: func(_ stdctx.Context, sig *signature.Signature, _ Input, _ Context) Outcome {
		if len(sig.Chains) == 0 {
			return fail(MissingElement, "signature has no aggregation chains")
		}
		want := sig.Chains[0].AggregationTime
		for _, c := range sig.Chains[1:] {
			if c.AggregationTime != want {
				return fail(AggrChainTimeInconsistent, "aggregation chains disagree on aggregation time")
			}
		}
		return ok()
	},
}

// ruleAggrChainInputHash checks the lowest aggregation chain's input
// imprint equals the caller's document hash, when one was supplied.
var ruleAggrChainInputHash = Rule{
	Name: "aggr-chain-input-hash",
	Eval: func(_ stdctx.Context, sig *signature.Signature, in Input, _ Context) Outcome {
		if !in.HasDocumentHash {
			return inconclusive()
		}
		docHash, err := sig.DocumentHash()
		if err != nil {
			return fail(MissingElement, err.Error())
		}
		if !docHash.Equal(in.DocumentHash) {
			return fail(AggrChainInputHashMismatch, "document hash does not match signature's input imprint")
		}
		return ok()
	},
}

// ruleAggrChainInternalConsistency checks every chain reduces cleanly to a
// root and chains above the first consume the previous chain's output.
var ruleAggrChainInternalConsistency = Rule{
	Name: "aggr-chain-internal-consistency",
	Eval: func(_ stdctx.Context, sig *signature.Signature, _ Input, _ Context) Outcome {
		if _, err := sig.AggregationRoot(); err != nil {
			if e, isErr := err.(*ksierr.Error); isErr && e.Code == ksierr.InvalidState {
				return fail(MissingElement, err.Error())
			}
			return fail(AggrChainInconsistent, err.Error())
		}
		return ok()
	},
}

// ruleCalChainInputEqualsAggrRoot checks the calendar chain's input
// imprint equals the aggregation chains' combined root.
var ruleCalChainInputEqualsAggrRoot = Rule{
	Name: "cal-chain-input-equals-aggr-root",
	Eval: func(_ stdctx.Context, sig *signature.Signature, _ Input, _ Context) Outcome {
		if sig.Calendar == nil {
			return inconclusive()
		}
		root, err := sig.AggregationRoot()
		if err != nil {
			return fail(AggrChainInconsistent, err.Error())
		}
		if !sig.Calendar.InputImprint.Equal(root) {
			return fail(CalChainInputMismatch, "calendar chain input does not equal aggregation root")
		}
		return ok()
	},
}

// ruleCalChainTimeEqualsAggrTime checks the calendar chain's claimed
// aggregation time matches the aggregation chains' aggregation time.
var ruleCalChainTimeEqualsAggrTime = Rule{
	Name: "cal-chain-time-equals-aggr-time",
	Eval: func(_ stdctx.Context, sig *signature.Signature, _ Input, _ Context) Outcome {
		if sig.Calendar == nil || len(sig.Chains) == 0 {
			return inconclusive()
		}
		if sig.Calendar.AggregationTime != sig.Chains[0].AggregationTime {
			return fail(CalChainTimeMismatch, "calendar chain aggregation time does not match aggregation chain time")
		}
		return ok()
	},
}

// ruleCalChainRootMatchesRecord checks the calendar chain's computed root
// equals the authentication record or publication record's imprint.
var ruleCalChainRootMatchesRecord = Rule{
	Name: "cal-chain-root-matches-record",
	Eval: func(_ stdctx.Context, sig *signature.Signature, _ Input, _ Context) Outcome {
		if sig.Calendar == nil {
			return inconclusive()
		}
		if sig.CalendarAuthRecord == nil && sig.PublicationRecord == nil {
			return inconclusive()
		}
		root, err := sig.Calendar.Root()
		if err != nil {
			return fail(CalChainRootMismatch, err.Error())
		}
		published, err := sig.PublishedImprint()
		if err != nil {
			return fail(MissingElement, err.Error())
		}
		if !root.Equal(published) {
			return fail(CalChainRootMismatch, "calendar chain root does not match authentication/publication record")
		}
		return ok()
	},
}

// rulePKISignatureVerifies checks the calendar authentication record's PKI
// signature against the context's trust store.
var rulePKISignatureVerifies = Rule{
	Name: "pki-signature-verifies",
	Eval: func(_ stdctx.Context, sig *signature.Signature, _ Input, pc Context) Outcome {
		if sig.CalendarAuthRecord == nil {
			return inconclusive()
		}
		if pc == nil || pc.TrustStore() == nil {
			return inconclusive()
		}
		// The calendar authentication record's signature format mirrors
		// the publications file's (see pubfile.File.Verify): a
		// [2-byte length][DER cert][raw signature] block signing the
		// canonical (PublicationTime, PublishedHash) encoding.
		ok2, err := verifyCalendarAuthSignature(sig.CalendarAuthRecord, pc.TrustStore())
		if err != nil {
			return fail(PKISignatureInvalid, err.Error())
		}
		if !ok2 {
			return fail(PKISignatureInvalid, "calendar authentication record signature does not verify")
		}
		return ok()
	},
}

// rulePublicationFileMatch checks the signature's publication record
// matches a record in the configured publications file.
var rulePublicationFileMatch = Rule{
	Name: "publication-file-match",
	Eval: func(stdCtx stdctx.Context, sig *signature.Signature, _ Input, pc Context) Outcome {
		if sig.PublicationRecord == nil {
			return inconclusive()
		}
		if pc == nil {
			return inconclusive()
		}
		pf, err := pc.PublicationsFile(stdCtx)
		if err != nil {
			return inconclusive()
		}
		rec, err := pf.FindAtOrAfter(sig.PublicationRecord.PublicationTime)
		if err != nil {
			return fail(PublicationNotFound, "no matching publications file record")
		}
		if rec.PublicationTime != sig.PublicationRecord.PublicationTime || !rec.PublishedHash.Equal(sig.PublicationRecord.PublishedHash) {
			return fail(PublicationNotFound, "publications file record does not match signature's publication record")
		}
		return ok()
	},
}

// ruleUserPublicationMatch checks a caller-supplied publication against
// the signature's calendar root at that publication time.
var ruleUserPublicationMatch = Rule{
	Name: "user-publication-match",
	Eval: func(_ stdctx.Context, sig *signature.Signature, in Input, _ Context) Outcome {
		if !in.HasUserPublication {
			return inconclusive()
		}
		if sig.Calendar == nil || sig.Calendar.PublicationTime != in.UserPublicationTime {
			return inconclusive()
		}
		root, err := sig.Calendar.Root()
		if err != nil {
			return fail(CalChainRootMismatch, err.Error())
		}
		if !root.Equal(in.UserPublicationHash) {
			return fail(UserPublicationMismatch, "user publication does not match signature's calendar root")
		}
		return ok()
	},
}

// ruleExtenderChainMatch asks the context to extend the signature to its
// own publication time and checks the returned chain reduces to the same
// root and aggregation time the signature already claims.
var ruleExtenderChainMatch = Rule{
	Name: "extender-chain-match",
	Eval: func(stdCtx stdctx.Context, sig *signature.Signature, _ Input, pc Context) Outcome {
		if pc == nil || sig.Calendar == nil {
			return inconclusive()
		}
		chain, err := pc.ExtendedCalendarChain(stdCtx, sig)
		if err != nil {
			return inconclusive()
		}
		root, err := chain.Root()
		if err != nil {
			return fail(ExtenderChainMismatch, err.Error())
		}
		wantRoot, err := sig.Calendar.Root()
		if err != nil {
			return fail(ExtenderChainMismatch, err.Error())
		}
		if !root.Equal(wantRoot) || chain.AggregationTime != sig.Calendar.AggregationTime {
			return fail(ExtenderChainMismatch, "extender-returned chain does not match stored aggregation root/time")
		}
		return ok()
	},
}
