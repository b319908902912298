package ksi

import (
	stdctx "context"

	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/policy"
	"github.com/ekobi/goksi/signature"
)

// VerifyOptions carries the optional inputs a verification call may
// supply beyond the signature itself: the document hash it was issued
// over, a caller-pinned publication, and which policy to run.
type VerifyOptions struct {
	DocumentHash    hash.Imprint
	HasDocumentHash bool

	UserPublicationTime uint64
	UserPublicationHash hash.Imprint
	HasUserPublication  bool

	Policy *policy.Policy // nil uses the Context's default (policy.General)
}

// Verify evaluates sig against opts.Policy (or the Context's default),
// returning the policy engine's full Result. A Result.Status of
// policy.Ok means verification succeeded; Fail and Inconclusive are not
// Go errors — a failed or inconclusive verification is an expected
// outcome, not a fault. The returned error is always nil: an I/O or parse
// failure met inside a rule (fetching the publications file, asking the
// extender for a calendar chain) makes that rule Inconclusive, and the
// failure itself is not carried in the Result.
func (c *Context) Verify(ctx stdctx.Context, sig *signature.Signature, opts VerifyOptions) (policy.Result, error) {
	p := opts.Policy
	if p == nil {
		p = c.defaultPolicy
	}
	if p == nil {
		p = policy.General
	}

	in := policy.Input{
		DocumentHash:        opts.DocumentHash,
		HasDocumentHash:     opts.HasDocumentHash,
		UserPublicationTime: opts.UserPublicationTime,
		UserPublicationHash: opts.UserPublicationHash,
		HasUserPublication:  opts.HasUserPublication,
	}
	return p.Evaluate(ctx, sig, in, c), nil
}
