// Package policy implements the composable verification rule/policy tree:
// deterministic rules evaluated in order, policies as ordered rule
// sequences with an optional fallback, and a closed verification
// error-code set. A rule sequence stops at the first non-ok result,
// mirroring a first-failure validation pipeline.
package policy

import (
	stdctx "context"

	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/pubfile"
	"github.com/ekobi/goksi/signature"
)

// Status is a rule or policy's terminal classification.
type Status int

const (
	Ok Status = iota
	Fail
	Inconclusive
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case Fail:
		return "fail"
	case Inconclusive:
		return "inconclusive"
	default:
		return "unknown"
	}
}

// Outcome is one rule's verdict.
type Outcome struct {
	Status  Status
	Code    ErrorCode
	Message string
}

func ok() Outcome                 { return Outcome{Status: Ok} }
func inconclusive() Outcome       { return Outcome{Status: Inconclusive} }
func fail(c ErrorCode, m string) Outcome { return Outcome{Status: Fail, Code: c, Message: m} }

// Input carries the caller-supplied verification context a rule may need
// beyond the signature itself: the document hash being checked, and/or a
// caller-provided publication to verify against.
type Input struct {
	DocumentHash    hash.Imprint
	HasDocumentHash bool

	UserPublicationTime uint64
	UserPublicationHash hash.Imprint
	HasUserPublication  bool
}

// Context supplies the external resources some rules need: a PKI trust
// store, a publications file, and extender access. It is a narrower
// interface than the top-level ksi.Context so that policy has no import
// dependency on it.
type Context interface {
	TrustStore() pubfile.TrustStore
	PublicationsFile(ctx stdctx.Context) (*pubfile.File, error)
	ExtendedCalendarChain(ctx stdctx.Context, sig *signature.Signature) (*signature.CalendarChain, error)
}

// Rule is a deterministic pure function from (signature, input, context) to
// an Outcome.
type Rule struct {
	Name string
	Eval func(ctx stdctx.Context, sig *signature.Signature, in Input, pc Context) Outcome
}

// RuleResult records one rule's outcome for the Result trail.
type RuleResult struct {
	Rule   string
	Policy string
	Outcome
}

// Result is a policy evaluation's terminal verdict plus the full trail of
// rules attempted, across fallbacks.
type Result struct {
	Status Status
	Code   ErrorCode
	Message string
	Trail  []RuleResult
}

// Policy is an ordered rule sequence with an optional fallback policy.
// Evaluation runs each rule in order and stops at the first non-ok
// result; an ok final result succeeds the policy, a fail result fails it
// outright, and an inconclusive result falls through to Fallback if one
// is set.
type Policy struct {
	Name     string
	Rules    []Rule
	Fallback *Policy
}

// Evaluate runs p's rules in order, stopping at the first non-ok result.
// An ok result at the end of the sequence succeeds the policy. A fail
// result fails the policy outright (the fallback, if any, is not run). An
// inconclusive result falls through to Fallback.Evaluate, or is returned
// as-is if there is no fallback.
func (p *Policy) Evaluate(ctx stdctx.Context, sig *signature.Signature, in Input, pc Context) Result {
	var trail []RuleResult
	for _, r := range p.Rules {
		o := r.Eval(ctx, sig, in, pc)
		trail = append(trail, RuleResult{Rule: r.Name, Policy: p.Name, Outcome: o})
		switch o.Status {
		case Ok:
			continue
		case Fail:
			return Result{Status: Fail, Code: o.Code, Message: o.Message, Trail: trail}
		case Inconclusive:
			if p.Fallback != nil {
				sub := p.Fallback.Evaluate(ctx, sig, in, pc)
				sub.Trail = append(trail, sub.Trail...)
				return sub
			}
			return Result{Status: Inconclusive, Code: o.Code, Message: o.Message, Trail: trail}
		}
	}
	return Result{Status: Ok, Trail: trail}
}
