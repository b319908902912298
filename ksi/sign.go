package ksi

import (
	stdctx "context"

	"github.com/ekobi/goksi/async"
	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/ksierr"
	"github.com/ekobi/goksi/pdu"
	"github.com/ekobi/goksi/signature"
	"github.com/ekobi/goksi/transport"
)

// Sign submits docHash to the configured aggregator and returns the
// resulting Signature, blocking until a response arrives or ctx is done.
// This is the synchronous convenience path; SignAsync exposes the
// non-blocking async.Service directly for callers driving many requests
// concurrently.
func (c *Context) Sign(ctx stdctx.Context, docHash hash.Imprint) (*signature.Signature, error) {
	if c.aggrTransport == nil {
		return nil, c.pushErr(ksierr.New(ksierr.InvalidState, "no aggregator configured"))
	}

	req := &pdu.AggregationRequest{RequestHash: docHash}
	buf, err := pdu.EncodeAggregationRequest(c.aggrPDUVer, c.header(), req, c.aggrMACKey)
	if err != nil {
		return nil, c.pushErr(err)
	}

	h, err := c.aggrTransport.OpenHandle(transport.KindSign)
	if err != nil {
		return nil, c.pushErr(err)
	}
	h.SetRequestBytes(buf)
	if err := h.Perform(ctx); err != nil {
		return nil, c.pushErr(err)
	}

	_, resp, err := pdu.DecodeAggregationResponse(c.aggrPDUVer, h.GetResponseBytes(), c.aggrMACKey)
	if err != nil {
		return nil, c.pushErr(err)
	}
	if resp.Status != 0 {
		return nil, c.pushErr(ksierr.NewExt(ksierr.ServiceInvalidPayload, int(resp.Status), resp.ErrorMessage))
	}
	if resp.Signature == nil {
		return nil, c.pushErr(ksierr.New(ksierr.InvalidFormat, "aggregator response carried no signature"))
	}
	return resp.Signature, nil
}

// SignAsync admits a signing request to the Context's async.Service,
// returning a Handle the caller polls (via Service.Run, see AggregatorService)
// rather than blocking.
func (c *Context) SignAsync(docHash hash.Imprint) (*asyncSignHandle, error) {
	if c.aggrService == nil {
		return nil, c.pushErr(ksierr.New(ksierr.InvalidState, "no aggregator configured"))
	}
	req := &pdu.AggregationRequest{RequestHash: docHash}
	buf, err := pdu.EncodeAggregationRequest(c.aggrPDUVer, c.header(), req, c.aggrMACKey)
	if err != nil {
		return nil, c.pushErr(err)
	}
	h, err := c.aggrService.AddRequest(transport.KindSign, buf)
	if err != nil {
		return nil, c.pushErr(err)
	}
	return &asyncSignHandle{ctx: c, h: h}, nil
}

// AggregatorService exposes the raw async.Service so callers can drive
// Service.Run themselves (e.g. on a select-loop alongside other I/O).
// Handles returned by SignAsync only complete while Run is being called;
// Wait on its own does not drive them.
func (c *Context) AggregatorService() *async.Service { return c.aggrService }

// classifyAggregationResponse is wired onto the aggregator async.Service
// as its ResponseClassifier: a response with no request-id that still
// carries a config payload is an unsolicited push-config notification,
// not a reply to any specific request.
func (c *Context) classifyAggregationResponse(raw []byte) (bool, error) {
	_, resp, err := pdu.DecodeAggregationResponse(c.aggrPDUVer, raw, c.aggrMACKey)
	if err != nil {
		return false, err
	}
	return !resp.HasRequestID && resp.Config != nil, nil
}

// asyncSignHandle wraps an async.Handle with signature decoding, so
// callers don't have to re-derive pdu.DecodeAggregationResponse
// themselves once a response lands.
type asyncSignHandle struct {
	ctx *Context
	h   *async.Handle
}

// Wait blocks until the underlying request completes, then decodes and
// returns the resulting Signature. If the aggregator instead delivered an
// unsolicited push-config notification to this handle, Wait returns an
// error and the decoded config is available from Config.
func (a *asyncSignHandle) Wait(ctx stdctx.Context) (*signature.Signature, error) {
	if err := a.h.Wait(ctx); err != nil {
		return nil, err
	}
	if err := a.h.Err(); err != nil {
		return nil, a.ctx.pushErr(err)
	}
	if a.h.State() == async.PushConfigReceived {
		return nil, a.ctx.pushErr(ksierr.New(ksierr.InvalidState, "aggregator sent a push-config notification instead of a signature"))
	}
	_, resp, err := pdu.DecodeAggregationResponse(a.ctx.aggrPDUVer, a.h.Response(), a.ctx.aggrMACKey)
	if err != nil {
		return nil, a.ctx.pushErr(err)
	}
	if resp.Status != 0 {
		return nil, a.ctx.pushErr(ksierr.NewExt(ksierr.ServiceInvalidPayload, int(resp.Status), resp.ErrorMessage))
	}
	return resp.Signature, nil
}

// Config decodes and returns the aggregator's push-config payload. Valid
// only once Wait has returned with the handle in PUSH_CONFIG_RECEIVED
// state.
func (a *asyncSignHandle) Config() (*pdu.AggregatorConfig, error) {
	if a.h.State() != async.PushConfigReceived {
		return nil, a.ctx.pushErr(ksierr.New(ksierr.InvalidState, "handle did not receive a push-config notification"))
	}
	_, resp, err := pdu.DecodeAggregationResponse(a.ctx.aggrPDUVer, a.h.PushConfig(), a.ctx.aggrMACKey)
	if err != nil {
		return nil, a.ctx.pushErr(err)
	}
	return resp.Config, nil
}
