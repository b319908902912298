package ksi

import (
	stdctx "context"

	"github.com/ekobi/goksi/async"
	"github.com/ekobi/goksi/ksierr"
	"github.com/ekobi/goksi/pdu"
	"github.com/ekobi/goksi/signature"
	"github.com/ekobi/goksi/transport"
)

// ExtenderService exposes the raw async.Service backing the extender
// connection, the extend-side analogue of Context.AggregatorService.
func (c *Context) ExtenderService() *async.Service { return c.extService }

// Extend asks the configured extender for a calendar chain covering sig
// from its aggregation time up to pubTime (or the extender's latest
// publication, when hasPubTime is false), and returns a copy of sig with
// its Calendar chain replaced.
func (c *Context) Extend(ctx stdctx.Context, sig *signature.Signature, pubTime uint64, hasPubTime bool) (*signature.Signature, error) {
	if sig.Calendar == nil {
		return nil, c.pushErr(ksierr.New(ksierr.InvalidArgument, "signature has no calendar chain to extend"))
	}
	chain, err := c.extendTo(ctx, sig.Calendar.AggregationTime, pubTime, hasPubTime)
	if err != nil {
		return nil, err
	}
	out := *sig
	out.Calendar = chain
	return &out, nil
}

func (c *Context) extendTo(ctx stdctx.Context, aggrTime, pubTime uint64, hasPubTime bool) (*signature.CalendarChain, error) {
	if c.extTransport == nil {
		return nil, c.pushErr(ksierr.New(ksierr.InvalidState, "no extender configured"))
	}

	req := &pdu.ExtendRequest{AggrTime: aggrTime, PubTime: pubTime, HasPubTime: hasPubTime}
	buf, err := pdu.EncodeExtendRequest(c.extPDUVer, c.header(), req, c.extMACKey)
	if err != nil {
		return nil, c.pushErr(err)
	}

	h, err := c.extTransport.OpenHandle(transport.KindExtend)
	if err != nil {
		return nil, c.pushErr(err)
	}
	h.SetRequestBytes(buf)
	if err := h.Perform(ctx); err != nil {
		return nil, c.pushErr(err)
	}

	_, resp, err := pdu.DecodeExtendResponse(c.extPDUVer, h.GetResponseBytes(), c.extMACKey)
	if err != nil {
		return nil, c.pushErr(err)
	}
	if resp.Status != 0 {
		return nil, c.pushErr(ksierr.NewExt(ksierr.ServiceInvalidPayload, int(resp.Status), resp.ErrorMessage))
	}
	if resp.CalChain == nil {
		return nil, c.pushErr(ksierr.New(ksierr.ExtendWrongCalChain, "extender response carried no calendar chain"))
	}
	return resp.CalChain, nil
}
