package ksi

import (
	stdctx "context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/ksierr"
	"github.com/ekobi/goksi/pdu"
	"github.com/ekobi/goksi/policy"
	"github.com/ekobi/goksi/signature"
	"github.com/ekobi/goksi/transport"
)

// fakeAggregatorTransport returns a canned response for any request,
// grounded on original_source/test/ksi_net_mock.c's
// canned-response-by-imprint pattern.
type fakeAggregatorTransport struct {
	response []byte
}

type fakeHandle struct {
	request, response []byte
}

func (h *fakeHandle) SetRequestBytes(b []byte) { h.request = b }
func (h *fakeHandle) GetRequestBytes() []byte  { return h.request }
func (h *fakeHandle) GetResponseBytes() []byte { return h.response }
func (h *fakeHandle) Perform(ctx stdctx.Context) error { return nil }

func (t *fakeAggregatorTransport) OpenHandle(kind transport.Kind) (transport.Handle, error) {
	return &fakeHandle{response: t.response}, nil
}
func (t *fakeAggregatorTransport) Close() error { return nil }

func buildSigned(t *testing.T, doc hash.Imprint) *signature.Signature {
	t.Helper()
	sibling, err := hash.New(hash.SHA256, []byte("sibling"))
	require.NoError(t, err)
	chain := &signature.AggregationChain{
		Algorithm:       hash.SHA256,
		AggregationTime: 1398866256,
		InputImprint:    doc,
		Links:           []signature.Link{{Direction: signature.Left, Sibling: sibling}},
	}
	return &signature.Signature{Chains: []*signature.AggregationChain{chain}}
}

func TestContextSignReturnsAggregatorSignature(t *testing.T) {
	doc, err := hash.New(hash.SHA256, []byte("abc"))
	require.NoError(t, err)
	sig := buildSigned(t, doc)

	respBuf, err := pdu.EncodeAggregationResponse(pdu.V2, nil, &pdu.AggregationResponse{Signature: sig}, nil)
	require.NoError(t, err)

	c := &Context{aggrTransport: &fakeAggregatorTransport{response: respBuf}, aggrPDUVer: pdu.V2}
	c.errs = ksierr.NewStack(0)

	got, err := c.Sign(stdctx.Background(), doc)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.Chains[0].InputImprint.Equal(doc))
}

func TestContextSignPropagatesServiceError(t *testing.T) {
	respBuf, err := pdu.EncodeAggregationResponse(pdu.V2, nil, &pdu.AggregationResponse{
		Status: 5, ErrorMessage: "aggregator overloaded",
	}, nil)
	require.NoError(t, err)

	c := &Context{aggrTransport: &fakeAggregatorTransport{response: respBuf}, aggrPDUVer: pdu.V2}
	c.errs = ksierr.NewStack(0)

	doc, _ := hash.New(hash.SHA256, []byte("abc"))
	_, err = c.Sign(stdctx.Background(), doc)
	require.Error(t, err)
}

func TestContextSignWithoutAggregatorConfigured(t *testing.T) {
	c := &Context{}
	c.errs = ksierr.NewStack(0)
	_, err := c.Sign(stdctx.Background(), hash.Imprint{})
	require.Error(t, err)
}

func TestContextExtendReturnsNewCalendarChain(t *testing.T) {
	input, err := hash.New(hash.SHA256, []byte("root"))
	require.NoError(t, err)
	chain := &signature.CalendarChain{InputImprint: input, AggregationTime: 100, PublicationTime: 200}

	respBuf, err := pdu.EncodeExtendResponse(pdu.V2, nil, &pdu.ExtendResponse{CalChain: chain}, nil)
	require.NoError(t, err)

	c := &Context{extTransport: &fakeAggregatorTransport{response: respBuf}, extPDUVer: pdu.V2}
	c.errs = ksierr.NewStack(0)

	sig := &signature.Signature{Calendar: &signature.CalendarChain{AggregationTime: 100}}
	out, err := c.Extend(stdctx.Background(), sig, 200, true)
	require.NoError(t, err)
	require.Equal(t, uint64(200), out.Calendar.PublicationTime)
}

func TestContextVerifyUsesDefaultPolicy(t *testing.T) {
	doc, err := hash.New(hash.SHA256, []byte("abc"))
	require.NoError(t, err)
	sig := buildSigned(t, doc)
	cal := &signature.CalendarChain{}
	root, err := sig.AggregationRoot()
	require.NoError(t, err)
	cal.InputImprint = root
	cal.AggregationTime = sig.Chains[0].AggregationTime
	sig.Calendar = cal

	c := &Context{defaultPolicy: policy.Internal}
	c.errs = ksierr.NewStack(0)

	res, err := c.Verify(stdctx.Background(), sig, VerifyOptions{DocumentHash: doc, HasDocumentHash: true})
	require.NoError(t, err)
	require.Equal(t, policy.Ok, res.Status)
}
