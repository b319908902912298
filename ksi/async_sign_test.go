package ksi

import (
	stdctx "context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ekobi/goksi/async"
	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/ksierr"
	"github.com/ekobi/goksi/pdu"
	"github.com/ekobi/goksi/transport"
)

// canningTransport hands back whatever response is queued for the Nth
// OpenHandle call it receives (0-indexed), repeating the last entry once
// the queue is exhausted. It lets one Service exercise a mix of ordinary
// signature responses and a push-config notification across many
// concurrently in-flight handles.
type canningTransport struct {
	mtx       sync.Mutex
	responses [][]byte
	calls     int
}

type canningHandle struct {
	request, response []byte
}

func (h *canningHandle) SetRequestBytes(b []byte) { h.request = b }
func (h *canningHandle) GetRequestBytes() []byte  { return h.request }
func (h *canningHandle) GetResponseBytes() []byte { return h.response }
func (h *canningHandle) Perform(ctx stdctx.Context) error { return nil }

func (t *canningTransport) OpenHandle(kind transport.Kind) (transport.Handle, error) {
	t.mtx.Lock()
	i := t.calls
	t.calls++
	t.mtx.Unlock()
	if i >= len(t.responses) {
		i = len(t.responses) - 1
	}
	return &canningHandle{response: t.responses[i]}, nil
}
func (t *canningTransport) Close() error { return nil }

func pumpService(ctx stdctx.Context, s *async.Service) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			s.Run(ctx)
			time.Sleep(time.Millisecond)
		}
	}()
	return func() {
		close(stop)
		wg.Wait()
	}
}

// TestSignAsyncPipelinesAheadOfDispatchDepth admits twenty requests against
// a cache of twenty but a dispatch depth of eight, confirming the service
// genuinely pipelines: more requests are queued than are ever in flight at
// once, and every one of them eventually resolves.
func TestSignAsyncPipelinesAheadOfDispatchDepth(t *testing.T) {
	doc, err := hash.New(hash.SHA256, []byte("doc"))
	require.NoError(t, err)
	sig := buildSigned(t, doc)
	respBuf, err := pdu.EncodeAggregationResponse(pdu.V2, nil, &pdu.AggregationResponse{Signature: sig}, nil)
	require.NoError(t, err)

	ft := &canningTransport{responses: [][]byte{respBuf}}
	c := &Context{aggrPDUVer: pdu.V2}
	c.errs = ksierr.NewStack(0)
	c.aggrService = async.NewService(ft, 20, 8, time.Second)
	c.aggrService.Classify = c.classifyAggregationResponse

	handles := make([]*asyncSignHandle, 0, 20)
	for i := 0; i < 20; i++ {
		h, err := c.SignAsync(doc)
		require.NoError(t, err)
		handles = append(handles, h)
	}

	ctx := stdctx.Background()
	stop := pumpService(ctx, c.aggrService)
	defer stop()

	for _, h := range handles {
		got, err := h.Wait(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
	}
}

// TestSignAsyncPushConfigDeliveredSeparatelyFromSignature checks that an
// unsolicited push-config response lands a handle in PUSH_CONFIG_RECEIVED
// rather than being mistaken for a signature, and that the config payload
// decodes correctly via asyncSignHandle.Config.
func TestSignAsyncPushConfigDeliveredSeparatelyFromSignature(t *testing.T) {
	doc, err := hash.New(hash.SHA256, []byte("doc"))
	require.NoError(t, err)

	cfgBuf, err := pdu.EncodeAggregationResponse(pdu.V2, nil, &pdu.AggregationResponse{
		HasRequestID: false,
		Config:       &pdu.AggregatorConfig{MaxLevel: 4, HasMaxLevel: true},
	}, nil)
	require.NoError(t, err)

	ft := &canningTransport{responses: [][]byte{cfgBuf}}
	c := &Context{aggrPDUVer: pdu.V2}
	c.errs = ksierr.NewStack(0)
	c.aggrService = async.NewService(ft, 1, 1, time.Second)
	c.aggrService.Classify = c.classifyAggregationResponse

	h, err := c.SignAsync(doc)
	require.NoError(t, err)

	ctx := stdctx.Background()
	stop := pumpService(ctx, c.aggrService)
	defer stop()

	_, err = h.Wait(ctx)
	require.Error(t, err)

	cfg, err := h.Config()
	require.NoError(t, err)
	require.True(t, cfg.HasMaxLevel)
	require.Equal(t, uint64(4), cfg.MaxLevel)
}
