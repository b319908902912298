package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ekobi/goksi/transport"
)

type fakeTransport struct {
	mtx      sync.Mutex
	delay    time.Duration
	response []byte
	failErr  error
}

type fakeHandle struct {
	t       *fakeTransport
	request []byte
}

func (h *fakeHandle) SetRequestBytes(b []byte) { h.request = b }
func (h *fakeHandle) GetRequestBytes() []byte  { return h.request }
func (h *fakeHandle) GetResponseBytes() []byte { return h.t.response }

func (h *fakeHandle) Perform(ctx context.Context) error {
	if h.t.failErr != nil {
		return h.t.failErr
	}
	if h.t.delay > 0 {
		select {
		case <-time.After(h.t.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (t *fakeTransport) OpenHandle(kind transport.Kind) (transport.Handle, error) {
	return &fakeHandle{t: t}, nil
}
func (t *fakeTransport) Close() error { return nil }

// pump keeps calling Run in the background so blocking on Handle.Wait (or
// counting completions) doesn't deadlock in tests: nothing else drives the
// Service's cooperative dispatch loop. Stop it with the returned func once
// the test's handles are done.
func pump(ctx context.Context, s *Service) func() {
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

func TestAddRequestRejectsEmptyBody(t *testing.T) {
	s := NewService(&fakeTransport{}, 1, 1, time.Second)
	_, err := s.AddRequest(transport.KindSign, nil)
	require.Error(t, err)
}

func TestAddRequestRespectsCapacity(t *testing.T) {
	s := NewService(&fakeTransport{}, 1, 1, time.Second)
	h1, err := s.AddRequest(transport.KindSign, []byte("req1"))
	require.NoError(t, err)
	require.Equal(t, WaitingForDispatch, h1.State())

	_, err = s.AddRequest(transport.KindSign, []byte("req2"))
	require.Error(t, err)
}

func TestRunDispatchesAndCompletes(t *testing.T) {
	ft := &fakeTransport{response: []byte("resp")}
	s := NewService(ft, 2, 2, time.Second)

	h, err := s.AddRequest(transport.KindSign, []byte("req"))
	require.NoError(t, err)

	ctx := context.Background()
	did, err := s.Run(ctx)
	require.NoError(t, err)
	require.True(t, did)

	stop := pump(ctx, s)
	defer stop()

	require.NoError(t, h.Wait(ctx))
	require.Equal(t, ResponseReceived, h.State())
	require.Equal(t, []byte("resp"), h.Response())
}

func TestRunWithNothingPending(t *testing.T) {
	s := NewService(&fakeTransport{}, 1, 1, time.Second)
	did, err := s.Run(context.Background())
	require.NoError(t, err)
	require.False(t, did)
}

func TestAddRequestAfterCapacityFreesUpAfterRun(t *testing.T) {
	ft := &fakeTransport{response: []byte("ok")}
	s := NewService(ft, 1, 1, time.Second)

	h1, err := s.AddRequest(transport.KindSign, []byte("req1"))
	require.NoError(t, err)

	_, err = s.AddRequest(transport.KindSign, []byte("req2"))
	require.Error(t, err)

	ctx := context.Background()
	stop := pump(ctx, s)
	require.NoError(t, h1.Wait(ctx))
	stop()

	h2, err := s.AddRequest(transport.KindSign, []byte("req2"))
	require.NoError(t, err)
	require.Equal(t, WaitingForDispatch, h2.State())
}

// TestRunFlushesUpToMaxRequestCountPerCall exercises a cache bigger than
// the dispatch depth: twenty requests admitted against a cache of twenty
// but a dispatch depth of eight, so a single Run call must flush exactly
// eight handles and leave the rest WAITING_FOR_DISPATCH.
func TestRunFlushesUpToMaxRequestCountPerCall(t *testing.T) {
	ft := &fakeTransport{delay: 20 * time.Millisecond, response: []byte("ok")}
	s := NewService(ft, 20, 8, time.Second)

	handles := make([]*Handle, 0, 20)
	for i := 0; i < 20; i++ {
		h, err := s.AddRequest(transport.KindSign, []byte("req"))
		require.NoError(t, err)
		handles = append(handles, h)
	}

	did, err := s.Run(context.Background())
	require.NoError(t, err)
	require.True(t, did)

	dispatched := 0
	waiting := 0
	for _, h := range handles {
		switch h.State() {
		case WaitingForResponse:
			dispatched++
		case WaitingForDispatch:
			waiting++
		}
	}
	require.Equal(t, 8, dispatched)
	require.Equal(t, 12, waiting)

	ctx := context.Background()
	stop := pump(ctx, s)
	defer stop()
	for _, h := range handles {
		require.NoError(t, h.Wait(ctx))
		require.Equal(t, ResponseReceived, h.State())
	}
}

// TestRunIsNonBlocking asserts that Run itself returns promptly even while
// a dispatched handle is still mid-flight on a slow transport: the actual
// round trip must never happen on Run's own call stack.
func TestRunIsNonBlocking(t *testing.T) {
	ft := &fakeTransport{delay: 200 * time.Millisecond, response: []byte("ok")}
	s := NewService(ft, 1, 1, time.Second)

	_, err := s.AddRequest(transport.KindSign, []byte("req"))
	require.NoError(t, err)

	start := time.Now()
	_, err = s.Run(context.Background())
	require.NoError(t, err)
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPushConfigRoutedAwayFromResponseReceived(t *testing.T) {
	ft := &fakeTransport{response: []byte("cfg-notification")}
	s := NewService(ft, 1, 1, time.Second)
	s.Classify = func(raw []byte) (bool, error) {
		return string(raw) == "cfg-notification", nil
	}

	h, err := s.AddRequest(transport.KindSign, []byte("req"))
	require.NoError(t, err)

	ctx := context.Background()
	stop := pump(ctx, s)
	defer stop()

	require.NoError(t, h.Wait(ctx))
	require.Equal(t, PushConfigReceived, h.State())
	require.Equal(t, []byte("cfg-notification"), h.PushConfig())
	require.Nil(t, h.Response())
}

type flakyTransport struct {
	mtx      sync.Mutex
	attempts int
	response []byte
}

type flakyHandle struct{ t *flakyTransport }

func (h *flakyHandle) SetRequestBytes(b []byte) {}
func (h *flakyHandle) GetRequestBytes() []byte  { return nil }
func (h *flakyHandle) GetResponseBytes() []byte { return h.t.response }
func (h *flakyHandle) Perform(ctx context.Context) error {
	h.t.mtx.Lock()
	h.t.attempts++
	n := h.t.attempts
	h.t.mtx.Unlock()
	if n == 1 {
		return context.DeadlineExceeded
	}
	return nil
}

func (t *flakyTransport) OpenHandle(kind transport.Kind) (transport.Handle, error) {
	return &flakyHandle{t: t}, nil
}
func (t *flakyTransport) Close() error { return nil }

func TestRunRetriesOnceAfterTransportFailure(t *testing.T) {
	ft := &flakyTransport{response: []byte("ok-after-retry")}
	s := NewService(ft, 1, 1, time.Second)

	h, err := s.AddRequest(transport.KindSign, []byte("req"))
	require.NoError(t, err)

	ctx := context.Background()
	did, err := s.Run(ctx)
	require.NoError(t, err)
	require.True(t, did)

	stop := pump(ctx, s)
	defer stop()

	require.NoError(t, h.Wait(ctx))
	require.Equal(t, ResponseReceived, h.State())
	require.Equal(t, []byte("ok-after-retry"), h.Response())
	require.Equal(t, 2, ft.attempts)
}

func TestRunFailsAfterExhaustingRetry(t *testing.T) {
	ft := &fakeTransport{failErr: context.DeadlineExceeded}
	s := NewService(ft, 1, 1, time.Second)

	h, err := s.AddRequest(transport.KindSign, []byte("req"))
	require.NoError(t, err)

	ctx := context.Background()
	did, err := s.Run(ctx)
	require.NoError(t, err)
	require.True(t, did)

	stop := pump(ctx, s)
	defer stop()

	require.NoError(t, h.Wait(ctx))
	require.Equal(t, Errored, h.State())
	require.Error(t, h.Err())
}

func TestInstanceIDStable(t *testing.T) {
	a := InstanceID()
	b := InstanceID()
	require.Equal(t, a, b)
	require.Equal(t, NumericInstanceID(), NumericInstanceID())
}
