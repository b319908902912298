// Package async implements the non-blocking request/response service a
// ksi.Context uses to drive many concurrent sign/extend exchanges over a
// handful of transport.Transport connections: FIFO admission into a
// bounded cache, per-handle dispatch goroutines started by Run, and response correlation by
// handle rather than by connection position.
package async

import (
	"container/list"
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekobi/goksi/ksierr"
	"github.com/ekobi/goksi/transport"
)

// State is a Handle's position in its lifecycle.
type State int

const (
	WaitingNew State = iota
	WaitingForDispatch
	WaitingForResponse
	ResponseReceived
	PushConfigReceived
	Errored
)

func (s State) String() string {
	switch s {
	case WaitingNew:
		return "WAITING_NEW"
	case WaitingForDispatch:
		return "WAITING_FOR_DISPATCH"
	case WaitingForResponse:
		return "WAITING_FOR_RESPONSE"
	case ResponseReceived:
		return "RESPONSE_RECEIVED"
	case PushConfigReceived:
		return "PUSH_CONFIG_RECEIVED"
	case Errored:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Handle tracks one asynchronous request end-to-end. Callers poll State
// (or call Wait) rather than blocking a goroutine per request.
type Handle struct {
	ID   uint64
	Kind transport.Kind

	mtx      sync.Mutex
	state    State
	request  []byte
	response []byte
	pushCfg  []byte
	err      error
	created  time.Time
	done     chan struct{}
}

// State returns the handle's current lifecycle state.
func (h *Handle) State() State {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.state
}

// Response returns the raw response bytes once State is ResponseReceived.
func (h *Handle) Response() []byte {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.response
}

// PushConfig returns the raw push-config payload once State is
// PushConfigReceived.
func (h *Handle) PushConfig() []byte {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.pushCfg
}

// Err returns the terminal error, if State is Errored.
func (h *Handle) Err() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.err
}

// Wait blocks until the handle leaves WAITING_FOR_DISPATCH/
// WAITING_FOR_RESPONSE or ctx is done. Wait does not drive the Service:
// a handle only reaches a terminal state when some caller keeps calling
// Service.Run, which dispatches it and later lands its outcome.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) finish(state State, response []byte, err error) {
	h.mtx.Lock()
	h.state = state
	if state == PushConfigReceived {
		h.pushCfg = response
	} else {
		h.response = response
	}
	h.err = err
	h.mtx.Unlock()
	close(h.done)
}

// ResponseClassifier inspects a successfully-received raw response and
// reports whether it is an unsolicited push-config notification rather
// than a normal reply, so the Service can route it to
// PUSH_CONFIG_RECEIVED instead of RESPONSE_RECEIVED. ksi.Context wires
// one in from the pdu package's response decoders.
type ResponseClassifier func(raw []byte) (isPushConfig bool, err error)

// Service admission-controls and FIFO-dispatches Handles over one
// transport.Transport. It draws a line between two independently
// configurable bounds, the way a connection-pooled client distinguishes
// "how many requests may be outstanding or queued at once" from "how many
// of those are actively being sent/received right now":
//
//   - CacheSize bounds admission: AddRequest rejects once inflight
//     handles (queued + dispatched, not yet terminal) reach CacheSize.
//   - MaxRequestCount bounds how many handles are dispatched onto the
//     transport at once (dispatched and not yet collected by Run); it
//     governs dispatch depth, not admission.
//
// Both default to 1 if given as zero, matching a serial request/response
// pattern; raising CacheSize above MaxRequestCount lets callers queue far
// ahead of what's actively in flight, achieving the pipelining a single
// connection can sustain.
type Service struct {
	Transport       transport.Transport
	MaxRequestCount int // bound on handles dispatched and not yet collected by Run
	CacheSize       int // admission bound on queued+dispatched handles
	RequestTimeout  time.Duration

	// Classify, if set, inspects each successfully-received response and
	// routes push-config notifications to PUSH_CONFIG_RECEIVED instead of
	// RESPONSE_RECEIVED.
	Classify ResponseClassifier

	mtx        sync.Mutex
	nextID     uint64
	pending    *list.List // *Handle, WAITING_FOR_DISPATCH, FIFO order
	completed  *list.List // *handleResult, terminal, not yet drained by Run
	inflight   int        // admitted, not yet terminal; bounded by CacheSize
	dispatched int        // WAITING_FOR_RESPONSE right now; bounded by MaxRequestCount
	closed     bool
}

type handleResult struct {
	h        *Handle
	response []byte
	err      error
}

// NewService builds a Service with the given admission bound and dispatch
// depth. A value of 0 for either is treated as 1, matching the documented
// default of a strictly serial request/response pattern.
func NewService(t transport.Transport, cacheSize, maxRequestCount int, timeout time.Duration) *Service {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	if maxRequestCount <= 0 {
		maxRequestCount = 1
	}
	return &Service{
		Transport:       t,
		MaxRequestCount: maxRequestCount,
		CacheSize:       cacheSize,
		RequestTimeout:  timeout,
		pending:         list.New(),
		completed:       list.New(),
	}
}

// AddRequest admits a new request, returning a Handle in WAITING_FOR_DISPATCH
// state, or an error if the Service is at capacity, closed, or given an
// empty request.
func (s *Service) AddRequest(kind transport.Kind, request []byte) (*Handle, error) {
	if len(request) == 0 {
		return nil, ksierr.New(ksierr.InvalidArgument, "empty request body")
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.closed {
		return nil, ksierr.New(ksierr.InvalidState, "service is closed")
	}
	if s.inflight >= s.CacheSize {
		return nil, ksierr.New(ksierr.AsyncRequestCacheFull, "request cache is full")
	}

	s.nextID++
	h := &Handle{
		ID:      s.nextID,
		Kind:    kind,
		state:   WaitingForDispatch,
		request: request,
		created: time.Now(),
		done:    make(chan struct{}),
	}
	s.pending.PushBack(h)
	s.inflight++
	return h, nil
}

// Run performs at most one cooperative round. If a dispatch from a prior
// round has completed, it lands that one handle and returns (true, its
// error) without dispatching anything. Otherwise it moves queued handles
// from the FIFO onto their own goroutines until MaxRequestCount handles
// are dispatched and not yet collected. Either way it returns promptly -
// dispatch and the transport round trip it drives never happen on Run's
// own call stack, so a caller polling Run in a loop is never blocked
// longer than it takes to pop a list and spawn goroutines.
//
// It is called repeatedly; it returns false when it neither landed a
// completion nor dispatched a handle, which includes the case where
// handles are queued but the dispatch bound is already reached.
func (s *Service) Run(ctx context.Context) (bool, error) {
	s.mtx.Lock()

	if front := s.completed.Front(); front != nil {
		s.completed.Remove(front)
		res := front.Value.(*handleResult)
		s.dispatched--
		s.inflight--
		s.mtx.Unlock()
		s.land(res)
		return true, res.err
	}

	dispatchedAny := false
	for s.dispatched < s.MaxRequestCount {
		front := s.pending.Front()
		if front == nil {
			break
		}
		s.pending.Remove(front)
		h := front.Value.(*Handle)
		h.mtx.Lock()
		h.state = WaitingForResponse
		h.mtx.Unlock()
		s.dispatched++
		dispatchedAny = true
		go s.dispatch(ctx, h)
	}
	s.mtx.Unlock()

	return dispatchedAny, nil
}

// dispatch runs one handle's transport exchange (with retry) off Run's
// call stack and appends its outcome to the completed queue for a later
// Run call to collect.
func (s *Service) dispatch(ctx context.Context, h *Handle) {
	runCtx := ctx
	var cancel context.CancelFunc
	if s.RequestTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.RequestTimeout)
		defer cancel()
	}
	resp, err := s.performWithRetry(runCtx, h)

	s.mtx.Lock()
	s.completed.PushBack(&handleResult{h: h, response: resp, err: err})
	s.mtx.Unlock()
}

// land finishes res.h, classifying a clean response as a push-config
// notification when Classify says so.
func (s *Service) land(res *handleResult) {
	if res.err != nil {
		res.h.finish(Errored, nil, res.err)
		return
	}
	if s.Classify != nil {
		if isPush, err := s.Classify(res.response); err == nil && isPush {
			res.h.finish(PushConfigReceived, res.response, nil)
			return
		}
	}
	res.h.finish(ResponseReceived, res.response, nil)
}

// defaultRetryWait and maxRetryWait bound a single transport-level retry
// with exponential backoff, the per-request analogue of a long-lived
// connection's reconnect backoff.
const (
	defaultRetryWait = 100 * time.Millisecond
	maxRetryWait     = 2 * time.Second
)

// performWithRetry opens a transport.Handle and performs it, retrying
// exactly once after a backoff wait on transport-level failure. A failure
// surfaced by the decode/MAC layer above Perform (a well-formed but
// rejected response) is not retried here - only Perform itself failing
// counts as transport-level.
func (s *Service) performWithRetry(ctx context.Context, h *Handle) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			wait := backoff(defaultRetryWait, maxRetryWait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		handle, err := s.Transport.OpenHandle(h.Kind)
		if err != nil {
			lastErr = err
			continue
		}
		handle.SetRequestBytes(h.request)
		if err := handle.Perform(ctx); err != nil {
			lastErr = err
			continue
		}
		return handle.GetResponseBytes(), nil
	}
	return nil, lastErr
}

func backoff(curr, max time.Duration) time.Duration {
	if curr <= 0 {
		return defaultRetryWait
	}
	if curr = curr * 2; curr > max {
		curr = max
	}
	return curr
}

// SetMaxRequestCount adjusts the per-Run dispatch depth under the
// Service's own lock, so it is safe to call concurrently with Run.
func (s *Service) SetMaxRequestCount(n int) {
	s.mtx.Lock()
	s.MaxRequestCount = n
	s.mtx.Unlock()
}

// GetMaxRequestCount returns the current dispatch depth.
func (s *Service) GetMaxRequestCount() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.MaxRequestCount
}

// SetCacheSize adjusts the admission bound under the Service's own lock,
// so it is safe to call concurrently with AddRequest.
func (s *Service) SetCacheSize(n int) {
	s.mtx.Lock()
	s.CacheSize = n
	s.mtx.Unlock()
}

// GetCacheSize returns the current admission bound.
func (s *Service) GetCacheSize() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.CacheSize
}

// Close stops the Service from admitting further requests. Handles
// already dispatched continue to completion.
func (s *Service) Close() error {
	s.mtx.Lock()
	s.closed = true
	s.mtx.Unlock()
	return s.Transport.Close()
}

// instanceID is assigned once per process, using a github.com/google/uuid
// instance id to distinguish processes sharing one deployment.
var (
	instanceIDOnce sync.Once
	instanceIDVal  string
	instanceIDNum  uint64
)

func initInstanceID() {
	id := uuid.New()
	instanceIDVal = id.String()
	// fold the 128-bit uuid down to the uint64 pdu.Header.InstanceID wants.
	hi := binary.BigEndian.Uint64(id[:8])
	lo := binary.BigEndian.Uint64(id[8:])
	instanceIDNum = hi ^ lo
}

// InstanceID returns this process's stable identifier as a uuid string,
// generating one on first use.
func InstanceID() string {
	instanceIDOnce.Do(initInstanceID)
	return instanceIDVal
}

// NumericInstanceID returns the same per-process identifier folded into a
// uint64, for stamping into pdu.Header.InstanceID.
func NumericInstanceID() uint64 {
	instanceIDOnce.Do(initInstanceID)
	return instanceIDNum
}
