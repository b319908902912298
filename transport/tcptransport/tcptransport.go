// Package tcptransport implements transport.Transport over a persistent
// TCP connection with 4-byte big-endian length-prefixed framing: a
// length header, then exactly that many payload bytes, applied to PDU
// bytes instead of log entries.
package tcptransport

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ekobi/goksi/ksierr"
	"github.com/ekobi/goksi/transport"
)

const maxFrameSize = 16 * 1024 * 1024

// Transport maintains one TCP (or, with UseWebsocket, one websocket)
// connection to an aggregator/extender and serializes requests over it;
// package async is what gives a Context concurrency beyond this.
type Transport struct {
	Addr           string
	DialTimeout    time.Duration
	UseWebsocket   bool // alternate duplex framing for push-config notifications
	WebsocketURL   string

	mtx  sync.Mutex
	conn net.Conn
	ws   *websocket.Conn
}

func New(addr string, dialTimeout time.Duration) *Transport {
	return &Transport{Addr: addr, DialTimeout: dialTimeout}
}

func (t *Transport) dial(ctx context.Context) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.UseWebsocket {
		if t.ws != nil {
			return nil
		}
		dialer := websocket.Dialer{HandshakeTimeout: t.DialTimeout}
		ws, _, err := dialer.DialContext(ctx, t.WebsocketURL, nil)
		if err != nil {
			return ksierr.New(ksierr.NetworkTimeout, err.Error())
		}
		t.ws = ws
		return nil
	}
	if t.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: t.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return ksierr.New(ksierr.NetworkTimeout, err.Error())
	}
	t.conn = conn
	return nil
}

func (t *Transport) OpenHandle(kind transport.Kind) (transport.Handle, error) {
	return &handle{t: t}, nil
}

func (t *Transport) Close() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	var err error
	if t.conn != nil {
		err = t.conn.Close()
		t.conn = nil
	}
	if t.ws != nil {
		if werr := t.ws.Close(); werr != nil {
			err = werr
		}
		t.ws = nil
	}
	return err
}

type handle struct {
	t        *Transport
	request  []byte
	response []byte
}

func (h *handle) SetRequestBytes(b []byte) { h.request = b }
func (h *handle) GetRequestBytes() []byte  { return h.request }
func (h *handle) GetResponseBytes() []byte { return h.response }

func (h *handle) Perform(ctx context.Context) error {
	if err := h.t.dial(ctx); err != nil {
		return err
	}
	h.t.mtx.Lock()
	defer h.t.mtx.Unlock()

	if h.t.UseWebsocket {
		if err := h.t.ws.WriteMessage(websocket.BinaryMessage, h.request); err != nil {
			return ksierr.New(ksierr.IOError, err.Error())
		}
		_, body, err := h.t.ws.ReadMessage()
		if err != nil {
			return ksierr.New(ksierr.IOError, err.Error())
		}
		h.response = body
		return nil
	}

	if err := writeFrame(h.t.conn, h.request); err != nil {
		return ksierr.New(ksierr.IOError, err.Error())
	}
	body, err := readFrame(h.t.conn)
	if err != nil {
		return ksierr.New(ksierr.IOError, err.Error())
	}
	h.response = body
	return nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		return nil, ksierr.New(ksierr.InvalidFormat, "frame exceeds maximum size")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
