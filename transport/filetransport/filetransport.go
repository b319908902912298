// Package filetransport implements transport.Transport for file://
// local publications file access: a size-guarded file read
// rather than a network round trip.
package filetransport

import (
	"context"
	"os"

	"github.com/ekobi/goksi/ksierr"
	"github.com/ekobi/goksi/transport"
)

// maxFileSize bounds how large a publications file this transport will
// read, mirroring config.maxConfigSize's defense against an operator
// pointing the path at something unbounded (e.g. a device file).
const maxFileSize = 4 << 20

// Transport reads a single local file on every Perform; publications files
// are small and infrequently polled, so no caching happens at this layer
// (pubfile.Cache sits above it for that).
type Transport struct {
	Path string
}

func New(path string) *Transport {
	return &Transport{Path: path}
}

func (t *Transport) OpenHandle(kind transport.Kind) (transport.Handle, error) {
	if kind != transport.KindPublications {
		return nil, ksierr.New(ksierr.InvalidArgument, "filetransport only serves publications requests")
	}
	return &handle{t: t}, nil
}

func (t *Transport) Close() error { return nil }

type handle struct {
	t        *Transport
	response []byte
}

// SetRequestBytes is a no-op: reading a local file takes no request body.
func (h *handle) SetRequestBytes(b []byte) {}
func (h *handle) GetRequestBytes() []byte  { return nil }
func (h *handle) GetResponseBytes() []byte { return h.response }

func (h *handle) Perform(ctx context.Context) error {
	fi, err := os.Stat(h.t.Path)
	if err != nil {
		return ksierr.New(ksierr.IOError, err.Error())
	}
	if fi.Size() > maxFileSize {
		return ksierr.New(ksierr.InvalidFormat, "publications file exceeds maximum size")
	}
	b, err := os.ReadFile(h.t.Path)
	if err != nil {
		return ksierr.New(ksierr.IOError, err.Error())
	}
	h.response = b
	return nil
}
