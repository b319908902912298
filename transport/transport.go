// Package transport defines the Transport/Handle contract a ksi.Context
// drives to send sign/extend/publications-file requests. The URI
// split/compose helpers live in the uri subpackage; concrete transports
// live in the httptransport, tcptransport, and filetransport subpackages.
package transport

import "context"

// Kind identifies which of the three entry points a Handle was opened for.
type Kind int

const (
	KindSign Kind = iota
	KindExtend
	KindPublications
)

// Handle is one in-flight request/response exchange. Implementations are
// not required to be safe for concurrent use; package async serializes
// access to each handle it owns.
type Handle interface {
	// SetRequestBytes stages the outgoing payload before Perform.
	SetRequestBytes(b []byte)
	// GetRequestBytes returns whatever was staged by SetRequestBytes.
	GetRequestBytes() []byte
	// Perform blocks until the exchange completes or ctx is done.
	Perform(ctx context.Context) error
	// GetResponseBytes returns the received payload; valid only after a
	// successful Perform.
	GetResponseBytes() []byte
}

// Transport opens Handles against one configured endpoint.
type Transport interface {
	OpenHandle(kind Kind) (Handle, error)
	// Close releases any pooled connections the transport is holding.
	Close() error
}
