// Package transport defines the duplex named-event channel the realtime client is built on.
package transport

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotConnected is returned by Emit when there is no live connection.
var ErrNotConnected = errors.New("transport: not connected")

// ErrClosed is returned once the transport has been shut down.
var ErrClosed = errors.New("transport: closed")

// AckFunc receives the single acknowledgment payload for an emitted event.
type AckFunc func(payload json.RawMessage)

// Handler receives lifecycle and inbound events.
//
// [EVENT_LOOP] Implementations invoke Handler methods sequentially from a single goroutine,
// so a handler never observes two callbacks interleaved.
type Handler interface {
	OnConnecting()
	OnConnect()
	// OnDisconnect is called when a live connection drops or a dial attempt fails.
	// err is nil for a requested shutdown.
	OnDisconnect(err error)
	OnEvent(name string, payload json.RawMessage)
}

// Transport is the boundary to the wire. It reconnects on its own; callers only react.
type Transport interface {
	// Start begins connecting in the background and returns immediately.
	Start(ctx context.Context, h Handler) error
	// Emit sends a named event. ack, when non-nil, is invoked at most once with the far
	// end's reply; it is never invoked if the connection drops before the reply.
	Emit(event string, payload json.RawMessage, ack AckFunc) error
	Close() error
}
