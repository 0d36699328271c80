// Package transporttest provides an in-memory transport.Transport whose lifecycle and
// inbound traffic are driven by the test.
package transporttest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/webitel/im-realtime-client/internal/transport"
)

var _ transport.Transport = (*Fake)(nil)

// Sent records one Emit call.
type Sent struct {
	Event   string
	Payload json.RawMessage
	HasAck  bool
}

// Decode unmarshals the recorded payload into v.
func (s Sent) Decode(v any) error {
	return json.Unmarshal(s.Payload, v)
}

// Fake is a transport with no network. Test code plays the event loop: Connect, Drop and
// Deliver invoke the handler synchronously on the calling goroutine.
type Fake struct {
	mu        sync.Mutex
	handler   transport.Handler
	connected bool
	closed    bool
	sent      []Sent
	acks      map[int]transport.AckFunc
	emitErr   error
}

func New() *Fake {
	return &Fake{acks: make(map[int]transport.AckFunc)}
}

func (f *Fake) Start(_ context.Context, h transport.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return transport.ErrClosed
	}
	f.handler = h
	return nil
}

func (f *Fake) Emit(event string, payload json.RawMessage, ack transport.AckFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.closed:
		return transport.ErrClosed
	case !f.connected:
		return transport.ErrNotConnected
	case f.emitErr != nil:
		return f.emitErr
	}

	f.sent = append(f.sent, Sent{Event: event, Payload: payload, HasAck: ack != nil})
	if ack != nil {
		f.acks[len(f.sent)-1] = ack
	}
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	wasConnected := f.connected
	f.closed = true
	f.connected = false
	h := f.handler
	f.mu.Unlock()

	if wasConnected && h != nil {
		h.OnDisconnect(nil)
	}
	return nil
}

// FailEmits makes every following Emit return err (nil restores normal behaviour).
func (f *Fake) FailEmits(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitErr = err
}

// Connect simulates a successful (re)connect.
func (f *Fake) Connect() {
	f.mu.Lock()
	f.connected = true
	h := f.handler
	f.mu.Unlock()

	if h != nil {
		h.OnConnecting()
		h.OnConnect()
	}
}

// Drop simulates the socket going away; acks still pending are discarded.
func (f *Fake) Drop(err error) {
	f.mu.Lock()
	f.connected = false
	clear(f.acks)
	h := f.handler
	f.mu.Unlock()

	if h != nil {
		h.OnDisconnect(err)
	}
}

// Deliver pushes an inbound event. payload is marshaled unless it already is raw JSON.
func (f *Fake) Deliver(name string, payload any) {
	var raw json.RawMessage
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		raw = p
	case string:
		raw = json.RawMessage(p)
	default:
		raw, _ = json.Marshal(p)
	}

	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()

	if h != nil {
		h.OnEvent(name, raw)
	}
}

// Ack answers the i-th sent event. It reports false if no ack is pending for it.
func (f *Fake) Ack(i int, payload any) bool {
	f.mu.Lock()
	fn, ok := f.acks[i]
	delete(f.acks, i)
	f.mu.Unlock()

	if !ok {
		return false
	}
	raw, _ := json.Marshal(payload)
	fn(raw)
	return true
}

// AckLast answers the most recent event named event.
func (f *Fake) AckLast(event string, payload any) bool {
	f.mu.Lock()
	idx := -1
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Event == event {
			idx = i
			break
		}
	}
	f.mu.Unlock()

	if idx < 0 {
		return false
	}
	return f.Ack(idx, payload)
}

func (f *Fake) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// SentNamed filters the sent log by event name.
func (f *Fake) SentNamed(event string) []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Sent
	for _, s := range f.sent {
		if s.Event == event {
			out = append(out, s)
		}
	}
	return out
}

// ResetSent clears the sent log and pending acks.
func (f *Fake) ResetSent() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	clear(f.acks)
}

func (f *Fake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}
