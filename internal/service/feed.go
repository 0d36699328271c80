package service

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-client/internal/domain/event"
	"github.com/webitel/im-realtime-client/internal/domain/registry"
)

const defaultTapBuffer = 256

// Feeder hands out buffered taps on the connection's inbound events for streaming
// surfaces (websocket, long poll).
type Feeder interface {
	Subscribe(names []string, buffer int) *Tap
}

// Feed is the default Feeder.
type Feed struct {
	ch     Channel
	logger *slog.Logger
}

func NewFeed(ch Channel, logger *slog.Logger) *Feed {
	return &Feed{
		ch:     ch,
		logger: logger.With(slog.String("component", "feed")),
	}
}

// Subscribe opens a tap on names. The caller must Close it.
func (f *Feed) Subscribe(names []string, buffer int) *Tap {
	if buffer <= 0 {
		buffer = defaultTapBuffer
	}
	t := &Tap{
		id:     uuid.New(),
		ch:     make(chan event.Inbound, buffer),
		logger: f.logger,
	}

	ds := make([]registry.Disposer, 0, len(names))
	for _, name := range names {
		ds = append(ds, f.ch.On(name, t.push))
	}
	t.dispose = registry.Combine(ds...)
	return t
}

// Tap is one consumer's view of the event stream.
//
// [BACKPRESSURE] A full buffer drops the event instead of blocking the event loop.
type Tap struct {
	id      uuid.UUID
	logger  *slog.Logger
	dispose registry.Disposer

	mu      sync.Mutex
	ch      chan event.Inbound
	closed  bool
	dropped atomic.Int64
}

func (t *Tap) ID() uuid.UUID { return t.id }

func (t *Tap) Recv() <-chan event.Inbound { return t.ch }

// Dropped counts events lost to a full buffer.
func (t *Tap) Dropped() int64 { return t.dropped.Load() }

func (t *Tap) push(in event.Inbound) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.ch <- in:
	default:
		if t.dropped.Add(1) == 1 {
			t.logger.Warn("FEED_BUFFER_OVERFLOW", slog.String("tap_id", t.id.String()), slog.String("event", in.Name))
		}
	}
}

// Close unsubscribes and closes Recv. Safe to call more than once.
func (t *Tap) Close() {
	t.dispose()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.ch)
}
