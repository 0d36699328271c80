/*
Package registry provides the typed publish/subscribe registry used for inbound event fan-out.

Key concepts:
  - Topics: subscribers are grouped by event name; a topic exists only while it has
    at least one subscriber.
  - Disposers: every subscription returns its own Disposer. Calling it more than once is
    a no-op, so teardown paths may call it unconditionally.
  - Isolation: handlers run outside the registry lock and a panicking handler is
    recovered and logged without affecting the other subscribers.
*/
package registry

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Handler receives one published value.
type Handler[T any] func(T)

// Hubber is the subscription contract components depend on.
type Hubber[T any] interface {
	Subscribe(name string, h Handler[T]) Disposer
	Publish(name string, v T) int
	Count(name string) int
	Topics() []string
}

var _ Hubber[int] = (*Hub[int])(nil)

// Hub is a many-subscriber fan-out keyed by event name.
type Hub[T any] struct {
	name   string
	logger *slog.Logger

	// [CONCURRENCY_CONTROL]
	// Publishing snapshots the subscriber list under the read lock and invokes handlers
	// after releasing it, so handlers may subscribe or dispose re-entrantly.
	mu     sync.RWMutex
	topics map[string]*topic[T]
	nextID uint64
}

func NewHub[T any](opts ...Option) *Hub[T] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Hub[T]{
		name:   cfg.name,
		logger: cfg.logger,
		topics: make(map[string]*topic[T]),
	}
}

// Subscribe registers h for events named name and returns its disposer.
func (h *Hub[T]) Subscribe(name string, fn Handler[T]) Disposer {
	if fn == nil {
		return Noop
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	t, ok := h.topics[name]
	if !ok {
		// [LAZY_INIT] Topic created on first subscriber.
		t = &topic[T]{}
		h.topics[name] = t
	}
	t.add(id, fn)
	h.mu.Unlock()

	return newDisposer(func() { h.remove(name, id) })
}

func (h *Hub[T]) remove(name string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[name]
	if !ok {
		return
	}
	// [GRACEFUL_RECLAMATION] Drop the topic with its last subscriber.
	if t.remove(id) {
		delete(h.topics, name)
	}
}

// Publish delivers v to every current subscriber of name in subscription order and
// returns how many handlers completed without panicking.
func (h *Hub[T]) Publish(name string, v T) int {
	h.mu.RLock()
	t, ok := h.topics[name]
	var handlers []Handler[T]
	if ok {
		handlers = t.snapshot()
	}
	h.mu.RUnlock()

	delivered := 0
	for _, fn := range handlers {
		if h.invoke(name, fn, v) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub[T]) invoke(name string, fn Handler[T], v T) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("SUBSCRIBER_PANIC_RECOVERED",
				"hub", h.name,
				"event", name,
				"err", r,
				"stack", string(debug.Stack()),
			)
			ok = false
		}
	}()
	fn(v)
	return true
}

// Count returns the number of live subscriptions for name.
func (h *Hub[T]) Count(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if t, ok := h.topics[name]; ok {
		return len(t.subs)
	}
	return 0
}

// Topics lists event names that currently have subscribers.
func (h *Hub[T]) Topics() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.topics))
	for name := range h.topics {
		names = append(names, name)
	}
	return names
}

type subscriber[T any] struct {
	id uint64
	fn Handler[T]
}

// topic keeps subscribers in registration order.
type topic[T any] struct {
	subs []subscriber[T]
}

func (t *topic[T]) add(id uint64, fn Handler[T]) {
	t.subs = append(t.subs, subscriber[T]{id: id, fn: fn})
}

// remove reports whether the topic became empty.
func (t *topic[T]) remove(id uint64) bool {
	for i, s := range t.subs {
		if s.id == id {
			t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
			break
		}
	}
	return len(t.subs) == 0
}

func (t *topic[T]) snapshot() []Handler[T] {
	out := make([]Handler[T], len(t.subs))
	for i, s := range t.subs {
		out[i] = s.fn
	}
	return out
}
