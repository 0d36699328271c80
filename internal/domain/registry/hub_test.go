package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) handler(tag string) Handler[string] {
	return func(v string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seen = append(r.seen, tag+"="+v)
	}
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestHub_Publish(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(h *Hub[string], r *recorder)
		publish   string
		want      []string
		delivered int
	}{
		{
			name: "fan-out in subscription order",
			setup: func(h *Hub[string], r *recorder) {
				h.Subscribe("rideAccepted", r.handler("a"))
				h.Subscribe("rideAccepted", r.handler("b"))
			},
			publish:   "rideAccepted",
			want:      []string{"a=x", "b=x"},
			delivered: 2,
		},
		{
			name: "no cross-event delivery",
			setup: func(h *Hub[string], r *recorder) {
				h.Subscribe("chat:new", r.handler("a"))
			},
			publish:   "rideAccepted",
			want:      nil,
			delivered: 0,
		},
		{
			name: "disposed subscriber is skipped",
			setup: func(h *Hub[string], r *recorder) {
				d := h.Subscribe("notify", r.handler("a"))
				h.Subscribe("notify", r.handler("b"))
				d()
			},
			publish:   "notify",
			want:      []string{"b=x"},
			delivered: 1,
		},
		{
			name: "panicking subscriber does not stop others",
			setup: func(h *Hub[string], r *recorder) {
				h.Subscribe("notify", func(string) { panic("boom") })
				h.Subscribe("notify", r.handler("b"))
			},
			publish:   "notify",
			want:      []string{"b=x"},
			delivered: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHub[string](WithName("test"))
			r := &recorder{}
			tt.setup(h, r)

			n := h.Publish(tt.publish, "x")

			assert.Equal(t, tt.delivered, n)
			assert.Equal(t, tt.want, r.get())
		})
	}
}

func TestHub_DisposerIsIdempotent(t *testing.T) {
	h := NewHub[string]()
	r := &recorder{}

	d1 := h.Subscribe("notify", r.handler("a"))
	h.Subscribe("notify", r.handler("b"))
	require.Equal(t, 2, h.Count("notify"))

	d1()
	d1()
	assert.Equal(t, 1, h.Count("notify"))
}

func TestHub_TopicReclaimedWithLastSubscriber(t *testing.T) {
	h := NewHub[string]()

	d := h.Subscribe("chat:typing", func(string) {})
	assert.Contains(t, h.Topics(), "chat:typing")

	d()
	assert.Empty(t, h.Topics())
	assert.Equal(t, 0, h.Publish("chat:typing", "x"))
}

func TestHub_ReentrantDispose(t *testing.T) {
	h := NewHub[string]()
	r := &recorder{}

	var d Disposer
	d = h.Subscribe("once", func(v string) {
		r.handler("once")(v)
		d()
	})

	h.Publish("once", "1")
	h.Publish("once", "2")

	assert.Equal(t, []string{"once=1"}, r.get())
}

func TestHub_NilHandler(t *testing.T) {
	h := NewHub[string]()
	d := h.Subscribe("x", nil)
	d()
	assert.Equal(t, 0, h.Count("x"))
}

func TestCombine(t *testing.T) {
	h := NewHub[string]()
	d := Combine(
		h.Subscribe("a", func(string) {}),
		h.Subscribe("b", func(string) {}),
		nil,
	)
	d()
	d()
	assert.Equal(t, 0, h.Count("a"))
	assert.Equal(t, 0, h.Count("b"))
}
