package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-client/internal/transport"
)

type handlerSpy struct {
	mu          sync.Mutex
	connects    int
	disconnects int
	events      []Frame
}

func (h *handlerSpy) OnConnecting() {}

func (h *handlerSpy) OnConnect() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connects++
}

func (h *handlerSpy) OnDisconnect(error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnects++
}

func (h *handlerSpy) OnEvent(name string, payload json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, Frame{Event: name, Data: payload})
}

func (h *handlerSpy) snapshot() (int, int, []Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connects, h.disconnects, append([]Frame(nil), h.events...)
}

// echoServer acks every frame carrying an id with {"echo":<event>} and pushes a
// "hello" event right after the handshake. The first connection is dropped after
// the hello when dropFirst is set.
func echoServer(t *testing.T, dropFirst bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	var conns atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		n := conns.Add(1)

		hello, _ := json.Marshal(Frame{Event: "hello", Data: json.RawMessage(`{"n":` + strconv.Itoa(int(n)) + `}`)})
		if err := c.WriteMessage(websocket.TextMessage, hello); err != nil {
			return
		}
		if dropFirst && n == 1 {
			return
		}

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}
			f, err := UnmarshalFrame(raw)
			if err != nil || f.ID == 0 {
				continue
			}
			reply, _ := json.Marshal(Frame{Ack: f.ID, Data: json.RawMessage(`{"echo":"` + f.Event + `"}`)})
			if err := c.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

// silentDropServer reads the first frame of the first connection and closes without
// answering it. Every later connection first replays an ack for that stale id, then
// echoes acks like echoServer.
func silentDropServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	var conns atomic.Int32
	var staleID atomic.Uint64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		if conns.Add(1) == 1 {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}
			if f, err := UnmarshalFrame(raw); err == nil {
				staleID.Store(f.ID)
			}
			return
		}

		stale, _ := json.Marshal(Frame{Ack: staleID.Load(), Data: json.RawMessage(`{"stale":true}`)})
		if err := c.WriteMessage(websocket.TextMessage, stale); err != nil {
			return
		}
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}
			f, err := UnmarshalFrame(raw)
			if err != nil || f.ID == 0 {
				continue
			}
			reply, _ := json.Marshal(Frame{Ack: f.ID, Data: json.RawMessage(`{"echo":"` + f.Event + `"}`)})
			if err := c.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestTransport_EmitWithAck(t *testing.T) {
	srv, _ := echoServer(t, false)
	tr := New(Config{URL: wsURL(srv), InitialBackoff: 10 * time.Millisecond}, nil)
	spy := &handlerSpy{}

	require.NoError(t, tr.Start(t.Context(), spy))
	t.Cleanup(func() { _ = tr.Close() })

	require.Eventually(t, func() bool {
		c, _, _ := spy.snapshot()
		return c == 1
	}, 2*time.Second, 10*time.Millisecond)

	acks := make(chan json.RawMessage, 2)
	require.NoError(t, tr.Emit("joinRide", json.RawMessage(`{"rideId":"R1"}`), func(p json.RawMessage) {
		acks <- p
	}))

	select {
	case p := <-acks:
		assert.JSONEq(t, `{"echo":"joinRide"}`, string(p))
	case <-time.After(2 * time.Second):
		t.Fatal("ack not received")
	}

	require.Eventually(t, func() bool {
		_, _, events := spy.snapshot()
		return len(events) == 1 && events[0].Event == "hello"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTransport_Redials(t *testing.T) {
	srv, conns := echoServer(t, true)
	tr := New(Config{URL: wsURL(srv), InitialBackoff: 10 * time.Millisecond, MaxBackoff: 20 * time.Millisecond}, nil)
	spy := &handlerSpy{}

	require.NoError(t, tr.Start(t.Context(), spy))
	t.Cleanup(func() { _ = tr.Close() })

	require.Eventually(t, func() bool {
		c, d, _ := spy.snapshot()
		return c >= 2 && d >= 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, conns.Load(), int32(2))
}

func TestTransport_PendingAckDroppedWithSocket(t *testing.T) {
	srv := silentDropServer(t)
	tr := New(Config{URL: wsURL(srv), InitialBackoff: 10 * time.Millisecond, MaxBackoff: 20 * time.Millisecond}, nil)
	spy := &handlerSpy{}

	require.NoError(t, tr.Start(t.Context(), spy))
	t.Cleanup(func() { _ = tr.Close() })

	require.Eventually(t, func() bool {
		c, _, _ := spy.snapshot()
		return c == 1
	}, 2*time.Second, 10*time.Millisecond)

	var lost atomic.Int32
	require.NoError(t, tr.Emit("chat:history", json.RawMessage(`{"request_id":"o1"}`), func(json.RawMessage) {
		lost.Add(1)
	}))

	require.Eventually(t, func() bool {
		c, d, _ := spy.snapshot()
		return c >= 2 && d >= 1
	}, 3*time.Second, 10*time.Millisecond)

	// The stale ack reaches the new generation before this reply does.
	acks := make(chan json.RawMessage, 1)
	require.NoError(t, tr.Emit("whoami", nil, func(p json.RawMessage) { acks <- p }))
	select {
	case p := <-acks:
		assert.JSONEq(t, `{"echo":"whoami"}`, string(p))
	case <-time.After(2 * time.Second):
		t.Fatal("ack not received")
	}

	assert.Zero(t, lost.Load())
}

func TestTransport_EmitWhileDisconnected(t *testing.T) {
	tr := New(Config{URL: "ws://127.0.0.1:1/never"}, nil)

	err := tr.Emit("whoami", nil, nil)
	assert.ErrorIs(t, err, transport.ErrNotConnected)

	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Emit("whoami", nil, nil), transport.ErrClosed)
	assert.ErrorIs(t, tr.Start(t.Context(), &handlerSpy{}), transport.ErrClosed)
}

func TestTransport_CloseReportsDisconnect(t *testing.T) {
	srv, _ := echoServer(t, false)
	tr := New(Config{URL: wsURL(srv)}, nil)
	spy := &handlerSpy{}

	require.NoError(t, tr.Start(t.Context(), spy))
	require.Eventually(t, func() bool {
		c, _, _ := spy.snapshot()
		return c == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, d, _ := spy.snapshot()
	assert.Equal(t, 1, d)
	assert.ErrorIs(t, tr.Emit("whoami", nil, nil), transport.ErrClosed)
}

func TestFrame_RoundTrip(t *testing.T) {
	raw, err := MarshalFrame("chat:send", 3, json.RawMessage(`{"message":"hi"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"chat:send","id":3,"data":{"message":"hi"}}`, string(raw))

	_, err = MarshalFrame("", 0, nil)
	assert.Error(t, err)

	_, err = UnmarshalFrame([]byte(`{}`))
	assert.Error(t, err)

	f, err := UnmarshalFrame([]byte(`{"ack":3}`))
	require.NoError(t, err)
	assert.True(t, f.IsAck())
}
