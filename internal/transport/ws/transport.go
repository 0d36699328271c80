// Package ws implements transport.Transport over a gorilla websocket with automatic redial.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/webitel/im-realtime-client/internal/transport"
)

const (
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
	defaultPingPeriod     = 25 * time.Second
	defaultWriteWait      = 10 * time.Second
	defaultMaxMessageSize = 1 << 20
	defaultSendBuffer     = 256
)

// Config tunes the dialer and the connection pumps. Zero fields take defaults.
type Config struct {
	URL            string
	Header         http.Header
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	PingPeriod     time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func (c Config) withDefaults() Config {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = max(defaultMaxBackoff, c.InitialBackoff)
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = defaultPingPeriod
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	return c
}

// pongWait is the read deadline; pings go out at 90% of it.
func (c Config) pongWait() time.Duration {
	return c.PingPeriod * 10 / 9
}

var _ transport.Transport = (*Transport)(nil)

// Transport keeps one websocket generation alive at a time and redials with exponential
// backoff whenever it drops.
type Transport struct {
	cfg    Config
	logger *slog.Logger
	dialer *websocket.Dialer

	mu      sync.Mutex
	current *session
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}

	ackSeq atomic.Uint64
}

func New(cfg Config, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Transport{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "ws_transport"), slog.String("url", cfg.URL)),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.WriteWait,
		},
	}
}

func (t *Transport) Start(ctx context.Context, h transport.Handler) error {
	if h == nil {
		return errors.New("ws: nil handler")
	}
	if t.cfg.URL == "" {
		return errors.New("ws: empty url")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrClosed
	}
	if t.started {
		return errors.New("ws: already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.started = true
	t.cancel = cancel
	t.done = make(chan struct{})

	go t.run(runCtx, h)
	return nil
}

// run is the event loop: every Handler callback and ack callback happens on this goroutine.
func (t *Transport) run(ctx context.Context, h transport.Handler) {
	defer close(t.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.cfg.InitialBackoff
	bo.MaxInterval = t.cfg.MaxBackoff
	bo.Reset()

	for {
		h.OnConnecting()

		s, err := t.dial(ctx)
		if err == nil {
			bo.Reset()
			t.logger.Info("WS_CONNECTED")
			h.OnConnect()
			err = t.serve(ctx, s, h)
		} else if ctx.Err() == nil {
			t.logger.Warn("WS_DIAL_FAILED", slog.Any("err", err))
		}

		if ctx.Err() != nil {
			h.OnDisconnect(nil)
			return
		}
		t.logger.Warn("WS_DISCONNECTED", slog.Any("err", err))
		h.OnDisconnect(err)

		wait := bo.NextBackOff()
		t.logger.Debug("WS_REDIAL_SCHEDULED", slog.Duration("in", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (t *Transport) dial(ctx context.Context) (*session, error) {
	conn, _, err := t.dialer.DialContext(ctx, t.cfg.URL, t.cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	s := newSession(conn, t.cfg.SendBuffer)

	t.mu.Lock()
	t.current = s
	t.mu.Unlock()

	go s.writePump(t.cfg.PingPeriod, t.cfg.WriteWait)
	return s, nil
}

// serve is the read pump for one generation. It returns when the socket fails or ctx ends.
func (t *Transport) serve(ctx context.Context, s *session, h transport.Handler) error {
	defer func() {
		t.mu.Lock()
		if t.current == s {
			t.current = nil
		}
		t.mu.Unlock()
		// [ACK_DROP] Pending acks of this generation are discarded, never invoked.
		s.close()
	}()

	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	pongWait := t.cfg.pongWait()
	s.conn.SetReadLimit(t.cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		f, err := UnmarshalFrame(raw)
		if err != nil {
			t.logger.Warn("WS_FRAME_INVALID", slog.Any("err", err))
			continue
		}

		if f.IsAck() {
			if fn := s.takeAck(f.Ack); fn != nil {
				fn(f.Data)
			}
			continue
		}
		h.OnEvent(f.Event, f.Data)
	}
}

func (t *Transport) Emit(event string, payload json.RawMessage, ack transport.AckFunc) error {
	t.mu.Lock()
	s, closed := t.current, t.closed
	t.mu.Unlock()

	if closed {
		return transport.ErrClosed
	}
	if s == nil {
		return transport.ErrNotConnected
	}

	var id uint64
	if ack != nil {
		id = t.ackSeq.Add(1)
		if !s.addAck(id, ack) {
			return transport.ErrNotConnected
		}
	}

	data, err := MarshalFrame(event, id, payload)
	if err == nil {
		err = s.enqueue(data)
	}
	if err != nil && id != 0 {
		s.takeAck(id)
	}
	return err
}

// Close stops redialing and tears down the live socket. It must not be called from inside
// a Handler callback.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}
