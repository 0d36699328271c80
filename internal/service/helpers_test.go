package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-client/internal/domain/model"
	"github.com/webitel/im-realtime-client/internal/socket"
	"github.com/webitel/im-realtime-client/internal/transport"
	"github.com/webitel/im-realtime-client/internal/transport/transporttest"
)

var discard = slog.New(slog.DiscardHandler)

// newConn returns a connected role connection over a fake transport.
func newConn(t *testing.T, role model.Role) (*socket.Connection, *transporttest.Fake) {
	t.Helper()
	fake := transporttest.New()
	m := socket.NewManager(func(model.Role) (transport.Transport, error) { return fake, nil }, discard)
	t.Cleanup(func() { _ = m.Close() })

	c, err := m.Get(model.Identity{Role: role, PrincipalID: "7"})
	require.NoError(t, err)
	fake.Connect()
	fake.ResetSent()
	return c, fake
}

func ptr[T any](v T) *T { return &v }

// stubEnricher answers from a table. When gate is set every lookup waits on it.
type stubEnricher struct {
	mu        sync.Mutex
	summaries map[string]model.OrderSummary
	err       error
	gate      chan struct{}
	calls     int
	forgotten []string
}

func (s *stubEnricher) ResolveSummary(ctx context.Context, orderID string) (model.OrderSummary, error) {
	s.mu.Lock()
	s.calls++
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.OrderSummary{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.OrderSummary{}, s.err
	}
	return s.summaries[orderID], nil
}

func (s *stubEnricher) ResolveSummaries(ctx context.Context, orderIDs ...string) (map[string]model.OrderSummary, error) {
	out := make(map[string]model.OrderSummary, len(orderIDs))
	for _, id := range orderIDs {
		v, err := s.ResolveSummary(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

func (s *stubEnricher) Forget(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forgotten = append(s.forgotten, orderID)
}

func (s *stubEnricher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type statusCall struct {
	OrderID string
	Update  model.StatusUpdate
}

// stubStatuses records status updates. When gate is set every call waits on it.
type stubStatuses struct {
	mu    sync.Mutex
	calls []statusCall
	err   error
	gate  chan struct{}
}

func (s *stubStatuses) UpdateOrderStatus(ctx context.Context, orderID string, upd model.StatusUpdate) error {
	s.mu.Lock()
	s.calls = append(s.calls, statusCall{OrderID: orderID, Update: upd})
	gate, err := s.gate, s.err
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *stubStatuses) recorded() []statusCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]statusCall(nil), s.calls...)
}
