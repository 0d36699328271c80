package socket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/webitel/im-realtime-client/internal/domain/model"
	"github.com/webitel/im-realtime-client/internal/transport"
	"golang.org/x/sync/errgroup"
)

var ErrManagerClosed = errors.New("socket: manager closed")

// TransportFactory builds the transport for a new role connection.
type TransportFactory func(role model.Role) (transport.Transport, error)

// Manager owns one Connection per role for the life of the process.
type Manager struct {
	factory TransportFactory
	logger  *slog.Logger

	// [LIFECYCLE_CONTROL] Connections outlive the caller of Get; they are bound to the
	// manager's context and stopped by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conns  map[model.Role]*Connection
	closed bool
}

func NewManager(factory TransportFactory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		factory: factory,
		logger:  logger.With(slog.String("component", "socket_manager")),
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[model.Role]*Connection),
	}
}

// Get returns the live Connection for identity.Role, creating and starting it on first
// use. For an existing connection a different non-empty identity is applied in place.
func (m *Manager) Get(identity model.Identity) (*Connection, error) {
	if !identity.Role.Valid() {
		return nil, fmt.Errorf("get connection: invalid role %q", identity.Role)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if c, ok := m.conns[identity.Role]; ok {
		m.mu.Unlock()
		if !identity.IsZero() {
			if err := c.UpdateIdentity(identity); err != nil {
				return nil, err
			}
		}
		return c, nil
	}
	defer m.mu.Unlock()

	tr, err := m.factory(identity.Role)
	if err != nil {
		return nil, fmt.Errorf("create %s transport: %w", identity.Role, err)
	}

	c := newConnection(identity, tr, m.logger)
	if err := c.start(m.ctx); err != nil {
		_ = tr.Close()
		return nil, fmt.Errorf("start %s connection: %w", identity.Role, err)
	}

	m.conns[identity.Role] = c
	m.logger.Info("CONNECTION_CREATED", slog.String("identity", identity.String()))
	return c, nil
}

// Lookup returns the connection for role without creating one.
func (m *Manager) Lookup(role model.Role) (*Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[role]
	return c, ok
}

// Close stops every connection concurrently.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	conns := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, c := range conns {
		g.Go(c.Close)
	}
	err := g.Wait()
	m.cancel()
	return err
}
