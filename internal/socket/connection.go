// Package socket owns the per-role realtime connections: identity, state, room
// membership and acknowledged requests layered over a transport.Transport.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/webitel/im-realtime-client/internal/domain/event"
	"github.com/webitel/im-realtime-client/internal/domain/model"
	"github.com/webitel/im-realtime-client/internal/domain/registry"
	"github.com/webitel/im-realtime-client/internal/transport"
)

// AckFunc receives the far end's single reply to an emitted event.
type AckFunc = transport.AckFunc

var (
	// ErrNotConnected is returned by Emit while the connection is down. Nothing is queued.
	ErrNotConnected = transport.ErrNotConnected
	ErrRoleMismatch = errors.New("socket: identity role does not match connection role")
)

const stateTopic = "state"

// Connection is the single live channel for one role. Handlers registered with On are
// bound to the Connection and survive every reconnect of the underlying socket.
type Connection struct {
	role   model.Role
	tr     transport.Transport
	logger *slog.Logger

	mu       sync.RWMutex
	identity model.Identity
	state    model.ConnState
	lastErr  error

	events registry.Hubber[event.Inbound]
	states registry.Hubber[model.StateChange]
	rooms  *Rooms

	closeOnce sync.Once
}

func newConnection(identity model.Identity, tr transport.Transport, logger *slog.Logger) *Connection {
	l := logger.With(slog.String("role", string(identity.Role)))
	c := &Connection{
		role:     identity.Role,
		tr:       tr,
		logger:   l,
		identity: identity,
		state:    model.StateDisconnected,
		events:   registry.NewHub[event.Inbound](registry.WithName(string(identity.Role)+"_events"), registry.WithLogger(l)),
		states:   registry.NewHub[model.StateChange](registry.WithName(string(identity.Role)+"_state"), registry.WithLogger(l)),
	}
	c.rooms = newRooms(c)
	return c
}

// start hands the connection to the transport event loop.
func (c *Connection) start(ctx context.Context) error {
	return c.tr.Start(ctx, loop{c})
}

func (c *Connection) Role() model.Role { return c.role }

func (c *Connection) Identity() model.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// State returns the current lifecycle state and the error that caused the last drop.
func (c *Connection) State() (model.ConnState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.lastErr
}

func (c *Connection) Connected() bool {
	s, _ := c.State()
	return s == model.StateConnected
}

func (c *Connection) Rooms() *Rooms { return c.rooms }

// Listeners counts the registered handlers per inbound event name.
func (c *Connection) Listeners() map[string]int {
	out := map[string]int{}
	for _, name := range c.events.Topics() {
		if n := c.events.Count(name); n > 0 {
			out[name] = n
		}
	}
	return out
}

// UpdateIdentity rebinds the identity in place. A live connection re-identifies at once,
// otherwise the new identity is announced on the next connect.
func (c *Connection) UpdateIdentity(id model.Identity) error {
	if id.Role == "" {
		id.Role = c.role
	}
	if id.Role != c.role {
		return fmt.Errorf("%w: %s != %s", ErrRoleMismatch, id.Role, c.role)
	}

	c.mu.Lock()
	if c.identity == id {
		c.mu.Unlock()
		return nil
	}
	c.identity = id
	connected := c.state == model.StateConnected
	c.mu.Unlock()

	c.logger.Info("IDENTITY_UPDATED", slog.String("identity", id.String()))
	if connected {
		c.whoami(id)
	}
	return nil
}

// On subscribes fn to the inbound event name.
func (c *Connection) On(name string, fn registry.Handler[event.Inbound]) registry.Disposer {
	return c.events.Subscribe(name, fn)
}

// OnState subscribes fn to connection state changes.
func (c *Connection) OnState(fn registry.Handler[model.StateChange]) registry.Disposer {
	return c.states.Subscribe(stateTopic, fn)
}

// Emit sends a named event. payload may be raw JSON, nil, or any marshalable value.
//
// [AT_MOST_ONCE] onAck fires at most once and never when the socket drops before the
// reply arrives; callers needing liveness bound it themselves.
func (c *Connection) Emit(name string, payload any, onAck AckFunc) error {
	if !c.Connected() {
		return ErrNotConnected
	}

	raw, err := marshalPayload(payload)
	if err != nil {
		return fmt.Errorf("emit %s: %w", name, err)
	}

	if err := c.tr.Emit(name, raw, once(onAck)); err != nil {
		return fmt.Errorf("emit %s: %w", name, err)
	}
	return nil
}

// Request emits name and blocks until the ack arrives or ctx ends.
func (c *Connection) Request(ctx context.Context, name string, payload any) (json.RawMessage, error) {
	reply := make(chan json.RawMessage, 1)
	if err := c.Emit(name, payload, func(p json.RawMessage) { reply <- p }); err != nil {
		return nil, err
	}

	select {
	case p := <-reply:
		return p, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("request %s: %w", name, ctx.Err())
	}
}

// Close stops the transport. Subscriptions are left in place; the Connection is dead.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.tr.Close()
	})
	return err
}

func (c *Connection) whoami(id model.Identity) {
	if id.IsZero() {
		c.logger.Warn("WHOAMI_SKIPPED", slog.String("reason", "empty principal"))
		return
	}
	if err := c.Emit(event.WhoAmI, model.NewWhoAmIPayload(id), nil); err != nil {
		c.logger.Warn("WHOAMI_FAILED", slog.Any("err", err))
	}
}

func (c *Connection) setState(s model.ConnState, cause error) {
	c.mu.Lock()
	if c.state == s && cause == nil {
		c.mu.Unlock()
		return
	}
	c.state = s
	if cause != nil || s == model.StateConnected {
		c.lastErr = cause
	}
	c.mu.Unlock()

	c.states.Publish(stateTopic, model.StateChange{Role: c.role, State: s, Err: cause})
}

// loop adapts Connection to transport.Handler without widening its public surface.
type loop struct{ c *Connection }

func (l loop) OnConnecting() {
	l.c.setState(model.StateConnecting, nil)
}

// OnConnect re-identifies first so the far end authorises the joins that follow.
func (l loop) OnConnect() {
	c := l.c
	c.setState(model.StateConnected, nil)
	c.logger.Info("CONNECTION_ESTABLISHED")

	c.whoami(c.Identity())
	c.rooms.rejoinAll()

	c.events.Publish(event.Connect, event.NewInbound(event.Connect, nil))
}

func (l loop) OnDisconnect(err error) {
	c := l.c
	if err != nil {
		c.logger.Warn("CONNECTION_LOST", slog.Any("err", err))
	}
	c.setState(model.StateDisconnected, err)
	c.events.Publish(event.Disconnect, event.NewInbound(event.Disconnect, nil))
}

func (l loop) OnEvent(name string, payload json.RawMessage) {
	if n := l.c.events.Publish(name, event.NewInbound(name, payload)); n == 0 {
		l.c.logger.Debug("EVENT_UNHANDLED", slog.String("event", name))
	}
}

func marshalPayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	default:
		return json.Marshal(p)
	}
}

// once guards an ack against a transport that answers twice.
func once(fn AckFunc) AckFunc {
	if fn == nil {
		return nil
	}
	var o sync.Once
	return func(p json.RawMessage) {
		o.Do(func() { fn(p) })
	}
}
