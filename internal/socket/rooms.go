package socket

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/webitel/im-realtime-client/internal/domain/event"
	"github.com/webitel/im-realtime-client/internal/domain/model"
)

var ErrEmptyRoomID = errors.New("socket: empty room id")

// Rooms tracks the ride and order rooms a Connection should stay joined to and replays
// the joins after every connect.
type Rooms struct {
	conn *Connection

	mu         sync.Mutex
	membership model.RoomMembership
	// [ONE_SHOT] Join acks requested while offline. At most one per kind; a newer join
	// replaces the older callback. Consumed by the next rejoinAll.
	deferred map[model.RoomKind]AckFunc
}

func newRooms(c *Connection) *Rooms {
	return &Rooms{
		conn:     c,
		deferred: make(map[model.RoomKind]AckFunc),
	}
}

// Membership returns a snapshot of the tracked rooms.
func (r *Rooms) Membership() model.RoomMembership {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membership
}

// Join tracks id for kind and joins now when connected, otherwise on the next connect.
// The tracked id is updated before anything is sent.
func (r *Rooms) Join(kind model.RoomKind, id string, onAck AckFunc) error {
	if !kind.Valid() {
		return fmt.Errorf("join: unknown room kind %q", kind)
	}
	if id == "" {
		return ErrEmptyRoomID
	}

	r.mu.Lock()
	r.membership = r.membership.Join(kind, id)
	delete(r.deferred, kind)
	r.mu.Unlock()

	err := r.conn.Emit(joinEvent(kind), roomPayload(kind, id), onAck)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotConnected) {
		return err
	}

	r.mu.Lock()
	// [STALE_GUARD] A newer join may have landed while we were emitting.
	if r.membership.Tracked(kind) == id && onAck != nil {
		r.deferred[kind] = onAck
	}
	r.mu.Unlock()

	r.conn.logger.Debug("ROOM_JOIN_DEFERRED", slog.String("room", model.RoomKey(kind, id)))

	// A connect may have run rejoinAll between the failed emit and the registration above.
	if r.conn.Connected() {
		if ack := r.takeDeferred(kind, id); ack != nil {
			err := r.conn.Emit(joinEvent(kind), roomPayload(kind, id), ack)
			if errors.Is(err, ErrNotConnected) {
				// The socket dropped again before its state caught up; wait for the next connect.
				r.restoreDeferred(kind, id, ack)
				return nil
			}
			return err
		}
	}
	return nil
}

// Leave clears the tracked id only when it is id, then always attempts the leave send.
// A leave while disconnected is dropped.
func (r *Rooms) Leave(kind model.RoomKind, id string, onAck AckFunc) error {
	if !kind.Valid() {
		return fmt.Errorf("leave: unknown room kind %q", kind)
	}
	if id == "" {
		return ErrEmptyRoomID
	}

	r.mu.Lock()
	next, changed := r.membership.Leave(kind, id)
	if changed {
		r.membership = next
		delete(r.deferred, kind)
	}
	r.mu.Unlock()

	if !changed {
		r.conn.logger.Debug("ROOM_LEAVE_STALE",
			slog.String("room", model.RoomKey(kind, id)),
			slog.String("tracked", r.Membership().Tracked(kind)),
		)
	}

	err := r.conn.Emit(leaveEvent(kind), roomPayload(kind, id), onAck)
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}

// rejoinAll sends one join per tracked room. Runs on the transport event loop after
// whoami.
func (r *Rooms) rejoinAll() {
	r.mu.Lock()
	m := r.membership
	acks := r.deferred
	r.deferred = make(map[model.RoomKind]AckFunc)
	r.mu.Unlock()

	for _, kind := range []model.RoomKind{model.RoomRide, model.RoomOrder} {
		id := m.Tracked(kind)
		if id == "" {
			continue
		}
		if err := r.conn.Emit(joinEvent(kind), roomPayload(kind, id), acks[kind]); err != nil {
			r.conn.logger.Warn("ROOM_REJOIN_FAILED",
				slog.String("room", model.RoomKey(kind, id)),
				slog.Any("err", err),
			)
			continue
		}
		r.conn.logger.Debug("ROOM_REJOINED", slog.String("room", model.RoomKey(kind, id)))
	}
}

func (r *Rooms) takeDeferred(kind model.RoomKind, id string) AckFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.membership.Tracked(kind) != id {
		return nil
	}
	ack := r.deferred[kind]
	delete(r.deferred, kind)
	return ack
}

// restoreDeferred puts ack back unless the room changed or a newer join registered its own.
func (r *Rooms) restoreDeferred(kind model.RoomKind, id string, ack AckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.membership.Tracked(kind) != id {
		return
	}
	if _, ok := r.deferred[kind]; !ok {
		r.deferred[kind] = ack
	}
}

func joinEvent(kind model.RoomKind) string {
	if kind == model.RoomOrder {
		return event.JoinOrder
	}
	return event.JoinRide
}

func leaveEvent(kind model.RoomKind) string {
	if kind == model.RoomOrder {
		return event.LeaveOrder
	}
	return event.LeaveRide
}

func roomPayload(kind model.RoomKind, id string) any {
	if kind == model.RoomOrder {
		return model.OrderRoomPayload{OrderID: id}
	}
	return model.RideRoomPayload{RideID: id}
}
