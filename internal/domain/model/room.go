package model

import "fmt"

type RoomKind string

const (
	RoomRide  RoomKind = "ride"
	RoomOrder RoomKind = "order"
)

func (k RoomKind) Valid() bool {
	return k == RoomRide || k == RoomOrder
}

// ParseRoomKind validates a room kind coming from an untyped source (URL, config).
func ParseRoomKind(s string) (RoomKind, error) {
	k := RoomKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown room kind %q", s)
	}
	return k, nil
}

// RoomKey renders the server-side address of a room, e.g. "ride:42".
func RoomKey(kind RoomKind, id string) string {
	return string(kind) + ":" + id
}

// RoomMembership holds the rooms the client intends to stay joined to.
//
// [LAST_JOIN_WINS] One ride room and one order room are tracked; a join replaces the
// tracked id for its kind, a leave clears it only when the ids match.
type RoomMembership struct {
	RideID  string `json:"ride_id,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

// Tracked returns the tracked id for kind, or "" when none.
func (m RoomMembership) Tracked(kind RoomKind) string {
	switch kind {
	case RoomRide:
		return m.RideID
	case RoomOrder:
		return m.OrderID
	}
	return ""
}

// Join returns the membership with id tracked for kind.
func (m RoomMembership) Join(kind RoomKind, id string) RoomMembership {
	switch kind {
	case RoomRide:
		m.RideID = id
	case RoomOrder:
		m.OrderID = id
	}
	return m
}

// Leave returns the membership with kind cleared if and only if id is the tracked one.
// The boolean reports whether anything changed.
func (m RoomMembership) Leave(kind RoomKind, id string) (RoomMembership, bool) {
	if id == "" || m.Tracked(kind) != id {
		return m, false
	}
	return m.Join(kind, ""), true
}

// Keys lists the room keys currently tracked, ride first.
func (m RoomMembership) Keys() []string {
	keys := make([]string, 0, 2)
	if m.RideID != "" {
		keys = append(keys, RoomKey(RoomRide, m.RideID))
	}
	if m.OrderID != "" {
		keys = append(keys, RoomKey(RoomOrder, m.OrderID))
	}
	return keys
}

// RideRoomPayload is the body of joinRide / leaveRide.
type RideRoomPayload struct {
	RideID string `json:"rideId"`
}

// OrderRoomPayload is the body of joinOrder / leaveOrder.
type OrderRoomPayload struct {
	OrderID string `json:"orderId"`
}
