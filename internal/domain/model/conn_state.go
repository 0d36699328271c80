package model

// ConnState is the lifecycle of a single role connection.
type ConnState int32

const (
	// [ZERO_VALUE_GUARD] A fresh connection is disconnected until the transport dials.
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// StateChange is published to connection state observers.
// Err is set when the change was caused by a transport failure.
type StateChange struct {
	Role  Role      `json:"role"`
	State ConnState `json:"state"`
	Err   error     `json:"-"`
}
