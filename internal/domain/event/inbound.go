package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound is one named event received from the far end.
type Inbound struct {
	Name       string
	Payload    json.RawMessage
	ReceivedAt time.Time
}

func NewInbound(name string, payload json.RawMessage) Inbound {
	return Inbound{
		Name:       name,
		Payload:    payload,
		ReceivedAt: time.Now(),
	}
}

// Decode unmarshals the payload into T. An empty payload decodes to the zero value.
func Decode[T any](in Inbound) (T, error) {
	var v T
	if len(in.Payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(in.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w", in.Name, err)
	}
	return v, nil
}
