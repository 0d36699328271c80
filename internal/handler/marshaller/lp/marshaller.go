package lpmarshaller

import (
	"encoding/json"

	"github.com/webitel/im-realtime-client/internal/domain/event"
)

// LPEvent represents a single inbound event structured for streaming consumers.
type LPEvent struct {
	Type       string          `json:"type"`
	ReceivedAt int64           `json:"received_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Response defines the top-level JSON array to support event batching.
type Response struct {
	Events  []LPEvent `json:"events"`
	Dropped int64     `json:"dropped,omitempty"`
}

func toLPEvent(in event.Inbound) LPEvent {
	payload := in.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return LPEvent{
		Type:       in.Name,
		ReceivedAt: in.ReceivedAt.UnixMilli(),
		Payload:    payload,
	}
}

// MarshallEvents converts a batch of inbound events into a single JSON document.
// dropped reports events the consumer lost to backpressure since it subscribed.
func MarshallEvents(events []event.Inbound, dropped int64) ([]byte, error) {
	res := Response{
		Events:  make([]LPEvent, 0, len(events)),
		Dropped: dropped,
	}
	for _, in := range events {
		res.Events = append(res.Events, toLPEvent(in))
	}
	return json.Marshal(res)
}

// MarshallEvent renders one event as a websocket text frame.
func MarshallEvent(in event.Inbound) ([]byte, error) {
	return json.Marshal(toLPEvent(in))
}
