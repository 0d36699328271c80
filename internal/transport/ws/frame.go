package ws

import (
	"encoding/json"
	"fmt"
)

// Frame is the JSON envelope of every websocket text message.
//
//	{"event":"joinRide","id":7,"data":{"rideId":"R1"}}   request expecting an ack
//	{"ack":7,"data":{"ok":true}}                          reply to id 7
//	{"event":"rideAccepted","data":{...}}                 server push
type Frame struct {
	Event string          `json:"event,omitempty"`
	ID    uint64          `json:"id,omitempty"`
	Ack   uint64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// IsAck reports whether the frame answers an earlier request.
func (f Frame) IsAck() bool { return f.Ack != 0 }

// MarshalFrame renders an outbound event frame. ackID is zero when no reply is wanted.
func MarshalFrame(event string, ackID uint64, data json.RawMessage) ([]byte, error) {
	if event == "" {
		return nil, fmt.Errorf("frame: empty event name")
	}
	return json.Marshal(Frame{Event: event, ID: ackID, Data: data})
}

// UnmarshalFrame parses an inbound message.
func UnmarshalFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("frame: %w", err)
	}
	if f.Event == "" && f.Ack == 0 {
		return Frame{}, fmt.Errorf("frame: neither event nor ack set")
	}
	return f, nil
}
