package model

import "encoding/json"

// DefaultHistoryLimit is used when a history query does not set a page size.
const DefaultHistoryLimit = 50

// ChatSend is the outbound chat:send body.
//
// [OPTIMISTIC_ECHO] TempID travels to the server and back inside chat:new so the sender
// can swap its local echo for the canonical message.
type ChatSend struct {
	RequestID   string            `json:"request_id"`
	Message     string            `json:"message"`
	Attachments []json.RawMessage `json:"attachments,omitempty"`
	TempID      string            `json:"temp_id,omitempty"`
}

// HistoryQuery is the outbound chat:history body. BeforeID is omitted when empty so the
// far end pages forward from the newest message.
type HistoryQuery struct {
	RequestID string `json:"request_id"`
	BeforeID  string `json:"before_id,omitempty"`
	Limit     int    `json:"limit"`
}

type TypingSignal struct {
	RequestID string `json:"request_id"`
	IsTyping  bool   `json:"is_typing"`
}

type ReadReceipt struct {
	RequestID  string `json:"request_id"`
	LastSeenID string `json:"last_seen_id"`
}

// ChatMessage is the canonical message as stored by the server. Unknown fields are kept
// in Raw so callers can render whatever the server sends. Attachments are passed through
// as sent: ids, urls or objects.
type ChatMessage struct {
	ID          FlexID            `json:"id"`
	RequestID   FlexID            `json:"request_id"`
	SenderID    FlexID            `json:"sender_id,omitempty"`
	SenderRole  string            `json:"sender_role,omitempty"`
	Message     string            `json:"message"`
	Attachments []json.RawMessage `json:"attachments,omitempty"`
	Raw         json.RawMessage   `json:"-"`
}

// ChatNew is the inbound chat:new body.
type ChatNew struct {
	Message ChatMessage `json:"message"`
	TempID  string      `json:"temp_id,omitempty"`
}

// UnmarshalJSON keeps the original message object next to the decoded fields.
func (c *ChatNew) UnmarshalJSON(data []byte) error {
	var wire struct {
		Message json.RawMessage `json:"message"`
		TempID  string          `json:"temp_id"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.TempID = wire.TempID
	c.Message = ChatMessage{}
	if len(wire.Message) == 0 || string(wire.Message) == "null" {
		return nil
	}
	if err := json.Unmarshal(wire.Message, &c.Message); err != nil {
		return err
	}
	c.Message.Raw = wire.Message
	return nil
}

// ChatTyping is the inbound chat:typing body.
type ChatTyping struct {
	RequestID FlexID `json:"request_id"`
	From      FlexID `json:"from"`
	IsTyping  bool   `json:"is_typing"`
}

// ChatRead is the inbound chat:read body.
type ChatRead struct {
	RequestID  FlexID `json:"request_id"`
	Reader     FlexID `json:"reader"`
	LastSeenID FlexID `json:"last_seen_id"`
}
