package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-client/internal/domain/event"
	"github.com/webitel/im-realtime-client/internal/domain/model"
	"github.com/webitel/im-realtime-client/internal/socket"
)

func TestChat_OptimisticEchoReconciliation(t *testing.T) {
	c, fake := newConn(t, model.RolePassenger)
	chat := NewChat(c, discard)

	// Local echoes keyed by temp id, replaced by the canonical message.
	pending := map[string]string{}
	canonical := map[string]model.ChatMessage{}
	dispose := chat.OnChatEvents(ChatHandlers{
		OnNewMessage: func(msg model.ChatMessage, tempID string) {
			if _, ok := pending[tempID]; ok {
				delete(pending, tempID)
				canonical[tempID] = msg
			}
		},
	})
	defer dispose()

	tempID, err := chat.Send(model.ChatSend{RequestID: "o1", Message: "hi", TempID: "t1"}, nil)
	require.NoError(t, err)
	require.Equal(t, "t1", tempID)
	pending[tempID] = "hi"

	sent := fake.SentNamed(event.ChatSend)
	require.Len(t, sent, 1)
	assert.JSONEq(t, `{"request_id":"o1","message":"hi","temp_id":"t1"}`, string(sent[0].Payload))

	fake.Deliver(event.ChatNew, `{"message":{"id":101,"request_id":"o1","sender_role":"passenger","message":"hi","created_at":"2026-01-02T03:04:05Z"},"temp_id":"t1"}`)

	assert.Empty(t, pending)
	require.Contains(t, canonical, "t1")
	msg := canonical["t1"]
	assert.Equal(t, model.FlexID("101"), msg.ID)
	assert.Equal(t, "hi", msg.Message)
	assert.Contains(t, string(msg.Raw), "created_at")
}

func TestChat_AttachmentsPassThrough(t *testing.T) {
	c, fake := newConn(t, model.RoleMerchant)
	chat := NewChat(c, discard)

	var got []model.ChatMessage
	defer chat.OnChatEvents(ChatHandlers{
		OnNewMessage: func(msg model.ChatMessage, _ string) { got = append(got, msg) },
	})()

	fake.Deliver(event.ChatNew, `{"message":{"id":1,"request_id":"o1","message":"","attachments":[{"url":"https://cdn/x.jpg","type":"image"}]}}`)
	fake.Deliver(event.ChatNew, `{"message":{"id":2,"request_id":"o1","message":"see file","attachments":["file-9"]}}`)

	require.Len(t, got, 2)
	require.Len(t, got[0].Attachments, 1)
	assert.JSONEq(t, `{"url":"https://cdn/x.jpg","type":"image"}`, string(got[0].Attachments[0]))
	assert.JSONEq(t, `"file-9"`, string(got[1].Attachments[0]))

	_, err := chat.Send(model.ChatSend{
		RequestID:   "o1",
		Attachments: []json.RawMessage{json.RawMessage(`{"url":"https://cdn/y.png","type":"image"}`)},
		TempID:      "t1",
	}, nil)
	require.NoError(t, err)
	sent := fake.SentNamed(event.ChatSend)
	require.Len(t, sent, 1)
	assert.JSONEq(t, `{"request_id":"o1","message":"","attachments":[{"url":"https://cdn/y.png","type":"image"}],"temp_id":"t1"}`, string(sent[0].Payload))
}

func TestChat_SendGeneratesTempID(t *testing.T) {
	c, fake := newConn(t, model.RoleMerchant)
	chat := NewChat(c, discard)

	var acked json.RawMessage
	tempID, err := chat.Send(model.ChatSend{RequestID: "o1", Attachments: []json.RawMessage{json.RawMessage(`"file-1"`)}}, func(p json.RawMessage) { acked = p })
	require.NoError(t, err)
	assert.NotEmpty(t, tempID)

	var body model.ChatSend
	require.NoError(t, fake.SentNamed(event.ChatSend)[0].Decode(&body))
	assert.Equal(t, tempID, body.TempID)

	require.True(t, fake.AckLast(event.ChatSend, map[string]any{"ok": true}))
	assert.JSONEq(t, `{"ok":true}`, string(acked))

	_, err = chat.Send(model.ChatSend{RequestID: "o1"}, nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = chat.Send(model.ChatSend{Message: "hi"}, nil)
	assert.ErrorIs(t, err, ErrMissingRequestID)
}

func TestChat_Outbound(t *testing.T) {
	tests := []struct {
		name    string
		call    func(chat *Chat) error
		event   string
		payload string
	}{
		{
			name:    "history defaults",
			call:    func(chat *Chat) error { return chat.LoadHistory(model.HistoryQuery{RequestID: "o1"}, nil) },
			event:   event.ChatHistory,
			payload: `{"request_id":"o1","limit":50}`,
		},
		{
			name: "history page",
			call: func(chat *Chat) error {
				return chat.LoadHistory(model.HistoryQuery{RequestID: "o1", BeforeID: "m9", Limit: 20}, nil)
			},
			event:   event.ChatHistory,
			payload: `{"request_id":"o1","before_id":"m9","limit":20}`,
		},
		{
			name:    "typing",
			call:    func(chat *Chat) error { return chat.SetTyping("o1", true) },
			event:   event.ChatTyping,
			payload: `{"request_id":"o1","is_typing":true}`,
		},
		{
			name: "read",
			call: func(chat *Chat) error {
				return chat.MarkRead(model.ReadReceipt{RequestID: "o1", LastSeenID: "m10"}, nil)
			},
			event:   event.ChatRead,
			payload: `{"request_id":"o1","last_seen_id":"m10"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newConn(t, model.RolePassenger)
			require.NoError(t, tt.call(NewChat(c, discard)))

			sent := fake.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, tt.event, sent[0].Event)
			assert.JSONEq(t, tt.payload, string(sent[0].Payload))
		})
	}
}

func TestChat_NotConnected(t *testing.T) {
	c, fake := newConn(t, model.RolePassenger)
	fake.Drop(nil)
	chat := NewChat(c, discard)

	assert.ErrorIs(t, chat.SetTyping("o1", false), socket.ErrNotConnected)
	_, err := chat.Send(model.ChatSend{RequestID: "o1", Message: "hi"}, nil)
	assert.ErrorIs(t, err, socket.ErrNotConnected)
	assert.ErrorIs(t, chat.LoadHistory(model.HistoryQuery{}, nil), ErrMissingRequestID)
}

func TestChat_HandlersAndDispose(t *testing.T) {
	c, fake := newConn(t, model.RolePassenger)
	chat := NewChat(c, discard)

	var typing []model.ChatTyping
	var reads []model.ChatRead
	dispose := chat.OnChatEvents(ChatHandlers{
		OnTyping: func(v model.ChatTyping) { typing = append(typing, v) },
		OnRead:   func(v model.ChatRead) { reads = append(reads, v) },
	})

	fake.Deliver(event.ChatTypingIn, `{"request_id":"o1","from":7,"is_typing":true}`)
	fake.Deliver(event.ChatReadIn, `{"request_id":"o1","reader":"8","last_seen_id":55}`)
	fake.Deliver(event.ChatTypingIn, `not json`)

	require.Len(t, typing, 1)
	assert.Equal(t, model.ChatTyping{RequestID: "o1", From: "7", IsTyping: true}, typing[0])
	require.Len(t, reads, 1)
	assert.Equal(t, model.FlexID("55"), reads[0].LastSeenID)

	dispose()
	dispose()
	fake.Deliver(event.ChatTypingIn, `{"request_id":"o1","from":7,"is_typing":false}`)
	assert.Len(t, typing, 1)
}
