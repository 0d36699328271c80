package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-client/internal/domain/event"
	"github.com/webitel/im-realtime-client/internal/domain/model"
	"github.com/webitel/im-realtime-client/internal/domain/registry"
	"github.com/webitel/im-realtime-client/internal/socket"
)

// ChatHandlers are the inbound chat callbacks. Nil members are not subscribed.
type ChatHandlers struct {
	// OnNewMessage receives the canonical message and the temp id it was sent with, so an
	// optimistic local echo keyed by that temp id can be replaced.
	OnNewMessage func(msg model.ChatMessage, tempID string)
	OnTyping     func(model.ChatTyping)
	OnRead       func(model.ChatRead)
}

// Chat is the chat sub-protocol over one connection.
//
// [ORDERING] Nothing is guaranteed across a reconnect; callers resync with LoadHistory.
type Chat struct {
	ch     Channel
	logger *slog.Logger
}

func NewChat(ch Channel, logger *slog.Logger) *Chat {
	return &Chat{
		ch:     ch,
		logger: logger.With(slog.String("component", "chat")),
	}
}

// Send emits chat:send and returns the temp id the echo will carry. A temp id is
// generated when msg has none.
func (c *Chat) Send(msg model.ChatSend, onAck socket.AckFunc) (string, error) {
	if msg.RequestID == "" {
		return "", ErrMissingRequestID
	}
	if msg.Message == "" && len(msg.Attachments) == 0 {
		return "", ErrEmptyMessage
	}
	if msg.TempID == "" {
		msg.TempID = uuid.NewString()
	}
	if err := c.ch.Emit(event.ChatSend, msg, onAck); err != nil {
		return "", err
	}
	return msg.TempID, nil
}

// LoadHistory requests one page. Limit defaults to model.DefaultHistoryLimit and an empty
// BeforeID is left off the wire.
func (c *Chat) LoadHistory(q model.HistoryQuery, onAck socket.AckFunc) error {
	q, err := normalizeHistory(q)
	if err != nil {
		return err
	}
	return c.ch.Emit(event.ChatHistory, q, onAck)
}

// History is LoadHistory awaiting the reply.
func (c *Chat) History(ctx context.Context, q model.HistoryQuery) (json.RawMessage, error) {
	q, err := normalizeHistory(q)
	if err != nil {
		return nil, err
	}
	return c.ch.Request(ctx, event.ChatHistory, q)
}

func normalizeHistory(q model.HistoryQuery) (model.HistoryQuery, error) {
	if q.RequestID == "" {
		return q, ErrMissingRequestID
	}
	if q.Limit <= 0 {
		q.Limit = model.DefaultHistoryLimit
	}
	return q, nil
}

// SetTyping is fire-and-forget.
func (c *Chat) SetTyping(requestID string, isTyping bool) error {
	if requestID == "" {
		return ErrMissingRequestID
	}
	return c.ch.Emit(event.ChatTyping, model.TypingSignal{RequestID: requestID, IsTyping: isTyping}, nil)
}

func (c *Chat) MarkRead(r model.ReadReceipt, onAck socket.AckFunc) error {
	if r.RequestID == "" {
		return ErrMissingRequestID
	}
	return c.ch.Emit(event.ChatRead, r, onAck)
}

// OnChatEvents subscribes the non-nil handlers and returns one disposer for all of them.
func (c *Chat) OnChatEvents(h ChatHandlers) registry.Disposer {
	var ds []registry.Disposer

	if h.OnNewMessage != nil {
		ds = append(ds, c.ch.On(event.ChatNew, func(in event.Inbound) {
			v, err := event.Decode[model.ChatNew](in)
			if err != nil {
				c.logger.Warn("CHAT_EVENT_DECODE_FAILED", slog.String("event", in.Name), slog.Any("err", err))
				return
			}
			h.OnNewMessage(v.Message, v.TempID)
		}))
	}
	if h.OnTyping != nil {
		ds = append(ds, c.ch.On(event.ChatTypingIn, func(in event.Inbound) {
			v, err := event.Decode[model.ChatTyping](in)
			if err != nil {
				c.logger.Warn("CHAT_EVENT_DECODE_FAILED", slog.String("event", in.Name), slog.Any("err", err))
				return
			}
			h.OnTyping(v)
		}))
	}
	if h.OnRead != nil {
		ds = append(ds, c.ch.On(event.ChatReadIn, func(in event.Inbound) {
			v, err := event.Decode[model.ChatRead](in)
			if err != nil {
				c.logger.Warn("CHAT_EVENT_DECODE_FAILED", slog.String("event", in.Name), slog.Any("err", err))
				return
			}
			h.OnRead(v)
		}))
	}

	return registry.Combine(ds...)
}
