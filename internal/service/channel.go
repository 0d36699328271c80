package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/webitel/im-realtime-client/internal/domain/event"
	"github.com/webitel/im-realtime-client/internal/domain/registry"
	"github.com/webitel/im-realtime-client/internal/socket"
)

var (
	ErrMissingUser      = errors.New("Missing user")
	ErrMissingOrder     = errors.New("Missing order")
	ErrMissingRequestID = errors.New("Missing chat request id")
	ErrEmptyMessage     = errors.New("Message is empty")
	ErrActionInFlight   = errors.New("Action already in progress")
	ErrItemNotFound     = errors.New("Notification not found")
)

// Channel is the part of socket.Connection the services speak through.
type Channel interface {
	Emit(name string, payload any, onAck socket.AckFunc) error
	Request(ctx context.Context, name string, payload any) (json.RawMessage, error)
	On(name string, fn registry.Handler[event.Inbound]) registry.Disposer
}

var _ Channel = (*socket.Connection)(nil)
