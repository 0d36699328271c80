package service

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/webitel/im-realtime-client/internal/domain/event"
	"github.com/webitel/im-realtime-client/internal/domain/model"
	"github.com/webitel/im-realtime-client/internal/domain/registry"
	"github.com/webitel/im-realtime-client/internal/service/dto"
)

type Merchant struct {
	ch     Channel
	logger *slog.Logger
	now    func() time.Time
}

func NewMerchant(ch Channel, logger *slog.Logger) *Merchant {
	return &Merchant{
		ch:     ch,
		logger: logger.With(slog.String("component", "merchant")),
		now:    time.Now,
	}
}

// OnMerchantNotify delivers every notify as an inbox item, duplicates included.
func (m *Merchant) OnMerchantNotify(fn func(model.NotificationItem)) registry.Disposer {
	if fn == nil {
		return registry.Noop
	}
	return m.ch.On(event.Notify, func(in event.Inbound) {
		v, err := event.Decode[dto.NotifyV1](in)
		if err != nil {
			m.logger.Warn("NOTIFY_DECODE_FAILED", slog.Any("err", err))
			return
		}
		fn(v.ToDomain(m.now()))
	})
}

// OnOrderStatus passes order:status through untouched.
func (m *Merchant) OnOrderStatus(fn func(json.RawMessage)) registry.Disposer {
	if fn == nil {
		return registry.Noop
	}
	return m.ch.On(event.OrderStatus, func(in event.Inbound) {
		fn(in.Payload)
	})
}

// AckNotify confirms delivery of notification id to the far end.
func (m *Merchant) AckNotify(id string) error {
	return m.ch.Emit(event.NotifyAck, model.NotifyAck{ID: id}, nil)
}
