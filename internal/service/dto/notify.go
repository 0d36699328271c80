// internal/service/dto/notify.go
package dto

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-client/internal/domain/model"
)

const (
	DefaultNotifyTitle = "New order"
	DefaultNotifyBody  = "You have a new notification"
)

// [NOTIFY_V1] The envelope form {id,type,orderId,createdAt,data:{title,body}} and the
// flat order payload {order_id,title,body,total_amount,user_id} both decode here.
type NotifyV1 struct {
	ID           model.FlexID    `json:"id"`
	Type         string          `json:"type"`
	OrderID      model.FlexID    `json:"orderId"`
	OrderIDSnake model.FlexID    `json:"order_id"`
	CreatedAt    json.RawMessage `json:"createdAt"`
	Title        string          `json:"title"`
	Body         string          `json:"body"`
	TotalAmount  *float64        `json:"total_amount"`
	UserID       *model.FlexID   `json:"user_id"`
	Data         *NotifyDataV1   `json:"data"`
}

type NotifyDataV1 struct {
	Title   string       `json:"title"`
	Body    string       `json:"body"`
	OrderID model.FlexID `json:"orderId"`
}

// ToDomain builds the inbox item. now stamps items without a parsable createdAt.
func (d *NotifyV1) ToDomain(now time.Time) model.NotificationItem {
	orderID := d.orderID()

	item := model.NotificationItem{
		ID:          d.ID.String(),
		OrderID:     orderID,
		Type:        d.Type,
		Title:       firstNonEmpty(d.Title, d.dataTitle(), DefaultNotifyTitle),
		Body:        firstNonEmpty(d.Body, d.dataBody()),
		CreatedAt:   parseCreatedAt(d.CreatedAt, now),
		TotalAmount: d.TotalAmount,
		State:       model.ItemDelivered,
	}
	if d.UserID != nil && !d.UserID.IsZero() {
		item.UserID = d.UserID
	}

	// [IDENTITY_FALLBACK] The order id is stable across redeliveries; a random id is not,
	// so it is the last resort.
	if item.ID == "" {
		item.ID = orderID
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	if item.Body == "" {
		if orderID != "" {
			item.Body = "Order #" + orderID
		} else {
			item.Body = DefaultNotifyBody
		}
	}
	return item
}

func (d *NotifyV1) orderID() string {
	for _, id := range []model.FlexID{d.OrderID, d.OrderIDSnake} {
		if !id.IsZero() {
			return id.String()
		}
	}
	if d.Data != nil {
		return d.Data.OrderID.String()
	}
	return ""
}

func (d *NotifyV1) dataTitle() string {
	if d.Data == nil {
		return ""
	}
	return d.Data.Title
}

func (d *NotifyV1) dataBody() string {
	if d.Data == nil {
		return ""
	}
	return d.Data.Body
}

// parseCreatedAt accepts RFC3339 strings and unix milliseconds.
func parseCreatedAt(raw json.RawMessage, fallback time.Time) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fallback
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
		raw = []byte(s)
	}
	if ms, err := strconv.ParseInt(string(raw), 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms)
	}
	return fallback
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
