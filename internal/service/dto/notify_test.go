package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-client/internal/domain/model"
)

func TestNotifyV1_ToDomain(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	user := model.FlexID("7")
	amount := 150.0

	tests := []struct {
		name    string
		payload string
		want    model.NotificationItem
	}{
		{
			name:    "envelope",
			payload: `{"id":"n1","type":"order","orderId":42,"createdAt":"2026-01-01T10:00:00Z","data":{"title":"Pizza","body":"2x Margherita"}}`,
			want: model.NotificationItem{
				ID: "n1", OrderID: "42", Type: "order", Title: "Pizza", Body: "2x Margherita",
				CreatedAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), State: model.ItemDelivered,
			},
		},
		{
			name:    "flat order payload",
			payload: `{"order_id":"42","title":"Order","body":"b","total_amount":150,"user_id":7,"createdAt":1767348245000}`,
			want: model.NotificationItem{
				ID: "42", OrderID: "42", Title: "Order", Body: "b", TotalAmount: &amount, UserID: &user,
				CreatedAt: time.UnixMilli(1767348245000), State: model.ItemDelivered,
			},
		},
		{
			name:    "defaults",
			payload: `{"orderId":"43","user_id":null}`,
			want: model.NotificationItem{
				ID: "43", OrderID: "43", Title: DefaultNotifyTitle, Body: "Order #43",
				CreatedAt: now, State: model.ItemDelivered,
			},
		},
		{
			name:    "order id inside data",
			payload: `{"id":"n9","data":{"orderId":44},"createdAt":"garbage"}`,
			want: model.NotificationItem{
				ID: "n9", OrderID: "44", Title: DefaultNotifyTitle, Body: "Order #44",
				CreatedAt: now, State: model.ItemDelivered,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d NotifyV1
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &d))
			got := d.ToDomain(now)
			assert.True(t, tt.want.CreatedAt.Equal(got.CreatedAt))
			got.CreatedAt = tt.want.CreatedAt
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNotifyV1_ToDomainWithoutIdentifiers(t *testing.T) {
	var d NotifyV1
	require.NoError(t, json.Unmarshal([]byte(`{"type":"promo"}`), &d))

	a, b := d.ToDomain(time.Now()), d.ToDomain(time.Now())
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Empty(t, a.OrderID)
	assert.Equal(t, DefaultNotifyBody, a.Body)
}
