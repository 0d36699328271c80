package model

import "time"

// ItemState tracks a notification through the merchant inbox.
type ItemState string

const (
	ItemDelivered    ItemState = "delivered"     // shown, delivery ack sent
	ItemEnriching    ItemState = "enriching"     // summary fetch in flight
	ItemEnriched     ItemState = "enriched"      // amount and user known
	ItemEnrichFailed ItemState = "enrich_failed" // amount unknown, still actionable once a user is known
	ItemResolving    ItemState = "resolving"     // accept/reject in flight
)

// OrderStatus values accepted by the order status service.
type OrderStatus string

const (
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderRejected  OrderStatus = "REJECTED"
)

// NotificationItem is one entry of the merchant inbox. It lives for the process only.
//
// [ENRICHMENT] TotalAmount and UserID start nil and are filled from the order summary;
// nil means "unknown", which the UI renders as a placeholder.
type NotificationItem struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"orderId"`
	Type        string    `json:"type,omitempty"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
	TotalAmount *float64  `json:"total_amount"`
	UserID      *FlexID   `json:"user_id"`
	State       ItemState `json:"state"`
}

// HasUser reports whether accept/reject may be attempted.
func (n NotificationItem) HasUser() bool {
	return n.UserID != nil && !n.UserID.IsZero()
}

// OrderSummary is the subset of the order-summary response the inbox needs.
type OrderSummary struct {
	OrderID     FlexID   `json:"order_id,omitempty"`
	TotalAmount *float64 `json:"total_amount"`
	UserID      *FlexID  `json:"user_id"`
}

// StatusUpdate is the order-status PUT body.
type StatusUpdate struct {
	Status OrderStatus `json:"status"`
	Reason string      `json:"reason"`
	UserID FlexID      `json:"user_id"`
}

// NotifyAck is the delivery acknowledgment sent for every inbound notify.
type NotifyAck struct {
	ID string `json:"id"`
}
