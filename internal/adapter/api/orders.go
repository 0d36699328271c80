package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/webitel/im-realtime-client/internal/domain/model"
)

// OrderSummary fetches the amount and ordering user of an order.
func (c *Client) OrderSummary(ctx context.Context, orderID string) (model.OrderSummary, error) {
	var s model.OrderSummary
	if err := c.do(ctx, http.MethodGet, c.endpoint(nil, "orders", orderID, "summary"), nil, &s); err != nil {
		return model.OrderSummary{}, fmt.Errorf("order %s summary: %w", orderID, err)
	}
	if s.OrderID.IsZero() {
		s.OrderID = model.FlexID(orderID)
	}
	return s, nil
}

// UpdateOrderStatus confirms or rejects an order on behalf of the merchant.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, upd model.StatusUpdate) error {
	if err := c.do(ctx, http.MethodPut, c.endpoint(nil, "orders", orderID, "status"), upd, nil); err != nil {
		return fmt.Errorf("order %s status %s: %w", orderID, upd.Status, err)
	}
	return nil
}

// CurrentRide tries the query-parameter lookup first and the nested resource second.
// The first 2xx response carrying a ride id wins.
func (c *Client) CurrentRide(ctx context.Context, passengerID string) (model.Ride, error) {
	candidates := []string{
		c.endpoint(url.Values{"passenger_id": {passengerID}}, "rides", "current"),
		c.endpoint(nil, "passengers", passengerID, "rides", "current"),
	}

	var errs []error
	for _, target := range candidates {
		ride, err := c.fetchRide(ctx, target)
		if err == nil {
			return ride, nil
		}
		errs = append(errs, err)
	}
	return model.Ride{}, fmt.Errorf("passenger %s: %w", passengerID, errors.Join(append([]error{ErrNoCurrentRide}, errs...)...))
}

// fetchRide accepts both {"ride":{...}} and a bare ride object.
func (c *Client) fetchRide(ctx context.Context, target string) (model.Ride, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, target, nil, &raw); err != nil {
		return model.Ride{}, err
	}

	body := raw
	var wrapped struct {
		Ride json.RawMessage `json:"ride"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && len(wrapped.Ride) > 0 && string(wrapped.Ride) != "null" {
		body = wrapped.Ride
	}

	ride, err := model.DecodeRide(body)
	if err != nil || ride.Key() == "" {
		return model.Ride{}, fmt.Errorf("%s: unrecognized ride body", target)
	}
	return ride, nil
}
