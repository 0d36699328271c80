package model

import (
	"encoding/json"
	"strings"
)

// Ride is the common part of ride and booking payloads. The full server object is kept
// in Raw because stage-specific fields vary between events.
type Ride struct {
	ID        FlexID          `json:"id"`
	RideID    FlexID          `json:"rideId,omitempty"`
	BookingID FlexID          `json:"bookingId,omitempty"`
	Status    string          `json:"status,omitempty"`
	State     string          `json:"state,omitempty"`
	Stage     string          `json:"stage,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// Key returns the best available identifier for the ride or booking.
func (r Ride) Key() string {
	for _, id := range []FlexID{r.RideID, r.BookingID, r.ID} {
		if !id.IsZero() {
			return id.String()
		}
	}
	return ""
}

// IsCancelled reports whether a ride:status payload announces cancellation.
func (r Ride) IsCancelled() bool {
	for _, s := range []string{r.State, r.Status} {
		switch strings.ToLower(s) {
		case "cancelled", "canceled":
			return true
		}
	}
	return false
}

// DecodeRide decodes a ride object and keeps the raw bytes.
func DecodeRide(data json.RawMessage) (Ride, error) {
	var r Ride
	if err := json.Unmarshal(data, &r); err != nil {
		return Ride{}, err
	}
	r.Raw = data
	return r, nil
}

// DriverLocation is carried by rideDriverLocation, deliveryDriverLocation and
// driverLocationBroadcast.
type DriverLocation struct {
	RideID    FlexID   `json:"rideId,omitempty"`
	OrderID   FlexID   `json:"orderId,omitempty"`
	DriverID  FlexID   `json:"driverId,omitempty"`
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Timestamp any      `json:"timestamp,omitempty"`
}
