package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/webitel/im-realtime-client/internal/domain/event"
	"github.com/webitel/im-realtime-client/internal/domain/model"
	"github.com/webitel/im-realtime-client/internal/domain/registry"
	"github.com/webitel/im-realtime-client/internal/socket"
)

// RideFinder looks up the passenger's active ride over HTTP.
type RideFinder interface {
	CurrentRide(ctx context.Context, passengerID string) (model.Ride, error)
}

// RoomJoiner is satisfied by *socket.Rooms.
type RoomJoiner interface {
	Join(kind model.RoomKind, id string, onAck socket.AckFunc) error
}

// PassengerHandlers are the ride, booking and location callbacks. Nil members are not
// subscribed.
type PassengerHandlers struct {
	OnRideAccepted      func(model.Ride)
	OnRideStageUpdate   func(model.Ride)
	OnFareFinalized     func(model.Ride)
	OnRideOfferDeclined func(model.Ride)
	// OnRideCancelled receives rideCancelled and ride:status announcing cancellation.
	OnRideCancelled func(model.Ride)
	// OnRideStatus receives every other ride:status.
	OnRideStatus func(model.Ride)

	OnBookingCancelled   func(model.Ride)
	OnBookingStageUpdate func(model.Ride)

	// OnDriverLocation receives all three location events; name tells them apart.
	OnDriverLocation func(name string, loc model.DriverLocation)
}

type Passenger struct {
	ch     Channel
	rides  RideFinder
	logger *slog.Logger
}

func NewPassenger(ch Channel, rides RideFinder, logger *slog.Logger) *Passenger {
	return &Passenger{
		ch:     ch,
		rides:  rides,
		logger: logger.With(slog.String("component", "passenger")),
	}
}

// OnPassengerEvents subscribes h and returns one disposer for every subscription.
func (p *Passenger) OnPassengerEvents(h PassengerHandlers) registry.Disposer {
	var ds []registry.Disposer

	ride := func(name string, fn func(model.Ride)) {
		if fn == nil {
			return
		}
		ds = append(ds, p.ch.On(name, func(in event.Inbound) {
			if r, ok := p.decodeRide(in); ok {
				fn(r)
			}
		}))
	}

	ride(event.RideAccepted, h.OnRideAccepted)
	ride(event.RideStageUpdate, h.OnRideStageUpdate)
	ride(event.FareFinalized, h.OnFareFinalized)
	ride(event.RideOfferDeclined, h.OnRideOfferDeclined)
	ride(event.RideCancelled, h.OnRideCancelled)
	ride(event.BookingCancelled, h.OnBookingCancelled)
	ride(event.BookingStageUpdate, h.OnBookingStageUpdate)

	// [NORMALIZATION] ride:status{state:cancelled} is the same fact as rideCancelled.
	if h.OnRideCancelled != nil || h.OnRideStatus != nil {
		ds = append(ds, p.ch.On(event.RideStatus, func(in event.Inbound) {
			r, ok := p.decodeRide(in)
			if !ok {
				return
			}
			switch {
			case r.IsCancelled() && h.OnRideCancelled != nil:
				h.OnRideCancelled(r)
			case !r.IsCancelled() && h.OnRideStatus != nil:
				h.OnRideStatus(r)
			}
		}))
	}

	if h.OnDriverLocation != nil {
		for _, name := range []string{event.RideDriverLocation, event.DeliveryDriverLocation, event.DriverLocationBroadcast} {
			ds = append(ds, p.ch.On(name, func(in event.Inbound) {
				loc, err := event.Decode[model.DriverLocation](in)
				if err != nil {
					p.logger.Warn("LOCATION_DECODE_FAILED", slog.String("event", in.Name), slog.Any("err", err))
					return
				}
				h.OnDriverLocation(in.Name, loc)
			}))
		}
	}

	return registry.Combine(ds...)
}

func (p *Passenger) decodeRide(in event.Inbound) (model.Ride, bool) {
	payload := in.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	r, err := model.DecodeRide(payload)
	if err != nil {
		p.logger.Warn("RIDE_DECODE_FAILED", slog.String("event", in.Name), slog.Any("err", err))
		return model.Ride{}, false
	}
	return r, true
}

func (p *Passenger) CurrentRide(ctx context.Context, passengerID string) (model.Ride, error) {
	if passengerID == "" {
		return model.Ride{}, ErrMissingUser
	}
	return p.rides.CurrentRide(ctx, passengerID)
}

// TrackCurrentRide joins the room of the passenger's active ride, if there is one.
func (p *Passenger) TrackCurrentRide(ctx context.Context, passengerID string, rooms RoomJoiner) (model.Ride, error) {
	r, err := p.CurrentRide(ctx, passengerID)
	if err != nil {
		return model.Ride{}, err
	}
	if err := rooms.Join(model.RoomRide, r.Key(), nil); err != nil {
		return r, fmt.Errorf("join ride %s: %w", r.Key(), err)
	}
	p.logger.Info("CURRENT_RIDE_TRACKED", slog.String("ride_id", r.Key()))
	return r, nil
}
