// Package event names the events exchanged over the realtime channel and wraps inbound
// payloads for fan-out.
package event

import "strings"

// Transport lifecycle. These are produced locally by the transport, never sent.
const (
	Connect    = "connect"
	Disconnect = "disconnect"
)

// [OUTBOUND] client -> server
const (
	WhoAmI     = "whoami"
	JoinRide   = "joinRide"
	LeaveRide  = "leaveRide"
	JoinOrder  = "joinOrder"
	LeaveOrder = "leaveOrder"

	ChatSend    = "chat:send"
	ChatHistory = "chat:history"
	ChatTyping  = "chat:typing"
	ChatRead    = "chat:read"

	NotifyAck = "notify:ack"
)

// [INBOUND] server -> client, passenger side
const (
	RideAccepted      = "rideAccepted"
	RideStageUpdate   = "rideStageUpdate"
	FareFinalized     = "fareFinalized"
	RideOfferDeclined = "rideOfferDeclined"
	RideCancelled     = "rideCancelled"
	RideStatus        = "ride:status"

	BookingCancelled   = "bookingCancelled"
	BookingStageUpdate = "bookingStageUpdate"

	RideDriverLocation      = "rideDriverLocation"
	DeliveryDriverLocation  = "deliveryDriverLocation"
	DriverLocationBroadcast = "driverLocationBroadcast"
)

// [INBOUND] chat, both sides
const (
	ChatNew      = "chat:new"
	ChatTypingIn = "chat:typing"
	ChatReadIn   = "chat:read"
)

// [INBOUND] merchant side
const (
	Notify      = "notify"
	OrderStatus = "order:status"
)

// Passenger lists the inbound events a passenger connection fans out.
func Passenger() []string {
	return []string{
		RideAccepted, RideStageUpdate, FareFinalized, RideOfferDeclined, RideCancelled, RideStatus,
		BookingCancelled, BookingStageUpdate,
		RideDriverLocation, DeliveryDriverLocation, DriverLocationBroadcast,
		ChatNew, ChatTypingIn, ChatReadIn,
	}
}

// Merchant lists the inbound events a merchant connection fans out.
func Merchant() []string {
	return []string{Notify, OrderStatus, ChatNew, ChatTypingIn, ChatReadIn}
}

// Select narrows allowed to the comma-separated names in filter, keeping allowed's order.
// An empty filter selects everything.
func Select(allowed []string, filter string) []string {
	if strings.TrimSpace(filter) == "" {
		return allowed
	}
	want := map[string]bool{}
	for _, name := range strings.Split(filter, ",") {
		want[strings.TrimSpace(name)] = true
	}
	out := make([]string, 0, len(want))
	for _, name := range allowed {
		if want[name] {
			out = append(out, name)
		}
	}
	return out
}
