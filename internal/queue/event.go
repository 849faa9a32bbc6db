// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedEvent is published after a booking commits. It
// carries enough information for downstream consumers to log, notify,
// or trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID       uint64 `json:"booking_id"`
	BookingCode     string `json:"booking_code"`
	UserID          uint64 `json:"user_id"`
	FlightID        uint64 `json:"flight_id"`
	FlightCode      string `json:"flight_code"`
	Origin          string `json:"origin"`
	Destination     string `json:"destination"`
	DepartureAt     string `json:"departure_at"`
	FareClass       string `json:"fare_class"`
	Passengers      uint32 `json:"passengers"`
	TotalPriceCents uint32 `json:"total_price_cents"`
	ConfirmedAt     string `json:"confirmed_at"`
}

// BookingCancelledEvent is published after a cancellation commits and
// the seats have been returned to the flight.
type BookingCancelledEvent struct {
	BookingID   uint64 `json:"booking_id"`
	BookingCode string `json:"booking_code"`
	UserID      uint64 `json:"user_id"`
	FlightID    uint64 `json:"flight_id"`
	FlightCode  string `json:"flight_code"`
	Passengers  uint32 `json:"passengers"`
	RefundCents uint32 `json:"refund_cents"`
	CancelledAt string `json:"cancelled_at"`
}
