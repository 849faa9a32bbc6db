package model

import "time"

// Flight statuses. Only SCHEDULED flights with a future departure time
// accept bookings.
const (
	FlightScheduled = "SCHEDULED"
	FlightBoarding  = "BOARDING"
	FlightDeparted  = "DEPARTED"
	FlightArrived   = "ARRIVED"
	FlightCancelled = "CANCELLED"
	FlightDelayed   = "DELAYED"
)

// Flight represents a scheduled flight between two airports.  Seat
// capacity is carried entirely by the flight's fare classes; the
// SeatsAvailable field is the sum of the per-class counters computed
// by the repository at read time and is never stored in the flights
// table itself.
//
// Fields:
//  ID             – primary key identifier.
//  Code           – unique flight code (e.g. "AI4821").
//  Name           – marketing name of the flight.
//  Airline        – operating carrier.
//  Origin         – IATA code of the departure airport.
//  Destination    – IATA code of the arrival airport.
//  DepartureAt    – scheduled departure time (UTC).
//  ArrivalAt      – scheduled arrival time (UTC).
//  Duration       – human-readable duration string (e.g. "2h 15m").
//  TotalSeats     – physical seat count of the aircraft.
//  SeatsAvailable – derived sum over fare class availability.
//  BasePriceCents – default fare in cents for the base cabin.
//  Status         – one of the Flight* constants above.
type Flight struct {
	ID             uint64      `json:"id"`              // flights.id
	Code           string      `json:"code"`            // flights.code
	Name           string      `json:"name"`            // flights.name
	Airline        string      `json:"airline"`         // flights.airline
	Origin         string      `json:"origin"`          // flights.origin
	Destination    string      `json:"destination"`     // flights.destination
	DepartureAt    time.Time   `json:"departure_at"`    // flights.departure_at
	ArrivalAt      time.Time   `json:"arrival_at"`      // flights.arrival_at
	Duration       string      `json:"duration"`        // flights.duration
	TotalSeats     uint32      `json:"total_seats"`     // flights.total_seats
	SeatsAvailable uint32      `json:"seats_available"` // SUM(fare_classes.seats_available)
	BasePriceCents uint32      `json:"base_price_cents"` // flights.base_price_cents
	Status         string      `json:"status"`          // flights.status
	Gate           string      `json:"gate,omitempty"`  // flights.gate
	Terminal       string      `json:"terminal,omitempty"` // flights.terminal
	Aircraft       string      `json:"aircraft,omitempty"` // flights.aircraft
	Classes        []FareClass `json:"classes"`         // fare_classes rows for this flight
	CreatedAt      time.Time   `json:"created_at"`      // flights.created_at
	UpdatedAt      time.Time   `json:"updated_at"`      // flights.updated_at
}

// FareClass is a pricing and capacity tier on a flight (economy,
// business...).  SeatsAvailable is the only mutable seat counter in the
// system; booking mutations decrement or restore it under a
// transaction, and 0 <= SeatsAvailable <= SeatsTotal always holds.
type FareClass struct {
	ID             uint64 `json:"id"`              // fare_classes.id
	FlightID       uint64 `json:"flight_id"`       // fare_classes.flight_id
	Name           string `json:"name"`            // fare_classes.name
	PriceCents     uint32 `json:"price_cents"`     // fare_classes.price_cents
	SeatsTotal     uint32 `json:"seats_total"`     // fare_classes.seats_total
	SeatsAvailable uint32 `json:"seats_available"` // fare_classes.seats_available
}

// Bookable reports whether the flight may accept new bookings at the
// given instant.
func (f *Flight) Bookable(now time.Time) bool {
	return f.Status == FlightScheduled && f.DepartureAt.After(now)
}
