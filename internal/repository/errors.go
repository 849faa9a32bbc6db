// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios and map
// them to HTTP status codes.
package repository

import "errors"

// ErrFlightNotFound is returned when a flight lookup matches no row.
var ErrFlightNotFound = errors.New("flight not found")

// ErrBookingNotFound is returned when a booking lookup matches no row.
var ErrBookingNotFound = errors.New("booking not found")

// ErrFareClassNotFound is returned when the requested fare class does
// not exist on the flight. Seat accounting always debits a concrete
// fare class row, so there is no base-price fallback path.
var ErrFareClassNotFound = errors.New("fare class not found")

// ErrInsufficientSeats is returned when a conditional seat reservation
// fails because the fare class no longer has enough available seats.
// The whole surrounding transaction must be rolled back so no partial
// mutation survives.
var ErrInsufficientSeats = errors.New("insufficient seats")
