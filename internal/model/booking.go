package model

import "time"

// Booking statuses.  CANCELLED and COMPLETED are terminal: no lifecycle
// transition leaves them.
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
	BookingCompleted = "COMPLETED"
)

// Payment statuses, tracked independently of the booking status.
const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
	PaymentRefunded  = "REFUNDED"
)

// Booking records a user's purchase of seats on a flight.  The route
// fields (FlightCode, Origin, Destination, DepartureAt) are snapshots
// taken at create or reschedule time so the booking remains readable
// and cancellable even after its flight is administratively deleted.
// TotalPriceCents == PriceCents * Passengers after every create and
// reschedule.
//
// Fields:
//  ID              – primary key identifier.
//  Code            – generated booking code, unique (BK + timestamp + suffix).
//  UserID          – owning user; exactly one user per booking.
//  FlightID        – referenced flight; rewritten on reschedule.
//  Passengers      – seat count, 1 to 9.
//  FareClass       – fare class name booked (snapshot).
//  PriceCents      – per-seat price at booking/reschedule time.
//  TotalPriceCents – PriceCents * Passengers.
//  Status          – PENDING, CONFIRMED, CANCELLED or COMPLETED.
//  PaymentStatus   – PENDING, COMPLETED, FAILED or REFUNDED.
type Booking struct {
	ID              uint64             `json:"id"`                // bookings.id
	Code            string             `json:"code"`              // bookings.code
	UserID          uint64             `json:"user_id"`           // bookings.user_id
	FlightID        uint64             `json:"flight_id"`         // bookings.flight_id
	FlightCode      string             `json:"flight_code"`       // bookings.flight_code
	Origin          string             `json:"origin"`            // bookings.origin
	Destination     string             `json:"destination"`       // bookings.destination
	DepartureAt     time.Time          `json:"departure_at"`      // bookings.departure_at
	Passengers      uint32             `json:"passengers"`        // bookings.passengers
	FareClass       string             `json:"fare_class"`        // bookings.fare_class
	PriceCents      uint32             `json:"price_cents"`       // bookings.price_cents
	TotalPriceCents uint32             `json:"total_price_cents"` // bookings.total_price_cents
	Status          string             `json:"status"`            // bookings.status
	PaymentStatus   string             `json:"payment_status"`    // bookings.payment_status
	PaymentMethod   string             `json:"payment_method"`    // bookings.payment_method
	PassengerList   []BookingPassenger `json:"passenger_list"`    // booking_passengers rows
	CreatedAt       time.Time          `json:"created_at"`        // bookings.created_at
	UpdatedAt       time.Time          `json:"updated_at"`        // bookings.updated_at
}

// BookingPassenger holds the per-passenger details captured with a
// booking: name, age and an optional seat preference such as "window"
// or "aisle".
type BookingPassenger struct {
	ID             uint64 `json:"id"`                        // booking_passengers.id
	BookingID      uint64 `json:"booking_id"`                // booking_passengers.booking_id
	FullName       string `json:"full_name"`                 // booking_passengers.full_name
	Age            uint32 `json:"age"`                       // booking_passengers.age
	SeatPreference string `json:"seat_preference,omitempty"` // booking_passengers.seat_preference
}

// Terminal reports whether the booking status admits no further
// lifecycle transitions.
func (b *Booking) Terminal() bool {
	return b.Status == BookingCancelled || b.Status == BookingCompleted
}
