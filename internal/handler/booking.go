package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-booking/internal/model"
	"github.com/iliyamo/flight-booking/internal/queue"
	"github.com/iliyamo/flight-booking/internal/repository"
	queue_publisher "github.com/iliyamo/flight-booking/internal/service"
	"github.com/iliyamo/flight-booking/internal/utils"
)

// BookingHandler implements the booking lifecycle: create, cancel,
// reschedule and the read endpoints.  Every mutation that touches seat
// counters runs in a single transaction; the conditional fare-class
// decrement inside it is the only thing standing between concurrent
// requests and an oversold flight, so failures roll the whole
// transaction back and leave no partial state.
type BookingHandler struct {
	Bookings *repository.BookingRepo
	Flights  *repository.FlightRepo
}

func NewBookingHandler(b *repository.BookingRepo, f *repository.FlightRepo) *BookingHandler {
	return &BookingHandler{Bookings: b, Flights: f}
}

// ----- DTOs -----

type passengerReq struct {
	FullName       string `json:"full_name"`
	Age            uint32 `json:"age"`
	SeatPreference string `json:"seat_preference"`
}

type createBookingReq struct {
	FlightID      uint64         `json:"flight_id"`
	Passengers    uint32         `json:"passengers"`
	FareClass     string         `json:"fare_class"`
	PaymentMethod string         `json:"payment_method"`
	PassengerList []passengerReq `json:"passenger_list"`
}

type rescheduleReq struct {
	NewFlightID uint64 `json:"new_flight_id"`
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func bookingIDParam(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// Create books seats on a flight: POST /v1/bookings.
//
// The flight must be SCHEDULED with a future departure, and the
// requested fare class must exist on it.  Seats are taken with a
// conditional decrement; when it affects zero rows the transaction is
// rolled back, so a failed booking never holds seats.  On success the
// booking is stored CONFIRMED with payment COMPLETED (payment capture
// is out of scope) and a booking.confirmed event is published.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.FlightID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "flight_id required"})
	}
	if req.Passengers < 1 || req.Passengers > 9 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "passengers must be between 1 and 9"})
	}
	fareClass := strings.ToUpper(strings.TrimSpace(req.FareClass))
	if fareClass == "" {
		fareClass = "ECONOMY"
	}
	paymentMethod := strings.ToUpper(strings.TrimSpace(req.PaymentMethod))
	if paymentMethod == "" {
		paymentMethod = "CARD"
	}
	if len(req.PassengerList) > 0 && uint32(len(req.PassengerList)) != req.Passengers {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "passenger_list length must match passengers"})
	}
	for _, p := range req.PassengerList {
		if strings.TrimSpace(p.FullName) == "" || p.Age == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "each passenger needs full_name and age"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tx, err := h.Flights.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	flight, err := h.Flights.GetByIDTx(ctx, tx, req.FlightID)
	if err != nil {
		if err == repository.ErrFlightNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "flight not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !flight.Bookable(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "flight is not open for booking"})
	}

	price, available, err := h.Flights.ClassPriceTx(ctx, tx, flight.ID, fareClass)
	if err != nil {
		if err == repository.ErrFareClassNotFound {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "fare class not available on this flight"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if available < req.Passengers {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": fmt.Sprintf("only %d seat(s) left in %s", available, fareClass),
		})
	}
	if err := h.Flights.ReserveSeatsTx(ctx, tx, flight.ID, fareClass, req.Passengers); err != nil {
		switch err {
		case repository.ErrFareClassNotFound:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "fare class not available on this flight"})
		case repository.ErrInsufficientSeats:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "not enough seats available"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}

	code, err := utils.NewBookingCode()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "generate code failed"})
	}

	booking := &model.Booking{
		Code:            code,
		UserID:          uid,
		FlightID:        flight.ID,
		FlightCode:      flight.Code,
		Origin:          flight.Origin,
		Destination:     flight.Destination,
		DepartureAt:     flight.DepartureAt,
		Passengers:      req.Passengers,
		FareClass:       fareClass,
		PriceCents:      price,
		TotalPriceCents: price * req.Passengers,
		Status:          model.BookingConfirmed,
		PaymentStatus:   model.PaymentCompleted,
		PaymentMethod:   paymentMethod,
	}
	if err := h.Bookings.CreateTx(ctx, tx, booking); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create booking failed"})
	}
	passengers := make([]model.BookingPassenger, 0, len(req.PassengerList))
	for _, p := range req.PassengerList {
		passengers = append(passengers, model.BookingPassenger{
			BookingID:      booking.ID,
			FullName:       strings.TrimSpace(p.FullName),
			Age:            p.Age,
			SeatPreference: strings.ToLower(strings.TrimSpace(p.SeatPreference)),
		})
	}
	if err := h.Bookings.CreatePassengersBulkTx(ctx, tx, passengers); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create booking failed"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	committed = true
	booking.PassengerList = passengers

	// Broker failures must not fail a committed booking.
	go func(b model.Booking) {
		pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pcancel()
		_ = queue_publisher.PublishBookingConfirmed(pctx, queue.BookingConfirmedEvent{
			BookingID:       b.ID,
			BookingCode:     b.Code,
			UserID:          b.UserID,
			FlightID:        b.FlightID,
			FlightCode:      b.FlightCode,
			Origin:          b.Origin,
			Destination:     b.Destination,
			DepartureAt:     b.DepartureAt.UTC().Format(time.RFC3339),
			FareClass:       b.FareClass,
			Passengers:      b.Passengers,
			TotalPriceCents: b.TotalPriceCents,
			ConfirmedAt:     time.Now().UTC().Format(time.RFC3339),
		})
	}(*booking)

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "booking confirmed",
		"booking": booking,
	})
}

// Cancel releases a booking's seats and marks it refunded:
// DELETE /v1/bookings/:id.
//
// Only the owner or an admin may cancel.  CANCELLED and COMPLETED are
// terminal; cancelling them changes nothing and returns 400.  When the
// booked flight or fare class has since been deleted the seat release
// touches zero rows; the cancellation still proceeds and the mismatch
// is logged.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := bookingIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tx, err := h.Flights.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	booking, err := h.Bookings.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		if err == repository.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if booking.UserID != uid && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	switch booking.Status {
	case model.BookingCancelled:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking already cancelled"})
	case model.BookingCompleted:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot cancel a completed booking"})
	}

	if err := h.Bookings.UpdateStatusTx(ctx, tx, booking.ID, model.BookingCancelled, model.PaymentRefunded); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	released, err := h.Flights.ReleaseSeatsTx(ctx, tx, booking.FlightID, booking.FareClass, booking.Passengers)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !released {
		// Flight or class deleted since booking; seats have nowhere to go.
		log.Printf("cancel booking %d: flight %d class %s no longer exists, skipping seat release",
			booking.ID, booking.FlightID, booking.FareClass)
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	committed = true

	go func(b model.Booking) {
		pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pcancel()
		_ = queue_publisher.PublishBookingCancelled(pctx, queue.BookingCancelledEvent{
			BookingID:   b.ID,
			BookingCode: b.Code,
			UserID:      b.UserID,
			FlightID:    b.FlightID,
			FlightCode:  b.FlightCode,
			Passengers:  b.Passengers,
			RefundCents: b.TotalPriceCents,
			CancelledAt: time.Now().UTC().Format(time.RFC3339),
		})
	}(*booking)

	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("booking cancelled; a refund of %s will be processed within 5-7 business days",
			utils.FormatMoney(booking.TotalPriceCents)),
		"refund_cents": booking.TotalPriceCents,
	})
}

// Reschedule moves a booking onto another flight:
// PUT /v1/bookings/:id/reschedule.
//
// The move releases the seats on the old flight (a deleted old flight
// is tolerated), reserves the same fare class on the new one and
// rewrites the booking's flight reference, snapshots and prices — all
// in one transaction, so when the new flight cannot seat the party the
// rollback restores the old flight untouched.  The response reports
// the signed fare difference; no payment is captured or refunded here.
func (h *BookingHandler) Reschedule(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := bookingIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req rescheduleReq
	if err := c.Bind(&req); err != nil || req.NewFlightID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new_flight_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tx, err := h.Flights.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	booking, err := h.Bookings.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		if err == repository.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if booking.UserID != uid && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if booking.Terminal() {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": fmt.Sprintf("cannot reschedule a %s booking", strings.ToLower(booking.Status)),
		})
	}
	if req.NewFlightID == booking.FlightID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking is already on this flight"})
	}

	newFlight, err := h.Flights.GetByIDTx(ctx, tx, req.NewFlightID)
	if err != nil {
		if err == repository.ErrFlightNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "new flight not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	now := time.Now().UTC()
	if !newFlight.DepartureAt.After(now) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new flight has already departed"})
	}
	if newFlight.Status != model.FlightScheduled {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "new flight is not open for booking"})
	}

	released, err := h.Flights.ReleaseSeatsTx(ctx, tx, booking.FlightID, booking.FareClass, booking.Passengers)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !released {
		log.Printf("reschedule booking %d: old flight %d class %s no longer exists, skipping seat release",
			booking.ID, booking.FlightID, booking.FareClass)
	}

	price, available, err := h.Flights.ClassPriceTx(ctx, tx, newFlight.ID, booking.FareClass)
	if err != nil {
		if err == repository.ErrFareClassNotFound {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": fmt.Sprintf("fare class %s not available on the new flight", booking.FareClass),
			})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if available < booking.Passengers {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": fmt.Sprintf("only %d seat(s) left in %s on the new flight", available, booking.FareClass),
		})
	}
	if err := h.Flights.ReserveSeatsTx(ctx, tx, newFlight.ID, booking.FareClass, booking.Passengers); err != nil {
		switch err {
		case repository.ErrFareClassNotFound:
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": fmt.Sprintf("fare class %s not available on the new flight", booking.FareClass),
			})
		case repository.ErrInsufficientSeats:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "not enough seats available on the new flight"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}

	newTotal := price * booking.Passengers
	delta := int64(newTotal) - int64(booking.TotalPriceCents)

	if err := h.Bookings.RescheduleTx(ctx, tx, booking.ID, newFlight, price, newTotal); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	committed = true

	var msg string
	switch {
	case delta > 0:
		msg = fmt.Sprintf("booking rescheduled; an additional charge of %s applies", utils.FormatMoney(uint32(delta)))
	case delta < 0:
		msg = fmt.Sprintf("booking rescheduled; a refund of %s applies", utils.FormatMoney(uint32(-delta)))
	default:
		msg = "booking rescheduled with no fare difference"
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":           msg,
		"booking_id":        booking.ID,
		"old_flight_id":     booking.FlightID,
		"new_flight_id":     newFlight.ID,
		"new_flight_code":   newFlight.Code,
		"price_delta_cents": delta,
		"total_price_cents": newTotal,
	})
}

// RescheduleOptions lists alternative flights a booking could move to:
// GET /v1/bookings/:id/reschedule-options.
//
// Candidates share the booking's route, are SCHEDULED with a strictly
// future departure, can seat the whole party, and exclude the current
// flight.  Read only.
func (h *BookingHandler) RescheduleOptions(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := bookingIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	booking, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if booking.UserID != uid && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	options, err := h.Flights.Search(ctx, repository.FlightSearchQuery{
		Origin:      booking.Origin,
		Destination: booking.Destination,
		MinSeats:    booking.Passengers,
		ExcludeID:   booking.FlightID,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"booking": echo.Map{
			"id":                booking.ID,
			"code":              booking.Code,
			"flight_id":         booking.FlightID,
			"origin":            booking.Origin,
			"destination":       booking.Destination,
			"passengers":        booking.Passengers,
			"fare_class":        booking.FareClass,
			"total_price_cents": booking.TotalPriceCents,
		},
		"options": options,
	})
}

// MyBookings returns the caller's bookings, newest first:
// GET /v1/bookings/my-bookings.
func (h *BookingHandler) MyBookings(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	bookings, err := h.Bookings.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}

// ListAll returns every booking in the system: GET /v1/bookings.
// The route is guarded by the ADMIN role middleware.
func (h *BookingHandler) ListAll(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	bookings, err := h.Bookings.ListAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}

// GetByID returns a single booking: GET /v1/bookings/:id.
// Owner or admin only.
func (h *BookingHandler) GetByID(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := bookingIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	booking, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if booking.UserID != uid && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": booking})
}

// UpdateStatus rewrites the booking status: PUT /v1/bookings/:id.
//
// Cancellation must go through DELETE so seats are restored; this
// endpoint refuses CANCELLED and never touches seat counters.
// Terminal bookings admit no transition at all.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := bookingIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req updateStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	switch status {
	case model.BookingPending, model.BookingConfirmed, model.BookingCompleted:
	case model.BookingCancelled:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "use the cancel endpoint to cancel a booking"})
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	booking, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if booking.UserID != uid && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if booking.Terminal() {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": fmt.Sprintf("cannot update a %s booking", strings.ToLower(booking.Status)),
		})
	}

	if err := h.Bookings.UpdateStatus(ctx, id, status); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "booking updated", "status": status})
}
