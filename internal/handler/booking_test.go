package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-booking/internal/model"
	"github.com/iliyamo/flight-booking/internal/repository"
)

func newBookingHandlerMock(t *testing.T) (*BookingHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBookingHandler(repository.NewBookingRepo(db), repository.NewFlightRepo(db)), mock
}

// newRequestCtx builds an authenticated echo context the way JWTAuth
// leaves it: numeric claims decode as float64.
func newRequestCtx(method, target, body string, userID uint64, role string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", float64(userID))
	c.Set("role", role)
	return c, rec
}

func flightRowsAt(id uint64, code string, dep time.Time, seats uint32, status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "code", "name", "airline", "origin", "destination",
		"departure_at", "arrival_at", "duration", "total_seats",
		"seats_available", "base_price_cents", "status", "gate", "terminal",
		"aircraft", "created_at", "updated_at",
	}).AddRow(
		id, code, "Morning Express", "Air India", "DEL", "BOM",
		dep, dep.Add(2*time.Hour), "2h 0m", 180,
		seats, 3000, status, nil, nil, nil, now, now,
	)
}

func bookingRowWith(id, userID, flightID uint64, passengers, price, total uint32, status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "code", "user_id", "flight_id", "flight_code",
		"origin", "destination", "departure_at", "passengers", "fare_class",
		"price_cents", "total_price_cents", "status", "payment_status",
		"payment_method", "created_at", "updated_at",
	}).AddRow(
		id, "BKTEST0001", userID, flightID, "AI4821",
		"DEL", "BOM", now.Add(24*time.Hour), passengers, "ECONOMY",
		price, total, status, "COMPLETED", "CARD", now, now,
	)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateBookingComputesTotal(t *testing.T) {
	h, mock := newBookingHandlerMock(t)
	dep := time.Now().UTC().Add(24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM flights f WHERE f.id = ?")).
		WithArgs(1).
		WillReturnRows(flightRowsAt(1, "AI4821", dep, 10, model.FlightScheduled))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT price_cents, seats_available")).
		WithArgs(1, "ECONOMY").
		WillReturnRows(sqlmock.NewRows([]string{"price_cents", "seats_available"}).AddRow(3000, 10))
	mock.ExpectExec(regexp.QuoteMeta("seats_available - ?")).
		WithArgs(uint32(2), 1, "ECONOMY", uint32(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO booking_passengers")).
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	body := `{"flight_id":1,"passengers":2,"fare_class":"economy","payment_method":"card",
		"passenger_list":[{"full_name":"Asha Rao","age":34,"seat_preference":"window"},
		                  {"full_name":"Vikram Rao","age":36}]}`
	c, rec := newRequestCtx(http.MethodPost, "/v1/bookings", body, 7, model.RoleCustomer)

	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decodeBody(t, rec)
	booking := resp["booking"].(map[string]any)
	assert.Equal(t, float64(3000), booking["price_cents"])
	assert.Equal(t, float64(6000), booking["total_price_cents"])
	assert.Equal(t, model.BookingConfirmed, booking["status"])
	assert.Equal(t, model.PaymentCompleted, booking["payment_status"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingInsufficientSeatsMutatesNothing(t *testing.T) {
	h, mock := newBookingHandlerMock(t)
	dep := time.Now().UTC().Add(24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM flights f WHERE f.id = ?")).
		WithArgs(1).
		WillReturnRows(flightRowsAt(1, "AI4821", dep, 1, model.FlightScheduled))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT price_cents, seats_available")).
		WithArgs(1, "ECONOMY").
		WillReturnRows(sqlmock.NewRows([]string{"price_cents", "seats_available"}).AddRow(3000, 1))
	mock.ExpectRollback()

	body := `{"flight_id":1,"passengers":2,"fare_class":"ECONOMY"}`
	c, rec := newRequestCtx(http.MethodPost, "/v1/bookings", body, 7, model.RoleCustomer)

	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "only 1 seat(s) left in ECONOMY")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingRejectsDepartedFlight(t *testing.T) {
	h, mock := newBookingHandlerMock(t)
	dep := time.Now().UTC().Add(-time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM flights f WHERE f.id = ?")).
		WithArgs(1).
		WillReturnRows(flightRowsAt(1, "AI4821", dep, 10, model.FlightScheduled))
	mock.ExpectRollback()

	body := `{"flight_id":1,"passengers":1}`
	c, rec := newRequestCtx(http.MethodPost, "/v1/bookings", body, 7, model.RoleCustomer)

	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not open for booking")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingPassengerCountBounds(t *testing.T) {
	h, _ := newBookingHandlerMock(t)

	for _, body := range []string{
		`{"flight_id":1,"passengers":0}`,
		`{"flight_id":1,"passengers":10}`,
	} {
		c, rec := newRequestCtx(http.MethodPost, "/v1/bookings", body, 7, model.RoleCustomer)
		require.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "between 1 and 9")
	}
}

func TestCancelBookingRestoresSeats(t *testing.T) {
	h, mock := newBookingHandlerMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings b WHERE b.id = ? FOR UPDATE")).
		WithArgs(5).
		WillReturnRows(bookingRowWith(5, 7, 1, 2, 3000, 6000, model.BookingConfirmed))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = ?, payment_status = ?")).
		WithArgs(model.BookingCancelled, model.PaymentRefunded, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("LEAST(seats_total, seats_available + ?)")).
		WithArgs(uint32(2), 1, "ECONOMY").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := newRequestCtx(http.MethodDelete, "/v1/bookings/5", "", 7, model.RoleCustomer)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.Cancel(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "5-7 business days")
	assert.Contains(t, rec.Body.String(), "₹60.00")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelTerminalBooking(t *testing.T) {
	h, mock := newBookingHandlerMock(t)

	cases := []struct {
		status  string
		message string
	}{
		{model.BookingCancelled, "already cancelled"},
		{model.BookingCompleted, "cannot cancel a completed booking"},
	}
	for _, tc := range cases {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM bookings b WHERE b.id = ? FOR UPDATE")).
			WithArgs(5).
			WillReturnRows(bookingRowWith(5, 7, 1, 2, 3000, 6000, tc.status))
		mock.ExpectRollback()

		c, rec := newRequestCtx(http.MethodDelete, "/v1/bookings/5", "", 7, model.RoleCustomer)
		c.SetParamNames("id")
		c.SetParamValues("5")

		require.NoError(t, h.Cancel(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), tc.message)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelForbiddenForOtherUser(t *testing.T) {
	h, mock := newBookingHandlerMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings b WHERE b.id = ? FOR UPDATE")).
		WithArgs(5).
		WillReturnRows(bookingRowWith(5, 7, 1, 2, 3000, 6000, model.BookingConfirmed))
	mock.ExpectRollback()

	c, rec := newRequestCtx(http.MethodDelete, "/v1/bookings/5", "", 8, model.RoleCustomer)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleSameFlightRejected(t *testing.T) {
	h, mock := newBookingHandlerMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings b WHERE b.id = ? FOR UPDATE")).
		WithArgs(5).
		WillReturnRows(bookingRowWith(5, 7, 1, 3, 3000, 9000, model.BookingConfirmed))
	mock.ExpectRollback()

	body := `{"new_flight_id":1}`
	c, rec := newRequestCtx(http.MethodPut, "/v1/bookings/5/reschedule", body, 7, model.RoleCustomer)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.Reschedule(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already on this flight")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReschedulePriceDelta(t *testing.T) {
	h, mock := newBookingHandlerMock(t)
	dep := time.Now().UTC().Add(48 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings b WHERE b.id = ? FOR UPDATE")).
		WithArgs(5).
		WillReturnRows(bookingRowWith(5, 7, 1, 3, 3000, 9000, model.BookingConfirmed))
	mock.ExpectQuery(regexp.QuoteMeta("FROM flights f WHERE f.id = ?")).
		WithArgs(2).
		WillReturnRows(flightRowsAt(2, "6E3110", dep, 20, model.FlightScheduled))
	mock.ExpectExec(regexp.QuoteMeta("LEAST(seats_total, seats_available + ?)")).
		WithArgs(uint32(3), 1, "ECONOMY").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT price_cents, seats_available")).
		WithArgs(2, "ECONOMY").
		WillReturnRows(sqlmock.NewRows([]string{"price_cents", "seats_available"}).AddRow(4000, 20))
	mock.ExpectExec(regexp.QuoteMeta("seats_available - ?")).
		WithArgs(uint32(3), 2, "ECONOMY", uint32(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET flight_id = ?")).
		WithArgs(2, "6E3110", "DEL", "BOM", sqlmock.AnyArg(), uint32(4000), uint32(12000), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	body := `{"new_flight_id":2}`
	c, rec := newRequestCtx(http.MethodPut, "/v1/bookings/5/reschedule", body, 7, model.RoleCustomer)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.Reschedule(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody(t, rec)
	assert.Equal(t, float64(3000), resp["price_delta_cents"])
	assert.Equal(t, float64(12000), resp["total_price_cents"])
	assert.Contains(t, resp["message"], "additional charge of ₹30.00")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleInsufficientSeatsRollsBack(t *testing.T) {
	h, mock := newBookingHandlerMock(t)
	dep := time.Now().UTC().Add(48 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings b WHERE b.id = ? FOR UPDATE")).
		WithArgs(5).
		WillReturnRows(bookingRowWith(5, 7, 1, 3, 3000, 9000, model.BookingConfirmed))
	mock.ExpectQuery(regexp.QuoteMeta("FROM flights f WHERE f.id = ?")).
		WithArgs(2).
		WillReturnRows(flightRowsAt(2, "6E3110", dep, 1, model.FlightScheduled))
	mock.ExpectExec(regexp.QuoteMeta("LEAST(seats_total, seats_available + ?)")).
		WithArgs(uint32(3), 1, "ECONOMY").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT price_cents, seats_available")).
		WithArgs(2, "ECONOMY").
		WillReturnRows(sqlmock.NewRows([]string{"price_cents", "seats_available"}).AddRow(4000, 1))
	mock.ExpectRollback()

	body := `{"new_flight_id":2}`
	c, rec := newRequestCtx(http.MethodPut, "/v1/bookings/5/reschedule", body, 7, model.RoleCustomer)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.Reschedule(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "only 1 seat(s) left in ECONOMY")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleTerminalBooking(t *testing.T) {
	h, mock := newBookingHandlerMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings b WHERE b.id = ? FOR UPDATE")).
		WithArgs(5).
		WillReturnRows(bookingRowWith(5, 7, 1, 3, 3000, 9000, model.BookingCancelled))
	mock.ExpectRollback()

	body := `{"new_flight_id":2}`
	c, rec := newRequestCtx(http.MethodPut, "/v1/bookings/5/reschedule", body, 7, model.RoleCustomer)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.Reschedule(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cannot reschedule a cancelled booking")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusRejectsCancellation(t *testing.T) {
	h, _ := newBookingHandlerMock(t)

	body := `{"status":"CANCELLED"}`
	c, rec := newRequestCtx(http.MethodPut, "/v1/bookings/5", body, 7, model.RoleCustomer)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.UpdateStatus(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "use the cancel endpoint")
}

func TestRescheduleOptionsFilters(t *testing.T) {
	h, mock := newBookingHandlerMock(t)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings b WHERE b.id = ?")).
		WithArgs(5).
		WillReturnRows(bookingRowWith(5, 7, 1, 3, 3000, 9000, model.BookingConfirmed))
	mock.ExpectQuery(regexp.QuoteMeta("FROM booking_passengers")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "full_name", "age", "seat_preference"}))
	mock.ExpectQuery(regexp.QuoteMeta("HAVING seats_available >= ?")).
		WithArgs(model.FlightScheduled, "DEL", "BOM", sqlmock.AnyArg(), 1, uint32(3)).
		WillReturnRows(flightRowsAt(2, "6E3110", now.Add(48*time.Hour), 20, model.FlightScheduled))
	mock.ExpectQuery(regexp.QuoteMeta("FROM fare_classes")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "flight_id", "name", "price_cents", "seats_total", "seats_available"}).
			AddRow(9, 2, "ECONOMY", 4000, 100, 20))

	c, rec := newRequestCtx(http.MethodGet, "/v1/bookings/5/reschedule-options", "", 7, model.RoleCustomer)
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.RescheduleOptions(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody(t, rec)
	options := resp["options"].([]any)
	require.Len(t, options, 1)
	first := options[0].(map[string]any)
	assert.Equal(t, float64(2), first["id"])
	booking := resp["booking"].(map[string]any)
	assert.Equal(t, float64(3), booking["passengers"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
