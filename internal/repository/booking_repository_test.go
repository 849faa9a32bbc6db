package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-booking/internal/model"
)

func newBookingRepoMock(t *testing.T) (*BookingRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBookingRepo(db), mock
}

func bookingRow(status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "code", "user_id", "flight_id", "flight_code",
		"origin", "destination", "departure_at", "passengers", "fare_class",
		"price_cents", "total_price_cents", "status", "payment_status",
		"payment_method", "created_at", "updated_at",
	}).AddRow(
		5, "BKTEST0001", 7, 1, "AI4821",
		"DEL", "BOM", now.Add(24*time.Hour), 3, "ECONOMY",
		3000, 9000, status, "COMPLETED",
		"CARD", now, now,
	)
}

func TestCreateTxSetsID(t *testing.T) {
	repo, mock := newBookingRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnResult(sqlmock.NewResult(5, 1))

	tx, err := repo.db.Begin()
	require.NoError(t, err)

	b := &model.Booking{
		Code:            "BKTEST0001",
		UserID:          7,
		FlightID:        1,
		FlightCode:      "AI4821",
		Origin:          "DEL",
		Destination:     "BOM",
		DepartureAt:     time.Now().UTC().Add(24 * time.Hour),
		Passengers:      3,
		FareClass:       "ECONOMY",
		PriceCents:      3000,
		TotalPriceCents: 9000,
		Status:          model.BookingConfirmed,
		PaymentStatus:   model.PaymentCompleted,
		PaymentMethod:   "CARD",
	}
	require.NoError(t, repo.CreateTx(context.Background(), tx, b))
	assert.Equal(t, uint64(5), b.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetForUpdateTxNotFound(t *testing.T) {
	repo, mock := newBookingRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	tx, err := repo.db.Begin()
	require.NoError(t, err)
	_, err = repo.GetForUpdateTx(context.Background(), tx, 99)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusNotFound(t *testing.T) {
	repo, mock := newBookingRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = ? WHERE id = ?")).
		WithArgs("COMPLETED", 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), 99, model.BookingCompleted)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleTxRewritesSnapshot(t *testing.T) {
	repo, mock := newBookingRepoMock(t)

	dep := time.Now().UTC().Add(48 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET flight_id = ?, flight_code = ?, origin = ?, destination = ?")).
		WithArgs(2, "6E3110", "DEL", "BOM", dep, uint32(4000), uint32(12000), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := repo.db.Begin()
	require.NoError(t, err)

	f := &model.Flight{ID: 2, Code: "6E3110", Origin: "DEL", Destination: "BOM", DepartureAt: dep}
	require.NoError(t, repo.RescheduleTx(context.Background(), tx, 5, f, 4000, 12000))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUserPopulatesPassengers(t *testing.T) {
	repo, mock := newBookingRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.user_id = ? ORDER BY b.created_at DESC")).
		WithArgs(7).
		WillReturnRows(bookingRow("CONFIRMED"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM booking_passengers")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "full_name", "age", "seat_preference"}).
			AddRow(1, 5, "Asha Rao", 34, "window").
			AddRow(2, 5, "Vikram Rao", 36, "").
			AddRow(3, 5, "Meera Rao", 8, "aisle"))

	bookings, err := repo.ListByUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Len(t, bookings[0].PassengerList, 3)
	assert.Equal(t, bookings[0].TotalPriceCents, bookings[0].PriceCents*bookings[0].Passengers)
	assert.NoError(t, mock.ExpectationsWereMet())
}
