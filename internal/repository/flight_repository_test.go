package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlightRepoMock(t *testing.T) (*FlightRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewFlightRepo(db), mock
}

func flightRows(seatsAvailable uint32) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "code", "name", "airline", "origin", "destination",
		"departure_at", "arrival_at", "duration", "total_seats",
		"seats_available", "base_price_cents", "status", "gate", "terminal",
		"aircraft", "created_at", "updated_at",
	}).AddRow(
		1, "AI4821", "Morning Express", "Air India", "DEL", "BOM",
		now.Add(24*time.Hour), now.Add(26*time.Hour), "2h 0m", 180,
		seatsAvailable, 3000, "SCHEDULED", "12", "T3",
		"A320", now, now,
	)
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newFlightRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM flights f WHERE f.id = ?")).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrFlightNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDDerivedAvailability(t *testing.T) {
	repo, mock := newFlightRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(SUM(fc.seats_available), 0)")).
		WithArgs(1).
		WillReturnRows(flightRows(150))
	mock.ExpectQuery(regexp.QuoteMeta("FROM fare_classes")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "flight_id", "name", "price_cents", "seats_total", "seats_available"}).
			AddRow(1, 1, "ECONOMY", 3000, 150, 120).
			AddRow(2, 1, "BUSINESS", 9000, 30, 30))

	f, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(150), f.SeatsAvailable)
	require.Len(t, f.Classes, 2)
	assert.Equal(t, "ECONOMY", f.Classes[0].Name)
}

func TestReserveSeatsTx(t *testing.T) {
	repo, mock := newFlightRepoMock(t)

	reserve := regexp.QuoteMeta("SET seats_available = seats_available - ?")

	t.Run("success decrements once", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(reserve).
			WithArgs(2, 1, "ECONOMY", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))

		tx, err := repo.DB().Begin()
		require.NoError(t, err)
		require.NoError(t, repo.ReserveSeatsTx(context.Background(), tx, 1, "ECONOMY", 2))
	})

	t.Run("insufficient seats", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(reserve).
			WithArgs(5, 1, "ECONOMY", 5).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT seats_available FROM fare_classes")).
			WithArgs(1, "ECONOMY").
			WillReturnRows(sqlmock.NewRows([]string{"seats_available"}).AddRow(3))

		tx, err := repo.DB().Begin()
		require.NoError(t, err)
		err = repo.ReserveSeatsTx(context.Background(), tx, 1, "ECONOMY", 5)
		assert.ErrorIs(t, err, ErrInsufficientSeats)
	})

	t.Run("missing class", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(reserve).
			WithArgs(1, 1, "FIRST", 1).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT seats_available FROM fare_classes")).
			WithArgs(1, "FIRST").
			WillReturnRows(sqlmock.NewRows([]string{"seats_available"}))

		tx, err := repo.DB().Begin()
		require.NoError(t, err)
		err = repo.ReserveSeatsTx(context.Background(), tx, 1, "FIRST", 1)
		assert.ErrorIs(t, err, ErrFareClassNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseSeatsTx(t *testing.T) {
	repo, mock := newFlightRepoMock(t)

	release := regexp.QuoteMeta("SET seats_available = LEAST(seats_total, seats_available + ?)")

	t.Run("release restores seats", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(release).
			WithArgs(2, 1, "ECONOMY").
			WillReturnResult(sqlmock.NewResult(0, 1))

		tx, err := repo.DB().Begin()
		require.NoError(t, err)
		ok, err := repo.ReleaseSeatsTx(context.Background(), tx, 1, "ECONOMY", 2)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("missing flight is tolerated", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(release).
			WithArgs(2, 42, "ECONOMY").
			WillReturnResult(sqlmock.NewResult(0, 0))

		tx, err := repo.DB().Begin()
		require.NoError(t, err)
		ok, err := repo.ReleaseSeatsTx(context.Background(), tx, 42, "ECONOMY", 2)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchFiltersAndExcludesCurrentFlight(t *testing.T) {
	repo, mock := newFlightRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("HAVING seats_available >= ?")).
		WithArgs("SCHEDULED", "DEL", "BOM", sqlmock.AnyArg(), 7, uint32(3)).
		WillReturnRows(flightRows(12))
	mock.ExpectQuery(regexp.QuoteMeta("FROM fare_classes")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "flight_id", "name", "price_cents", "seats_total", "seats_available"}).
			AddRow(1, 1, "ECONOMY", 3000, 150, 12))

	flights, err := repo.Search(context.Background(), FlightSearchQuery{
		Origin:      "DEL",
		Destination: "BOM",
		MinSeats:    3,
		ExcludeID:   7,
	})
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.Equal(t, uint32(12), flights[0].SeatsAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
