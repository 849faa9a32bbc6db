package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/flight-booking/internal/model"
)

// BookingRepo provides CRUD operations for bookings and their
// passenger rows.  A booking snapshots its route and pricing at create
// and reschedule time; reads therefore never depend on the flights
// table, which keeps bookings usable after a flight is deleted.  All
// timestamp fields are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `b.id, b.code, b.user_id, b.flight_id, b.flight_code,
       b.origin, b.destination, b.departure_at, b.passengers, b.fare_class,
       b.price_cents, b.total_price_cents, b.status, b.payment_status,
       b.payment_method, b.created_at, b.updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID, &b.Code, &b.UserID, &b.FlightID, &b.FlightCode,
		&b.Origin, &b.Destination, &b.DepartureAt, &b.Passengers, &b.FareClass,
		&b.PriceCents, &b.TotalPriceCents, &b.Status, &b.PaymentStatus,
		&b.PaymentMethod, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateTx inserts a new booking within the scope of an existing
// transaction and populates the generated ID on the passed struct.
// The caller must commit or roll back the transaction.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings
	           (code, user_id, flight_id, flight_code, origin, destination, departure_at,
	            passengers, fare_class, price_cents, total_price_cents,
	            status, payment_status, payment_method)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		b.Code, b.UserID, b.FlightID, b.FlightCode, b.Origin, b.Destination,
		b.DepartureAt.UTC(), b.Passengers, b.FareClass, b.PriceCents,
		b.TotalPriceCents, b.Status, b.PaymentStatus, b.PaymentMethod)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// CreatePassengersBulkTx inserts the per-passenger rows of a booking
// in a single statement.  Passing an empty slice has no effect.
func (r *BookingRepo) CreatePassengersBulkTx(ctx context.Context, tx *sql.Tx, passengers []model.BookingPassenger) error {
	if len(passengers) == 0 {
		return nil
	}
	query := `INSERT INTO booking_passengers (booking_id, full_name, age, seat_preference) VALUES `
	args := make([]any, 0, len(passengers)*4)
	for i, p := range passengers {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, p.BookingID, p.FullName, p.Age, p.SeatPreference)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetByID returns a booking with its passenger rows.
// ErrBookingNotFound is returned when no row matches.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	passengers, err := r.passengersFor(ctx, []uint64{b.ID})
	if err != nil {
		return nil, err
	}
	b.PassengerList = passengers[b.ID]
	return b, nil
}

// GetForUpdateTx loads a booking inside a transaction with a row lock
// so concurrent lifecycle operations on the same booking serialize.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = ? FOR UPDATE`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

// UpdateStatusTx rewrites the booking and payment status columns
// within a transaction.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status, paymentStatus string) error {
	const q = `UPDATE bookings SET status = ?, payment_status = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, status, paymentStatus, id)
	return err
}

// UpdateStatus is the non-transactional variant used by the plain
// status-update endpoint, which touches no seat counters.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	const q = `UPDATE bookings SET status = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// RescheduleTx rewrites the flight reference, route snapshot and
// pricing of a booking after a successful seat move.  It runs inside
// the same transaction as the seat release/reserve pair so either all
// three mutations commit or none do.
func (r *BookingRepo) RescheduleTx(ctx context.Context, tx *sql.Tx, id uint64, f *model.Flight, priceCents, totalPriceCents uint32) error {
	const q = `UPDATE bookings
	           SET flight_id = ?, flight_code = ?, origin = ?, destination = ?,
	               departure_at = ?, price_cents = ?, total_price_cents = ?
	           WHERE id = ?`
	_, err := tx.ExecContext(ctx, q,
		f.ID, f.Code, f.Origin, f.Destination, f.DepartureAt.UTC(),
		priceCents, totalPriceCents, id)
	return err
}

// ListByUser returns all bookings of a user, newest first, with
// passenger rows populated by one batch query.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings b
	           WHERE b.user_id = ? ORDER BY b.created_at DESC`
	return r.list(ctx, q, userID)
}

// ListAll returns every booking, newest first.  Admin only.
func (r *BookingRepo) ListAll(ctx context.Context) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings b ORDER BY b.created_at DESC`
	return r.list(ctx, q)
}

func (r *BookingRepo) list(ctx context.Context, query string, args ...any) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]model.Booking, 0)
	ids := make([]uint64, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		index[b.ID] = len(bookings)
		bookings = append(bookings, *b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return bookings, nil
	}
	passengers, err := r.passengersFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, ps := range passengers {
		bookings[index[id]].PassengerList = ps
	}
	return bookings, nil
}

// passengersFor fetches passenger rows for a set of bookings in one
// query and groups them by booking ID.
func (r *BookingRepo) passengersFor(ctx context.Context, bookingIDs []uint64) (map[uint64][]model.BookingPassenger, error) {
	out := make(map[uint64][]model.BookingPassenger, len(bookingIDs))
	if len(bookingIDs) == 0 {
		return out, nil
	}
	placeholders := make([]string, 0, len(bookingIDs))
	args := make([]any, 0, len(bookingIDs))
	for _, id := range bookingIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := `SELECT id, booking_id, full_name, age, COALESCE(seat_preference, '')
	          FROM booking_passengers
	          WHERE booking_id IN (` + strings.Join(placeholders, ",") + `)
	          ORDER BY booking_id, id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p model.BookingPassenger
		if err := rows.Scan(&p.ID, &p.BookingID, &p.FullName, &p.Age, &p.SeatPreference); err != nil {
			return nil, err
		}
		out[p.BookingID] = append(out[p.BookingID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
