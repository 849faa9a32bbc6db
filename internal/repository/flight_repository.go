package repository // repository for flight and fare class persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/flight-booking/internal/model"
)

// FlightRepo encapsulates database operations for flights and their
// fare classes.  Seat capacity lives exclusively in the
// fare_classes.seats_available column; any flight-level availability
// figure is computed as SUM(seats_available) at query time so the two
// can never drift apart.  All timestamps are stored in UTC.
type FlightRepo struct {
	db *sql.DB
}

// NewFlightRepo returns a new FlightRepo bound to the given database.
func NewFlightRepo(db *sql.DB) *FlightRepo { return &FlightRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// spanning flight and booking mutations.
func (r *FlightRepo) DB() *sql.DB { return r.db }

// flightColumns is the shared select list used by every flight query.
// The derived availability is joined in as a correlated subquery.
const flightColumns = `f.id, f.code, f.name, f.airline, f.origin, f.destination,
       f.departure_at, f.arrival_at, f.duration, f.total_seats,
       (SELECT COALESCE(SUM(fc.seats_available), 0) FROM fare_classes fc WHERE fc.flight_id = f.id),
       f.base_price_cents, f.status, f.gate, f.terminal, f.aircraft,
       f.created_at, f.updated_at`

func scanFlight(row interface{ Scan(...any) error }) (*model.Flight, error) {
	var f model.Flight
	var gate, terminal, aircraft sql.NullString
	err := row.Scan(
		&f.ID, &f.Code, &f.Name, &f.Airline, &f.Origin, &f.Destination,
		&f.DepartureAt, &f.ArrivalAt, &f.Duration, &f.TotalSeats,
		&f.SeatsAvailable, &f.BasePriceCents, &f.Status,
		&gate, &terminal, &aircraft,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.Gate = gate.String
	f.Terminal = terminal.String
	f.Aircraft = aircraft.String
	return &f, nil
}

// GetByID returns a flight with its derived availability and fare
// classes.  ErrFlightNotFound is returned when no row matches.
func (r *FlightRepo) GetByID(ctx context.Context, id uint64) (*model.Flight, error) {
	const q = `SELECT ` + flightColumns + ` FROM flights f WHERE f.id = ?`
	f, err := scanFlight(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrFlightNotFound
		}
		return nil, err
	}
	classes, err := r.classesFor(ctx, r.db, []uint64{f.ID})
	if err != nil {
		return nil, err
	}
	f.Classes = classes[f.ID]
	return f, nil
}

// GetByIDTx is GetByID scoped to an open transaction.  It is used by
// booking mutations that need a consistent view of the flight while
// holding row locks on its fare classes.
func (r *FlightRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Flight, error) {
	const q = `SELECT ` + flightColumns + ` FROM flights f WHERE f.id = ?`
	f, err := scanFlight(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrFlightNotFound
		}
		return nil, err
	}
	return f, nil
}

// querier abstracts *sql.DB and *sql.Tx for read helpers shared
// between transactional and plain paths.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// classesFor loads fare classes for a set of flights in a single query
// and groups them by flight ID.
func (r *FlightRepo) classesFor(ctx context.Context, q querier, flightIDs []uint64) (map[uint64][]model.FareClass, error) {
	out := make(map[uint64][]model.FareClass, len(flightIDs))
	if len(flightIDs) == 0 {
		return out, nil
	}
	placeholders := make([]string, 0, len(flightIDs))
	args := make([]any, 0, len(flightIDs))
	for _, id := range flightIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := `SELECT id, flight_id, name, price_cents, seats_total, seats_available
	          FROM fare_classes
	          WHERE flight_id IN (` + strings.Join(placeholders, ",") + `)
	          ORDER BY flight_id, price_cents`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var fc model.FareClass
		if err := rows.Scan(&fc.ID, &fc.FlightID, &fc.Name, &fc.PriceCents, &fc.SeatsTotal, &fc.SeatsAvailable); err != nil {
			return nil, err
		}
		out[fc.FlightID] = append(out[fc.FlightID], fc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a flight and its fare classes.  The generated ID is
// populated on the passed struct.  Class availability defaults to the
// class allocation when the caller left it at zero.
func (r *FlightRepo) Create(ctx context.Context, f *model.Flight) error {
	const q = `INSERT INTO flights
	           (code, name, airline, origin, destination, departure_at, arrival_at,
	            duration, total_seats, base_price_cents, status, gate, terminal, aircraft)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		f.Code, f.Name, f.Airline, f.Origin, f.Destination,
		f.DepartureAt.UTC(), f.ArrivalAt.UTC(), f.Duration,
		f.TotalSeats, f.BasePriceCents, f.Status,
		nullIfEmpty(f.Gate), nullIfEmpty(f.Terminal), nullIfEmpty(f.Aircraft))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = uint64(id)
	if len(f.Classes) == 0 {
		return nil
	}
	// Bulk insert fare classes in one statement.
	query := `INSERT INTO fare_classes (flight_id, name, price_cents, seats_total, seats_available) VALUES `
	args := make([]any, 0, len(f.Classes)*5)
	for i := range f.Classes {
		fc := &f.Classes[i]
		fc.FlightID = f.ID
		if fc.SeatsAvailable == 0 {
			fc.SeatsAvailable = fc.SeatsTotal
		}
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, fc.FlightID, fc.Name, fc.PriceCents, fc.SeatsTotal, fc.SeatsAvailable)
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// Update rewrites the mutable columns of a flight.  Fare class rows
// are left untouched; capacity changes go through dedicated seat
// operations so availability can never be overwritten blindly.
func (r *FlightRepo) Update(ctx context.Context, f *model.Flight) error {
	const q = `UPDATE flights
	           SET name = ?, airline = ?, origin = ?, destination = ?,
	               departure_at = ?, arrival_at = ?, duration = ?,
	               base_price_cents = ?, status = ?, gate = ?, terminal = ?, aircraft = ?
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		f.Name, f.Airline, f.Origin, f.Destination,
		f.DepartureAt.UTC(), f.ArrivalAt.UTC(), f.Duration,
		f.BasePriceCents, f.Status,
		nullIfEmpty(f.Gate), nullIfEmpty(f.Terminal), nullIfEmpty(f.Aircraft),
		f.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFlightNotFound
	}
	return nil
}

// Delete removes a flight and its fare classes.  Bookings referencing
// the flight are intentionally left in place; they carry their own
// route snapshot and cancellation tolerates the missing flight.
func (r *FlightRepo) Delete(ctx context.Context, id uint64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM fare_classes WHERE flight_id = ?`, id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM flights WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFlightNotFound
	}
	return nil
}

// ClassPriceTx returns the per-seat price and current availability of
// a fare class within a transaction.  The SELECT takes a row lock
// (FOR UPDATE) so the subsequent conditional decrement observes the
// same value.  ErrFareClassNotFound is returned when the flight does
// not offer the class.
func (r *FlightRepo) ClassPriceTx(ctx context.Context, tx *sql.Tx, flightID uint64, class string) (price uint32, available uint32, err error) {
	const q = `SELECT price_cents, seats_available FROM fare_classes
	           WHERE flight_id = ? AND name = ? FOR UPDATE`
	err = tx.QueryRowContext(ctx, q, flightID, class).Scan(&price, &available)
	if err == sql.ErrNoRows {
		return 0, 0, ErrFareClassNotFound
	}
	return price, available, err
}

// ReserveSeatsTx atomically takes n seats from a fare class.  The
// decrement is conditioned on seats_available >= n; when no row
// matches, either the class is missing or it ran out of seats, and
// the caller must roll back the surrounding transaction.  This
// compare-and-swap is what serializes concurrent bookings against the
// same class and rules out oversell.
func (r *FlightRepo) ReserveSeatsTx(ctx context.Context, tx *sql.Tx, flightID uint64, class string, n uint32) error {
	const q = `UPDATE fare_classes
	           SET seats_available = seats_available - ?
	           WHERE flight_id = ? AND name = ? AND seats_available >= ?`
	res, err := tx.ExecContext(ctx, q, n, flightID, class, n)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a missing class from a full one.
		var available uint32
		err := tx.QueryRowContext(ctx,
			`SELECT seats_available FROM fare_classes WHERE flight_id = ? AND name = ?`,
			flightID, class).Scan(&available)
		if err == sql.ErrNoRows {
			return ErrFareClassNotFound
		}
		if err != nil {
			return err
		}
		return ErrInsufficientSeats
	}
	return nil
}

// ReleaseSeatsTx restores n seats to a fare class, capped at the class
// allocation so a double release can never push availability past
// seats_total.  It reports whether a row was updated; zero rows means
// the flight or class no longer exists, which callers treat as a
// tolerated inconsistency rather than an error.
func (r *FlightRepo) ReleaseSeatsTx(ctx context.Context, tx *sql.Tx, flightID uint64, class string, n uint32) (bool, error) {
	const q = `UPDATE fare_classes
	           SET seats_available = LEAST(seats_total, seats_available + ?)
	           WHERE flight_id = ? AND name = ?`
	res, err := tx.ExecContext(ctx, q, n, flightID, class)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// FlightSearchQuery carries the optional filters accepted by Search.
// Zero values mean "no filter".  Date restricts departures to the UTC
// day containing it; when unset only future departures are returned.
type FlightSearchQuery struct {
	Origin        string
	Destination   string
	Date          time.Time
	MinPriceCents uint32
	MaxPriceCents uint32
	MinSeats      uint32
	ExcludeID     uint64
	Status        string
}

// Search returns flights matching the query, ascending by departure
// time, each populated with derived availability and fare classes.
// It backs the public listing, the search endpoint and the
// reschedule-options lookup.
func (r *FlightRepo) Search(ctx context.Context, q FlightSearchQuery) ([]model.Flight, error) {
	where := []string{}
	args := []any{}

	status := q.Status
	if status == "" {
		status = model.FlightScheduled
	}
	where = append(where, "f.status = ?")
	args = append(args, status)

	if q.Origin != "" {
		where = append(where, "f.origin = ?")
		args = append(args, strings.ToUpper(strings.TrimSpace(q.Origin)))
	}
	if q.Destination != "" {
		where = append(where, "f.destination = ?")
		args = append(args, strings.ToUpper(strings.TrimSpace(q.Destination)))
	}
	if !q.Date.IsZero() {
		day := q.Date.UTC().Truncate(24 * time.Hour)
		where = append(where, "f.departure_at >= ? AND f.departure_at < ?")
		args = append(args, day, day.Add(24*time.Hour))
	} else {
		where = append(where, "f.departure_at > ?")
		args = append(args, time.Now().UTC())
	}
	if q.MinPriceCents > 0 {
		where = append(where, "f.base_price_cents >= ?")
		args = append(args, q.MinPriceCents)
	}
	if q.MaxPriceCents > 0 {
		where = append(where, "f.base_price_cents <= ?")
		args = append(args, q.MaxPriceCents)
	}
	if q.ExcludeID != 0 {
		where = append(where, "f.id <> ?")
		args = append(args, q.ExcludeID)
	}
	having := ""
	if q.MinSeats > 0 {
		having = ` HAVING seats_available >= ?`
		args = append(args, q.MinSeats)
	}

	query := `SELECT f.id, f.code, f.name, f.airline, f.origin, f.destination,
	                 f.departure_at, f.arrival_at, f.duration, f.total_seats,
	                 COALESCE(SUM(fc.seats_available), 0) AS seats_available,
	                 f.base_price_cents, f.status, f.gate, f.terminal, f.aircraft,
	                 f.created_at, f.updated_at
	          FROM flights f
	          LEFT JOIN fare_classes fc ON fc.flight_id = f.id
	          WHERE ` + strings.Join(where, " AND ") + `
	          GROUP BY f.id` + having + `
	          ORDER BY f.departure_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flights := make([]model.Flight, 0)
	ids := make([]uint64, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		index[f.ID] = len(flights)
		flights = append(flights, *f)
		ids = append(ids, f.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(flights) == 0 {
		return flights, nil
	}
	classes, err := r.classesFor(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for id, cs := range classes {
		flights[index[id]].Classes = cs
	}
	return flights, nil
}

// nullIfEmpty maps "" to NULL for optional text columns.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
