package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utsavlook/booking-functions/internal/model"
)

// MySQL error numbers that mean "run the transaction again".
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// BookingRepo stores bookings in MySQL. Assigned artists live in the
// booking_artists table, one row per artist. All timestamps are stored
// in UTC.
type BookingRepo struct {
	db     *sql.DB
	policy RetryPolicy
	tracer trace.Tracer
}

// NewBookingRepo returns a BookingRepo bound to db. Conflicting claim
// transactions are re-run according to policy.
func NewBookingRepo(db *sql.DB, policy RetryPolicy) *BookingRepo {
	return &BookingRepo{
		db:     db,
		policy: policy.normalized(),
		tracer: otel.Tracer("utsavlook/repository"),
	}
}

// DB exposes the underlying sql.DB for health checks and shutdown.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `id, customer_id, status, event_date, cancellation_reason,
                        service_category, package_name, location, advance_amount_paise,
                        created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (*model.Booking, error) {
	var b model.Booking
	var status string
	var reason sql.NullString
	if err := s.Scan(
		&b.ID, &b.CustomerID, &status, &b.EventDate, &reason,
		&b.ServiceCategory, &b.PackageName, &b.Location, &b.AdvanceAmountPaise,
		&b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	if reason.Valid {
		r := reason.String
		b.CancellationReason = &r
	}
	b.EventDate = b.EventDate.UTC()
	b.AssignedArtistIDs = []string{}
	return &b, nil
}

// Create inserts a new booking together with any pre-assigned artists.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const q = `INSERT INTO bookings (id, customer_id, status, event_date, cancellation_reason,
                                     service_category, package_name, location, advance_amount_paise,
                                     created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q,
		b.ID, b.CustomerID, string(b.Status), b.EventDate.UTC(), nullString(b.CancellationReason),
		b.ServiceCategory, b.PackageName, b.Location, b.AdvanceAmountPaise,
		b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	if err := insertArtistsTx(ctx, tx, b.ID, b.AssignedArtistIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}
	committed = true
	return nil
}

// GetByID loads a booking and its assigned artists outside of any
// transaction. It returns ErrBookingNotFound when no row matches.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("select booking: %w", err)
	}
	if err := r.loadArtists(ctx, r.db, []*model.Booking{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// ListByCustomer returns all bookings owned by customerID, newest first.
// When none exist, an empty slice is returned.
func (r *BookingRepo) ListByCustomer(ctx context.Context, customerID string) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE customer_id = ? ORDER BY created_at DESC`
	return r.list(ctx, q, customerID)
}

// ListOpen returns bookings still waiting for an artist whose event is
// after the given time, soonest event first.
func (r *BookingRepo) ListOpen(ctx context.Context, after time.Time, limit int) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings
          WHERE status = ? AND event_date > ?
          ORDER BY event_date ASC
          LIMIT ?`
	return r.list(ctx, q, string(model.StatusNeedsAssignment), after.UTC(), limit)
}

func (r *BookingRepo) list(ctx context.Context, q string, args ...any) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()
	ptrs := make([]*model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		ptrs = append(ptrs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	if err := r.loadArtists(ctx, r.db, ptrs); err != nil {
		return nil, err
	}
	out := make([]model.Booking, 0, len(ptrs))
	for _, b := range ptrs {
		out = append(out, *b)
	}
	return out, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadArtists fills AssignedArtistIDs for all bookings with a single query.
func (r *BookingRepo) loadArtists(ctx context.Context, qr querier, bookings []*model.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	index := make(map[string]*model.Booking, len(bookings))
	ids := make([]any, 0, len(bookings))
	placeholders := make([]string, 0, len(bookings))
	for _, b := range bookings {
		index[b.ID] = b
		ids = append(ids, b.ID)
		placeholders = append(placeholders, "?")
	}
	q := `SELECT booking_id, artist_id FROM booking_artists
          WHERE booking_id IN (` + strings.Join(placeholders, ",") + `)
          ORDER BY booking_id, artist_id`
	rows, err := qr.QueryContext(ctx, q, ids...)
	if err != nil {
		return fmt.Errorf("select artists: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var bookingID, artistID string
		if err := rows.Scan(&bookingID, &artistID); err != nil {
			return fmt.Errorf("scan artist: %w", err)
		}
		if b, ok := index[bookingID]; ok {
			b.AssignedArtistIDs = append(b.AssignedArtistIDs, artistID)
		}
	}
	return rows.Err()
}

// MarkCancelled sets the booking's status to Cancelled and records the
// reason in a single statement. It is deliberately not transactional.
// The DSN must enable clientFoundRows so that re-cancelling an already
// cancelled booking still reports a matched row.
func (r *BookingRepo) MarkCancelled(ctx context.Context, id, reason string) error {
	ctx, span := r.tracer.Start(ctx, "repository.mark_cancelled",
		trace.WithAttributes(attribute.String("booking.id", id)))
	defer span.End()

	const q = `UPDATE bookings SET status = ?, cancellation_reason = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, string(model.StatusCancelled), reason, time.Now().UTC(), id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("update booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// RunInTx runs fn inside a MySQL transaction. Bookings read through the
// transaction are locked with SELECT ... FOR UPDATE, so a concurrent
// claim on the same booking waits and then observes the committed state.
// Deadlocks and lock wait timeouts are retried under the repo's policy;
// any other error from fn is returned unchanged.
func (r *BookingRepo) RunInTx(ctx context.Context, fn TxFunc) error {
	ctx, span := r.tracer.Start(ctx, "repository.run_in_tx")
	defer span.End()

	attempts := 0
	err := runWithRetry(ctx, r.policy, func() error {
		attempts++
		return classifyMySQL(r.runOnce(ctx, fn))
	})
	span.SetAttributes(attribute.Int("tx.attempts", attempts))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (r *BookingRepo) runOnce(ctx context.Context, fn TxFunc) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &mysqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// classifyMySQL turns retryable MySQL failures into ErrConflict.
func classifyMySQL(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && (me.Number == mysqlErrDeadlock || me.Number == mysqlErrLockWaitTimeout) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// mysqlTx implements BookingTx on top of a *sql.Tx.
type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) Get(ctx context.Context, id string) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
	b, err := scanBooking(t.tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("select booking for update: %w", err)
	}
	rows, err := t.tx.QueryContext(ctx,
		`SELECT artist_id FROM booking_artists WHERE booking_id = ? ORDER BY artist_id`, id)
	if err != nil {
		return nil, fmt.Errorf("select artists: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var artistID string
		if err := rows.Scan(&artistID); err != nil {
			return nil, fmt.Errorf("scan artist: %w", err)
		}
		b.AssignedArtistIDs = append(b.AssignedArtistIDs, artistID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

// Update writes the mutable fields of b and replaces its artist set.
func (t *mysqlTx) Update(ctx context.Context, b *model.Booking) error {
	const q = `UPDATE bookings SET status = ?, cancellation_reason = ?, updated_at = ? WHERE id = ?`
	if _, err := t.tx.ExecContext(ctx, q,
		string(b.Status), nullString(b.CancellationReason), time.Now().UTC(), b.ID,
	); err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM booking_artists WHERE booking_id = ?`, b.ID); err != nil {
		return fmt.Errorf("clear artists: %w", err)
	}
	return insertArtistsTx(ctx, t.tx, b.ID, b.AssignedArtistIDs)
}

// insertArtistsTx inserts one booking_artists row per artist in a single
// statement. Passing an empty slice has no effect.
func insertArtistsTx(ctx context.Context, tx *sql.Tx, bookingID string, artistIDs []string) error {
	if len(artistIDs) == 0 {
		return nil
	}
	query := `INSERT INTO booking_artists (booking_id, artist_id) VALUES `
	args := make([]any, 0, len(artistIDs)*2)
	for i, id := range artistIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, bookingID, id)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert artists: %w", err)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
