package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/slotwise/slotwise/internal/booking"
	"github.com/slotwise/slotwise/internal/model"
	"github.com/slotwise/slotwise/internal/outbox"
	"github.com/slotwise/slotwise/internal/platform/postgres"
)

const reservationColumns = `
	id::text, provider_id, customer_id, service_id, start_time, end_time, status,
	cancelled_at, COALESCE(cancel_reason, ''), completed_at, COALESCE(completion_notes, ''),
	created_at, updated_at`

// ReservationRepository implements booking.ReservationStore on Postgres.
//
// The overlap guard runs twice: an application-level check inside the
// transaction (early exit, precise error) and the exclusion constraint on
// (provider_id, tstzrange(start_time, end_time)) for active rows, which is
// the actual serialization point. Two concurrent inserts of overlapping
// intervals lock no common row, so only the constraint can reject the loser:
// its INSERT blocks until the winner commits, then fails with SQLSTATE 23P01.
type ReservationRepository struct {
	pool   *postgres.Pool
	outbox *outbox.Repository
}

func NewReservationRepository(pool *postgres.Pool, outboxRepo *outbox.Repository) *ReservationRepository {
	return &ReservationRepository{pool: pool, outbox: outboxRepo}
}

func (r *ReservationRepository) CreateIfFree(ctx context.Context, res *model.Reservation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	busy, err := r.lockOverlapping(ctx, tx, res.ProviderID, res.StartTime, res.EndTime, "")
	if err != nil {
		return err
	}
	if busy {
		return booking.ErrConflict
	}

	res.ID = uuid.NewString()
	err = tx.QueryRow(ctx, `
		INSERT INTO reservations (id, provider_id, customer_id, service_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, res.ID, res.ProviderID, res.CustomerID, res.ServiceID, res.StartTime, res.EndTime, string(res.Status)).
		Scan(&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if isExclusionViolation(err) {
			return booking.ErrConflict
		}
		return err
	}

	if err := r.emit(ctx, tx, "booking.reservation.created.v1", res); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isExclusionViolation(err) {
			return booking.ErrConflict
		}
		return err
	}
	return nil
}

func (r *ReservationRepository) Get(ctx context.Context, id string) (model.Reservation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	res, err := scanReservation(row)
	if err != nil {
		if isNoRows(err) {
			return model.Reservation{}, booking.ErrNotFound
		}
		return model.Reservation{}, err
	}
	return res, nil
}

func (r *ReservationRepository) MoveIfFree(ctx context.Context, id string, newStart, newEnd time.Time) (model.Reservation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := r.getForUpdate(ctx, tx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if !res.Status.Active() {
		return model.Reservation{}, booking.ErrInvalidState
	}

	busy, err := r.lockOverlapping(ctx, tx, res.ProviderID, newStart, newEnd, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if busy {
		return model.Reservation{}, booking.ErrConflict
	}

	err = tx.QueryRow(ctx, `
		UPDATE reservations
		SET start_time = $2, end_time = $3, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, id, newStart, newEnd).Scan(&res.UpdatedAt)
	if err != nil {
		if isExclusionViolation(err) {
			return model.Reservation{}, booking.ErrConflict
		}
		return model.Reservation{}, err
	}
	res.StartTime = newStart
	res.EndTime = newEnd

	if err := r.emit(ctx, tx, "booking.reservation.rescheduled.v1", &res); err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		if isExclusionViolation(err) {
			return model.Reservation{}, booking.ErrConflict
		}
		return model.Reservation{}, err
	}
	return res, nil
}

func (r *ReservationRepository) Transition(ctx context.Context, id string, apply func(*model.Reservation) error) (model.Reservation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := r.getForUpdate(ctx, tx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	before := res.Status

	if err := apply(&res); err != nil {
		return model.Reservation{}, err
	}
	if res.Status == before {
		// No-op transition (e.g. cancel of an already-cancelled reservation).
		return res, tx.Commit(ctx)
	}

	err = tx.QueryRow(ctx, `
		UPDATE reservations
		SET status = $2,
			cancelled_at = $3,
			cancel_reason = $4,
			completed_at = $5,
			completion_notes = $6,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, id, string(res.Status), res.CancelledAt, res.CancelReason, res.CompletedAt, res.CompletionNotes).
		Scan(&res.UpdatedAt)
	if err != nil {
		return model.Reservation{}, err
	}

	topic := fmt.Sprintf("booking.reservation.%s.v1", res.Status)
	if err := r.emit(ctx, tx, topic, &res); err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

func (r *ReservationRepository) ListActiveOverlapping(ctx context.Context, providerID string, from, to time.Time, excludeID string) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE provider_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_time < $3
			AND end_time > $2
			AND ($4 = '' OR id::text <> $4)
		ORDER BY start_time ASC
	`, providerID, from, to, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func (r *ReservationRepository) ListByProvider(ctx context.Context, providerID string, limit int) ([]model.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE provider_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, providerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

// lockOverlapping locks active reservations intersecting [start,end) under
// half-open semantics (start_time < end AND end_time > start, matching
// availability.Overlaps) and reports whether any exist.
func (r *ReservationRepository) lockOverlapping(ctx context.Context, tx pgx.Tx, providerID string, start, end time.Time, excludeID string) (bool, error) {
	rows, err := tx.Query(ctx, `
		SELECT id
		FROM reservations
		WHERE provider_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_time < $3
			AND end_time > $2
			AND ($4 = '' OR id::text <> $4)
		FOR UPDATE
	`, providerID, start, end, excludeID)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, err
	}
	return found, nil
}

func (r *ReservationRepository) getForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Reservation, error) {
	row := tx.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id)
	res, err := scanReservation(row)
	if err != nil {
		if isNoRows(err) {
			return model.Reservation{}, booking.ErrNotFound
		}
		return model.Reservation{}, err
	}
	return res, nil
}

func (r *ReservationRepository) emit(ctx context.Context, tx pgx.Tx, eventType string, res *model.Reservation) error {
	if r.outbox == nil {
		return nil
	}
	payload, err := json.Marshal(map[string]any{
		"reservation_id": res.ID,
		"provider_id":    res.ProviderID,
		"customer_id":    res.CustomerID,
		"service_id":     res.ServiceID,
		"start_time":     res.StartTime.UTC().Format(time.RFC3339),
		"end_time":       res.EndTime.UTC().Format(time.RFC3339),
		"status":         string(res.Status),
	})
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "reservation",
		AggregateID:   res.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

func scanReservation(row pgx.Row) (model.Reservation, error) {
	var res model.Reservation
	var status string
	var cancelledAt, completedAt *time.Time
	err := row.Scan(
		&res.ID,
		&res.ProviderID,
		&res.CustomerID,
		&res.ServiceID,
		&res.StartTime,
		&res.EndTime,
		&status,
		&cancelledAt,
		&res.CancelReason,
		&completedAt,
		&res.CompletionNotes,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return model.Reservation{}, err
	}
	res.Status = model.ReservationStatus(status)
	res.CancelledAt = cancelledAt
	res.CompletedAt = completedAt
	return res, nil
}

func collectReservations(rows pgx.Rows) ([]model.Reservation, error) {
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
