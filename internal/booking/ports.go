package booking

import (
	"context"
	"time"

	"github.com/slotwise/slotwise/internal/model"
)

// ReservationStore is the storage port for reservations. Implementations own
// atomicity: the overlap guard and the write must happen inside one
// transaction (or equivalent), so that two concurrent callers can never both
// observe "no conflict" for intervals that do overlap.
type ReservationStore interface {
	// CreateIfFree inserts the reservation unless an active reservation for
	// the same provider overlaps its interval. Returns ErrConflict and writes
	// nothing otherwise. Fills ID/CreatedAt/UpdatedAt on success.
	CreateIfFree(ctx context.Context, res *model.Reservation) error

	// Get loads one reservation. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (model.Reservation, error)

	// MoveIfFree atomically replaces the reservation's interval, re-checking
	// overlap against all other active reservations of the same provider. On
	// conflict the reservation is left completely untouched. Returns
	// ErrNotFound, ErrConflict, or ErrInvalidState (terminal status).
	MoveIfFree(ctx context.Context, id string, newStart, newEnd time.Time) (model.Reservation, error)

	// Transition loads the reservation with a row lock, applies the mutation,
	// and persists the result. A non-nil error from apply aborts the
	// transaction and is returned unchanged.
	Transition(ctx context.Context, id string, apply func(*model.Reservation) error) (model.Reservation, error)

	// ListActiveOverlapping returns PENDING/CONFIRMED reservations for the
	// provider whose intervals intersect [from, to), excluding excludeID when
	// non-empty (a reschedule must not conflict with its own prior interval).
	ListActiveOverlapping(ctx context.Context, providerID string, from, to time.Time, excludeID string) ([]model.Reservation, error)

	// ListByProvider returns recent reservations for a provider, newest first.
	ListByProvider(ctx context.Context, providerID string, limit int) ([]model.Reservation, error)
}
