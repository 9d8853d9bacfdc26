package booking

import "errors"

// ConflictCode is surfaced to clients so they can refresh availability and
// pick another slot instead of showing a generic failure.
const ConflictCode = "BOOKING_CONFLICT"

var (
	// ErrConflict means the requested interval overlaps an active reservation
	// for the same provider. Detected at commit time, not query time.
	ErrConflict = errors.New("requested time overlaps an existing reservation")

	// ErrNotFound means the referenced reservation does not exist.
	ErrNotFound = errors.New("reservation not found")

	// ErrInvalidState means the lifecycle transition is not legal from the
	// reservation's current status.
	ErrInvalidState = errors.New("transition not allowed from current status")

	// ErrInvalidInterval means the requested interval is malformed
	// (end <= start, or zero/negative duration).
	ErrInvalidInterval = errors.New("invalid time interval")
)
