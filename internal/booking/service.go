package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/slotwise/slotwise/internal/availability"
	"github.com/slotwise/slotwise/internal/model"
	"github.com/slotwise/slotwise/internal/platform/otelx"
	"github.com/slotwise/slotwise/internal/schedule"
)

// DefaultSlotStep is the reference slot granularity.
const DefaultSlotStep = 30 * time.Minute

type Config struct {
	// SlotStep is the candidate-slot granularity. Policy, not derived.
	SlotStep time.Duration
	// Now supplies the past-slot cutoff. Defaults to time.Now in UTC.
	Now func() time.Time
}

// SlotPartition is the full classification of a day's candidate slots:
// Available and Booked are disjoint and together cover every candidate.
type SlotPartition struct {
	Available []availability.Slot
	Booked    []availability.Slot
}

// Service composes working hours, slot generation and the overlap predicate
// into the availability read path, and owns the reservation lifecycle write
// path. The read path is advisory only; the store re-runs the overlap guard
// at the transaction boundary.
type Service struct {
	store  ReservationStore
	hours  *schedule.Resolver
	logger *slog.Logger
	step   time.Duration
	now    func() time.Time
	tracer trace.Tracer
}

func NewService(store ReservationStore, hours *schedule.Resolver, logger *slog.Logger, cfg Config) *Service {
	step := cfg.SlotStep
	if step <= 0 {
		step = DefaultSlotStep
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:  store,
		hours:  hours,
		logger: logger,
		step:   step,
		now:    now,
		tracer: otelx.Tracer("slotwise/booking"),
	}
}

// AvailableSlots computes the bookable/booked partition for one provider and
// date. date's location determines the day boundaries; duration is the
// service length. excludeID, when non-empty, removes one reservation from the
// busy set so a reschedule does not collide with itself.
func (s *Service) AvailableSlots(ctx context.Context, providerID string, date time.Time, duration time.Duration, excludeID string) (SlotPartition, error) {
	ctx, span := s.tracer.Start(ctx, "booking.available_slots")
	defer span.End()

	if duration <= 0 {
		return SlotPartition{}, fmt.Errorf("%w: duration must be positive", ErrInvalidInterval)
	}

	week := s.hours.Resolve(ctx, providerID)
	day := week.Day(date.Weekday())
	if !day.Open {
		return SlotPartition{}, nil
	}

	openAt, closeAt := day.Window(date)
	candidates := availability.Slots(openAt, closeAt, duration, s.step)
	if len(candidates) == 0 {
		return SlotPartition{}, nil
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	reservations, err := s.store.ListActiveOverlapping(ctx, providerID, dayStart, dayStart.Add(24*time.Hour), excludeID)
	if err != nil {
		return SlotPartition{}, fmt.Errorf("load reservations: %w", err)
	}

	busy := make([]availability.Interval, 0, len(reservations))
	for _, r := range reservations {
		busy = append(busy, availability.Interval{Start: r.StartTime, End: r.EndTime})
	}

	avail, booked := availability.Classify(candidates, busy, s.now())
	return SlotPartition{Available: avail, Booked: booked}, nil
}

// Create books [start,end) for the provider, re-validating overlap at the
// transaction boundary. The UI's availability view may be stale; the store is
// the authority.
func (s *Service) Create(ctx context.Context, providerID, customerID, serviceID string, start, end time.Time) (model.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "booking.create")
	defer span.End()

	res := model.Reservation{
		ProviderID: providerID,
		CustomerID: customerID,
		ServiceID:  serviceID,
		StartTime:  start,
		EndTime:    end,
		Status:     model.StatusConfirmed,
	}
	if err := res.Validate(); err != nil {
		return model.Reservation{}, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}

	if err := s.store.CreateIfFree(ctx, &res); err != nil {
		return model.Reservation{}, err
	}
	s.logger.Info("reservation created",
		"reservation_id", res.ID,
		"provider_id", providerID,
		"start", start.UTC().Format(time.RFC3339),
		"end", end.UTC().Format(time.RFC3339),
	)
	return res, nil
}

// Reschedule atomically replaces the reservation's interval, keeping id,
// provider, customer and service. On conflict the reservation is untouched.
func (s *Service) Reschedule(ctx context.Context, id string, newStart, newEnd time.Time) (model.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "booking.reschedule")
	defer span.End()

	if !newEnd.After(newStart) {
		return model.Reservation{}, fmt.Errorf("%w: end must be after start", ErrInvalidInterval)
	}
	res, err := s.store.MoveIfFree(ctx, id, newStart, newEnd)
	if err != nil {
		return model.Reservation{}, err
	}
	s.logger.Info("reservation rescheduled",
		"reservation_id", id,
		"start", newStart.UTC().Format(time.RFC3339),
		"end", newEnd.UTC().Format(time.RFC3339),
	)
	return res, nil
}

// Confirm moves a pending reservation to confirmed.
func (s *Service) Confirm(ctx context.Context, id string) (model.Reservation, error) {
	return s.store.Transition(ctx, id, func(r *model.Reservation) error {
		if r.Status == model.StatusConfirmed {
			return nil
		}
		if !r.Status.CanTransition(model.StatusConfirmed) {
			return ErrInvalidState
		}
		r.Status = model.StatusConfirmed
		return nil
	})
}

// Cancel soft-cancels: the row is retained with status, timestamp and reason,
// preserving history. Cancelling an already-cancelled reservation is a no-op.
// Cancellation never needs an overlap check.
func (s *Service) Cancel(ctx context.Context, id string, reason string) (model.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "booking.cancel")
	defer span.End()

	return s.store.Transition(ctx, id, func(r *model.Reservation) error {
		if r.Status == model.StatusCancelled {
			return nil
		}
		if !r.Status.CanTransition(model.StatusCancelled) {
			return ErrInvalidState
		}
		now := s.now()
		r.Status = model.StatusCancelled
		r.CancelledAt = &now
		r.CancelReason = reason
		return nil
	})
}

// Complete is legal only from confirmed and records the completion time plus
// optional free-text notes.
func (s *Service) Complete(ctx context.Context, id string, notes string) (model.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "booking.complete")
	defer span.End()

	return s.store.Transition(ctx, id, func(r *model.Reservation) error {
		if !r.Status.CanTransition(model.StatusCompleted) || r.Status != model.StatusConfirmed {
			return ErrInvalidState
		}
		now := s.now()
		r.Status = model.StatusCompleted
		r.CompletedAt = &now
		r.CompletionNotes = notes
		return nil
	})
}

// List returns recent reservations for a provider.
func (s *Service) List(ctx context.Context, providerID string, limit int) ([]model.Reservation, error) {
	return s.store.ListByProvider(ctx, providerID, limit)
}
