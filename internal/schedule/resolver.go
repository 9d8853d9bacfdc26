package schedule

import (
	"context"
	"log/slog"
)

// Store loads persisted working hours. The second return value is false when
// the provider has no configured schedule.
type Store interface {
	WeeklySchedule(ctx context.Context, providerID string) (WeeklySchedule, bool, error)
}

// Resolver turns a provider id into a fully populated weekly schedule.
// Read failures degrade to the default schedule instead of failing the
// availability query; what is booked cannot be defaulted, but working hours can.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

func NewResolver(store Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

func (r *Resolver) Resolve(ctx context.Context, providerID string) WeeklySchedule {
	if r.store == nil {
		return Default()
	}
	w, ok, err := r.store.WeeklySchedule(ctx, providerID)
	if err != nil {
		r.logger.Warn("working hours fetch failed; using default schedule",
			"provider_id", providerID, "err", err)
		return Default()
	}
	if !ok {
		return Default()
	}
	if err := w.Validate(); err != nil {
		r.logger.Warn("stored working hours invalid; using default schedule",
			"provider_id", providerID, "err", err)
		return Default()
	}
	return w
}
