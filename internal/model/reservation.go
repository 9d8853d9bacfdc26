package model

import (
	"fmt"
	"time"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
)

// Active reports whether a reservation in this status holds its time slot.
// Cancelled and completed reservations do not block other bookings.
func (s ReservationStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s ReservationStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransition enforces the lifecycle state machine:
// pending -> confirmed|cancelled, confirmed -> cancelled|completed.
func (s ReservationStatus) CanTransition(to ReservationStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled || to == StatusCompleted
	default:
		return false
	}
}

type Reservation struct {
	ID              string
	ProviderID      string
	CustomerID      string
	ServiceID       string
	StartTime       time.Time
	EndTime         time.Time
	Status          ReservationStatus
	CancelledAt     *time.Time
	CancelReason    string
	CompletedAt     *time.Time
	CompletionNotes string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks the interval invariant shared by create and reschedule.
func (r *Reservation) Validate() error {
	if r.ProviderID == "" || r.CustomerID == "" || r.ServiceID == "" {
		return fmt.Errorf("provider, customer and service ids are required")
	}
	if !r.EndTime.After(r.StartTime) {
		return fmt.Errorf("end time %s must be after start time %s",
			r.EndTime.Format(time.RFC3339), r.StartTime.Format(time.RFC3339))
	}
	return nil
}
