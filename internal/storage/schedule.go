package storage

import (
	"context"
	"time"

	"github.com/slotwise/slotwise/internal/platform/postgres"
	"github.com/slotwise/slotwise/internal/schedule"
)

// ScheduleRepository stores per-weekday working hours as minutes since
// midnight, one row per (provider, weekday).
type ScheduleRepository struct {
	pool *postgres.Pool
}

func NewScheduleRepository(pool *postgres.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) WeeklySchedule(ctx context.Context, providerID string) (schedule.WeeklySchedule, bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, is_open, open_minute, close_minute
		FROM provider_working_hours
		WHERE provider_id = $1
	`, providerID)
	if err != nil {
		return schedule.WeeklySchedule{}, false, err
	}
	defer rows.Close()

	var week schedule.WeeklySchedule
	found := false
	for rows.Next() {
		var weekday int
		var day schedule.DaySchedule
		if err := rows.Scan(&weekday, &day.Open, &day.OpenMinute, &day.CloseMinute); err != nil {
			return schedule.WeeklySchedule{}, false, err
		}
		if weekday < 0 || weekday > 6 {
			continue
		}
		week[weekday] = day
		found = true
	}
	if rows.Err() != nil {
		return schedule.WeeklySchedule{}, false, rows.Err()
	}
	// Weekdays without a row stay closed; the resolver falls back to the
	// default schedule only when no rows exist at all.
	return week, found, nil
}

func (r *ScheduleRepository) UpsertWeek(ctx context.Context, providerID string, week schedule.WeeklySchedule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		day := week.Day(wd)
		if _, err := tx.Exec(ctx, `
			INSERT INTO provider_working_hours (provider_id, weekday, is_open, open_minute, close_minute)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (provider_id, weekday) DO UPDATE
			SET is_open = EXCLUDED.is_open,
				open_minute = EXCLUDED.open_minute,
				close_minute = EXCLUDED.close_minute,
				updated_at = now()
		`, providerID, int(wd), day.Open, day.OpenMinute, day.CloseMinute); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
