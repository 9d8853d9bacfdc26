package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/slotwise/slotwise/internal/booking"
	"github.com/slotwise/slotwise/internal/model"
	"github.com/slotwise/slotwise/internal/schedule"
)

// stubReservations drives the handler through the service with canned
// storage behavior; one field flips the conflict path on.
type stubReservations struct {
	conflict     bool
	reservations []model.Reservation
}

func (s *stubReservations) CreateIfFree(_ context.Context, res *model.Reservation) error {
	if s.conflict {
		return booking.ErrConflict
	}
	res.ID = "res-1"
	res.CreatedAt = time.Now().UTC()
	s.reservations = append(s.reservations, *res)
	return nil
}

func (s *stubReservations) Get(_ context.Context, id string) (model.Reservation, error) {
	for _, r := range s.reservations {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Reservation{}, booking.ErrNotFound
}

func (s *stubReservations) MoveIfFree(_ context.Context, id string, _, _ time.Time) (model.Reservation, error) {
	if s.conflict {
		return model.Reservation{}, booking.ErrConflict
	}
	return s.Get(context.Background(), id)
}

func (s *stubReservations) Transition(_ context.Context, id string, apply func(*model.Reservation) error) (model.Reservation, error) {
	for i := range s.reservations {
		if s.reservations[i].ID == id {
			if err := apply(&s.reservations[i]); err != nil {
				return model.Reservation{}, err
			}
			return s.reservations[i], nil
		}
	}
	return model.Reservation{}, booking.ErrNotFound
}

func (s *stubReservations) ListActiveOverlapping(context.Context, string, time.Time, time.Time, string) ([]model.Reservation, error) {
	return nil, nil
}

func (s *stubReservations) ListByProvider(context.Context, string, int) ([]model.Reservation, error) {
	return s.reservations, nil
}

func newBookingHandler(store booking.ReservationStore) *BookingHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := booking.NewService(store, schedule.NewResolver(nil, logger), logger, booking.Config{})
	return NewBookingHandler(svc, logger)
}

func TestBookingCreate(t *testing.T) {
	body := `{"provider_id":"prov-1","customer_id":"cust-1","service_id":"svc-1",` +
		`"start_time":"2026-03-04T10:00:00Z","end_time":"2026-03-04T11:00:00Z"}`

	t.Run("created", func(t *testing.T) {
		h := newBookingHandler(&stubReservations{})
		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(body)))

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body)
		}
		var item reservationItem
		if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if item.ReservationID != "res-1" || item.Status != string(model.StatusConfirmed) {
			t.Errorf("response = %+v", item)
		}
	})

	t.Run("conflict carries the code", func(t *testing.T) {
		h := newBookingHandler(&stubReservations{conflict: true})
		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(body)))

		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
		var resp errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.ErrorCode != booking.ConflictCode {
			t.Errorf("error_code = %q, want %q", resp.ErrorCode, booking.ConflictCode)
		}
	})

	t.Run("end before start", func(t *testing.T) {
		bad := strings.Replace(body, `"end_time":"2026-03-04T11:00:00Z"`, `"end_time":"2026-03-04T09:00:00Z"`, 1)
		h := newBookingHandler(&stubReservations{})
		rec := httptest.NewRecorder()
		h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(bad)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestBookingSlots(t *testing.T) {
	h := newBookingHandler(&stubReservations{})

	t.Run("full day partition", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Slots(rec, httptest.NewRequest(http.MethodGet,
			"/api/v1/slots?provider_id=prov-1&date=2026-03-04&duration_minutes=60", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body)
		}
		var resp slotsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		// The available/booked split depends on the wall clock; the partition
		// itself must be complete either way.
		if got := len(resp.Available) + len(resp.Booked); got != 15 {
			t.Fatalf("partition size = %d, want 15", got)
		}
		all := append(resp.Booked, resp.Available...)
		if all[len(all)-1].Label == "" {
			t.Error("slots must carry an HH:MM label")
		}
	})

	t.Run("missing params", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Slots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/slots?provider_id=prov-1", nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

type stubScheduleStore struct {
	week  schedule.WeeklySchedule
	ok    bool
	saved *schedule.WeeklySchedule
}

func (s *stubScheduleStore) WeeklySchedule(context.Context, string) (schedule.WeeklySchedule, bool, error) {
	return s.week, s.ok, nil
}

func (s *stubScheduleStore) UpsertWeek(_ context.Context, _ string, week schedule.WeeklySchedule) error {
	s.saved = &week
	return nil
}

func TestWorkingHours(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("get serves defaults when unconfigured", func(t *testing.T) {
		h := NewScheduleHandler(&stubScheduleStore{}, logger)
		rec := httptest.NewRecorder()
		h.WorkingHours(rec, httptest.NewRequest(http.MethodGet, "/api/v1/providers/working-hours?provider_id=prov-1", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var body weeklyScheduleBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		mon := body.Days["monday"]
		if !mon.Open || mon.OpenTime != "09:00" || mon.CloseTime != "17:00" {
			t.Errorf("monday = %+v, want default 09:00-17:00", mon)
		}
		if body.Days["sunday"].Open {
			t.Error("sunday should be closed by default")
		}
	})

	t.Run("put replaces the week", func(t *testing.T) {
		store := &stubScheduleStore{}
		h := NewScheduleHandler(store, logger)
		rec := httptest.NewRecorder()
		body := `{"provider_id":"prov-1","days":{"saturday":{"open":true,"open_time":"10:00","close_time":"14:00"}}}`
		h.WorkingHours(rec, httptest.NewRequest(http.MethodPut, "/api/v1/providers/working-hours", strings.NewReader(body)))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body)
		}
		if store.saved == nil {
			t.Fatal("upsert was not called")
		}
		sat := store.saved.Day(time.Saturday)
		if !sat.Open || sat.OpenMinute != 10*60 || sat.CloseMinute != 14*60 {
			t.Errorf("saved saturday = %+v", sat)
		}
		if store.saved.Day(time.Monday).Open {
			t.Error("omitted weekdays must be stored closed")
		}
	})

	t.Run("put rejects inverted hours", func(t *testing.T) {
		h := NewScheduleHandler(&stubScheduleStore{}, logger)
		rec := httptest.NewRecorder()
		body := `{"provider_id":"prov-1","days":{"monday":{"open":true,"open_time":"17:00","close_time":"09:00"}}}`
		h.WorkingHours(rec, httptest.NewRequest(http.MethodPut, "/api/v1/providers/working-hours", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}
