package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slotwise/slotwise/internal/schedule"
)

// ScheduleStore is what the handler needs from storage: read the stored
// week (ok=false when unconfigured) and replace it wholesale.
type ScheduleStore interface {
	WeeklySchedule(ctx context.Context, providerID string) (schedule.WeeklySchedule, bool, error)
	UpsertWeek(ctx context.Context, providerID string, week schedule.WeeklySchedule) error
}

type ScheduleHandler struct {
	store  ScheduleStore
	logger *slog.Logger
}

func NewScheduleHandler(store ScheduleStore, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{store: store, logger: logger}
}

type dayScheduleItem struct {
	Open      bool   `json:"open"`
	OpenTime  string `json:"open_time,omitempty"`  // HH:MM
	CloseTime string `json:"close_time,omitempty"` // HH:MM
}

type weeklyScheduleBody struct {
	ProviderID string                     `json:"provider_id"`
	Days       map[string]dayScheduleItem `json:"days"` // keyed by weekday name
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// WorkingHours serves GET (resolved schedule, defaults included) and PUT
// (replace the full week) on /api/v1/providers/working-hours.
func (h *ScheduleHandler) WorkingHours(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.put(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScheduleHandler) get(w http.ResponseWriter, r *http.Request) {
	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	if providerID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "provider_id required"})
		return
	}

	week, ok, err := h.store.WeeklySchedule(r.Context(), providerID)
	if err != nil {
		h.logger.Warn("working hours fetch failed; serving default", "provider_id", providerID, "err", err)
		ok = false
	}
	if !ok {
		week = schedule.Default()
	}

	days := make(map[string]dayScheduleItem, 7)
	for name, wd := range weekdayNames {
		day := week.Day(wd)
		item := dayScheduleItem{Open: day.Open}
		if day.Open {
			item.OpenTime = schedule.FormatMinute(day.OpenMinute)
			item.CloseTime = schedule.FormatMinute(day.CloseMinute)
		}
		days[name] = item
	}
	writeJSON(w, http.StatusOK, weeklyScheduleBody{ProviderID: providerID, Days: days})
}

func (h *ScheduleHandler) put(w http.ResponseWriter, r *http.Request) {
	var body weeklyScheduleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	body.ProviderID = strings.TrimSpace(body.ProviderID)
	if body.ProviderID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "provider_id required"})
		return
	}

	var week schedule.WeeklySchedule
	for name, item := range body.Days {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown weekday " + name})
			return
		}
		day := schedule.DaySchedule{Open: item.Open}
		if item.Open {
			openMin, err := schedule.ParseMinute(item.OpenTime)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			closeMin, err := schedule.ParseMinute(item.CloseTime)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			day.OpenMinute = openMin
			day.CloseMinute = closeMin
		}
		week[int(wd)] = day
	}

	if err := week.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := h.store.UpsertWeek(r.Context(), body.ProviderID, week); err != nil {
		h.logger.Error("working hours upsert failed", "provider_id", body.ProviderID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to save working hours"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
