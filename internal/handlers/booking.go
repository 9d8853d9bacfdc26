package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slotwise/slotwise/internal/availability"
	"github.com/slotwise/slotwise/internal/booking"
	"github.com/slotwise/slotwise/internal/model"
)

type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type slotItem struct {
	Label     string `json:"label"` // HH:MM start, UTC
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type slotsResponse struct {
	Available []slotItem `json:"available"`
	Booked    []slotItem `json:"booked"`
}

type reservationItem struct {
	ReservationID   string `json:"reservation_id"`
	ProviderID      string `json:"provider_id"`
	CustomerID      string `json:"customer_id"`
	ServiceID       string `json:"service_id"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Status          string `json:"status"`
	CancelledAt     string `json:"cancelled_at,omitempty"`
	CancelReason    string `json:"cancel_reason,omitempty"`
	CompletedAt     string `json:"completed_at,omitempty"`
	CompletionNotes string `json:"completion_notes,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func toReservationItem(r model.Reservation) reservationItem {
	item := reservationItem{
		ReservationID:   r.ID,
		ProviderID:      r.ProviderID,
		CustomerID:      r.CustomerID,
		ServiceID:       r.ServiceID,
		StartTime:       r.StartTime.UTC().Format(time.RFC3339),
		EndTime:         r.EndTime.UTC().Format(time.RFC3339),
		Status:          string(r.Status),
		CancelReason:    r.CancelReason,
		CompletionNotes: r.CompletionNotes,
		CreatedAt:       r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.CancelledAt != nil {
		item.CancelledAt = r.CancelledAt.UTC().Format(time.RFC3339)
	}
	if r.CompletedAt != nil {
		item.CompletedAt = r.CompletedAt.UTC().Format(time.RFC3339)
	}
	return item
}

// Slots serves GET /api/v1/slots?provider_id=..&date=YYYY-MM-DD&duration_minutes=..
// with optional exclude_reservation_id for reschedule flows. The response is
// a full partition: every candidate slot appears in exactly one list.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	durationStr := strings.TrimSpace(r.URL.Query().Get("duration_minutes"))
	excludeID := strings.TrimSpace(r.URL.Query().Get("exclude_reservation_id"))
	if providerID == "" || dateStr == "" || durationStr == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "provider_id, date and duration_minutes are required"})
		return
	}

	date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid date"})
		return
	}
	mins, err := strconv.Atoi(durationStr)
	if err != nil || mins <= 0 || mins > 8*60 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid duration_minutes"})
		return
	}

	part, err := h.svc.AvailableSlots(r.Context(), providerID, date, time.Duration(mins)*time.Minute, excludeID)
	if err != nil {
		h.logger.Error("availability query failed", "provider_id", providerID, "err", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, slotsResponse{
		Available: toSlotItems(part.Available),
		Booked:    toSlotItems(part.Booked),
	})
}

func toSlotItems(slots []availability.Slot) []slotItem {
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			Label:     s.Start.UTC().Format("15:04"),
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
		})
	}
	return items
}

type createReservationRequest struct {
	ProviderID string `json:"provider_id"`
	CustomerID string `json:"customer_id"`
	ServiceID  string `json:"service_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.ProviderID == "" || req.CustomerID == "" || req.ServiceID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required fields"})
		return
	}

	start, end, ok := parseInterval(w, req.StartTime, req.EndTime)
	if !ok {
		return
	}

	res, err := h.svc.Create(r.Context(), req.ProviderID, req.CustomerID, req.ServiceID, start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationItem(res))
}

type rescheduleRequest struct {
	ReservationID string `json:"reservation_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	req.ReservationID = strings.TrimSpace(req.ReservationID)
	if req.ReservationID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "reservation_id required"})
		return
	}

	start, end, ok := parseInterval(w, req.StartTime, req.EndTime)
	if !ok {
		return
	}

	res, err := h.svc.Reschedule(r.Context(), req.ReservationID, start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationItem(res))
}

type cancelRequest struct {
	ReservationID string `json:"reservation_id"`
	Reason        string `json:"reason"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	req.ReservationID = strings.TrimSpace(req.ReservationID)
	if req.ReservationID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "reservation_id required"})
		return
	}

	res, err := h.svc.Cancel(r.Context(), req.ReservationID, strings.TrimSpace(req.Reason))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationItem(res))
}

type completeRequest struct {
	ReservationID string `json:"reservation_id"`
	Notes         string `json:"notes"`
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	req.ReservationID = strings.TrimSpace(req.ReservationID)
	if req.ReservationID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "reservation_id required"})
		return
	}

	res, err := h.svc.Complete(r.Context(), req.ReservationID, strings.TrimSpace(req.Notes))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationItem(res))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	if providerID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "provider_id required"})
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	reservations, err := h.svc.List(r.Context(), providerID, limit)
	if err != nil {
		h.logger.Error("list reservations failed", "provider_id", providerID, "err", err)
		writeDomainError(w, err)
		return
	}

	items := make([]reservationItem, 0, len(reservations))
	for _, res := range reservations {
		items = append(items, toReservationItem(res))
	}
	writeJSON(w, http.StatusOK, items)
}

func parseInterval(w http.ResponseWriter, startStr, endStr string) (time.Time, time.Time, bool) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(startStr))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid start_time"})
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(endStr))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid end_time"})
		return time.Time{}, time.Time{}, false
	}
	if !end.After(start) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "end_time must be after start_time"})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
