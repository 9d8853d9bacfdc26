package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/slotwise/slotwise/internal/booking"
	"github.com/slotwise/slotwise/internal/ledger"
)

type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeDomainError maps domain sentinels onto HTTP statuses. A booking
// conflict carries its code so clients can refresh availability and offer
// another slot instead of a generic failure.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:     "this time is no longer available, please choose another",
			ErrorCode: booking.ConflictCode,
		})
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, booking.ErrInvalidState):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, booking.ErrInvalidInterval):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
