package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/slotwise/slotwise/internal/ledger"
	"github.com/slotwise/slotwise/internal/model"
)

// PaymentsHandler mirrors payment-gateway state into local ledger records.
// Signature verification is the auth on this route; it is exposed without a
// session. The card/charge flow itself happens at the gateway — only the
// mirror record keyed by the gateway transaction id lives here.
type PaymentsHandler struct {
	writer           *ledger.Writer
	logger           *slog.Logger
	webhookSecret    string
	webhookTolerance time.Duration
}

func NewPaymentsHandler(writer *ledger.Writer, logger *slog.Logger, webhookSecret string, tolerance time.Duration) *PaymentsHandler {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &PaymentsHandler{
		writer:           writer,
		logger:           logger,
		webhookSecret:    webhookSecret,
		webhookTolerance: tolerance,
	}
}

func (h *PaymentsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.TrimSpace(h.webhookSecret) == "" {
		http.Error(w, "payments webhook not configured", http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.webhookSecret, h.webhookTolerance)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	h.logger.Info("payment gateway event received",
		"provider_event_id", evt.ID,
		"event_type", string(evt.Type),
	)

	switch evt.Type {
	case "payment_intent.succeeded":
		h.recordIntent(w, r, evt, model.LedgerSucceeded)
	case "payment_intent.payment_failed":
		h.recordIntent(w, r, evt, model.LedgerFailed)
	case "charge.refunded":
		h.recordRefund(w, r, evt)
	default:
		// Acknowledge everything else so the gateway stops retrying.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	}
}

// recordIntent runs the idempotent createOrGet before the status update, so a
// replayed or out-of-order event never creates a duplicate and a first-seen
// event creates the pending record it then resolves.
func (h *PaymentsHandler) recordIntent(w http.ResponseWriter, r *http.Request, evt stripe.Event, status model.LedgerStatus) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(evt.Data.Raw, &intent); err != nil {
		http.Error(w, "invalid payment_intent payload", http.StatusBadRequest)
		return
	}
	bookingID := strings.TrimSpace(intent.Metadata["reservation_id"])
	if intent.ID == "" || bookingID == "" {
		h.logger.Warn("payment intent missing reservation metadata", "transaction_id", intent.ID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	ctx := r.Context()
	if _, err := h.writer.CreateOrGet(ctx, intent.ID, bookingID, intent.Amount, string(intent.Currency), "card"); err != nil {
		h.logger.Error("ledger create failed", "transaction_id", intent.ID, "err", err)
		http.Error(w, "ledger write failed", http.StatusInternalServerError)
		return
	}
	if _, err := h.writer.UpdateStatus(ctx, intent.ID, status); err != nil {
		h.logger.Error("ledger status update failed", "transaction_id", intent.ID, "err", err)
		http.Error(w, "ledger update failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *PaymentsHandler) recordRefund(w http.ResponseWriter, r *http.Request, evt stripe.Event) {
	var charge stripe.Charge
	if err := json.Unmarshal(evt.Data.Raw, &charge); err != nil {
		http.Error(w, "invalid charge payload", http.StatusBadRequest)
		return
	}
	if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	_, err := h.writer.UpdateStatus(r.Context(), charge.PaymentIntent.ID, model.LedgerRefunded)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			// Refund for a transaction this service never mirrored; nothing to update.
			h.logger.Warn("refund for unknown transaction", "transaction_id", charge.PaymentIntent.ID)
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		http.Error(w, "ledger update failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}
