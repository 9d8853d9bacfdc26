package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/slotwise/slotwise/internal/model"
)

var (
	// ErrNotFound means no ledger record exists for the transaction id.
	ErrNotFound = errors.New("ledger record not found")

	// ErrDuplicateTransaction is returned by Store.Insert when the unique
	// constraint on transaction_id rejects the row: a concurrent caller won
	// the race. The writer treats this as success-by-proxy, not an error.
	ErrDuplicateTransaction = errors.New("transaction id already recorded")
)

// Store is the storage port for ledger records. TransactionID must be
// enforced unique at the storage layer; the writer's race handling depends
// on it.
type Store interface {
	GetByTransactionID(ctx context.Context, transactionID string) (model.LedgerRecord, error)
	Insert(ctx context.Context, rec *model.LedgerRecord) error
	UpdateStatus(ctx context.Context, transactionID string, status model.LedgerStatus) (model.LedgerRecord, error)
}

// Writer creates payment mirror records idempotently. Repeated calls with
// the same transaction id never create duplicates and never surface the
// benign insert race as an error.
type Writer struct {
	store  Store
	logger *slog.Logger
}

func NewWriter(store Store, logger *slog.Logger) *Writer {
	return &Writer{store: store, logger: logger}
}

// CreateOrGet is the check, insert, re-check-on-conflict sequence. The final
// re-fetch is what turns a lost race into the winner's record instead of an
// error.
func (w *Writer) CreateOrGet(ctx context.Context, transactionID, bookingID string, amountCents int64, currency, method string) (model.LedgerRecord, error) {
	if transactionID == "" {
		return model.LedgerRecord{}, fmt.Errorf("transaction id is required")
	}

	existing, err := w.store.GetByTransactionID(ctx, transactionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.LedgerRecord{}, err
	}

	rec := model.LedgerRecord{
		TransactionID: transactionID,
		BookingID:     bookingID,
		AmountCents:   amountCents,
		Currency:      currency,
		Method:        method,
		Status:        model.LedgerPending,
	}
	err = w.store.Insert(ctx, &rec)
	if err == nil {
		w.logger.Info("ledger record created",
			"transaction_id", transactionID, "booking_id", bookingID, "amount_cents", amountCents)
		return rec, nil
	}
	if !errors.Is(err, ErrDuplicateTransaction) {
		return model.LedgerRecord{}, err
	}

	// A concurrent caller inserted first; return the winning record.
	winner, err := w.store.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return model.LedgerRecord{}, fmt.Errorf("re-fetch after duplicate insert: %w", err)
	}
	return winner, nil
}

// UpdateStatus is a plain state update on the row.
func (w *Writer) UpdateStatus(ctx context.Context, transactionID string, status model.LedgerStatus) (model.LedgerRecord, error) {
	rec, err := w.store.UpdateStatus(ctx, transactionID, status)
	if err != nil {
		return model.LedgerRecord{}, err
	}
	w.logger.Info("ledger status updated", "transaction_id", transactionID, "status", string(status))
	return rec, nil
}
