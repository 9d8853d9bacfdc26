package storage

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/slotwise/slotwise/internal/ledger"
	"github.com/slotwise/slotwise/internal/model"
	"github.com/slotwise/slotwise/internal/outbox"
	"github.com/slotwise/slotwise/internal/platform/postgres"
)

const ledgerColumns = `
	id::text, transaction_id, booking_id::text, amount_cents, currency, method, status,
	created_at, updated_at`

// LedgerRepository implements ledger.Store. transaction_id carries a unique
// index; the insert maps unique violations to ErrDuplicateTransaction so the
// writer can re-fetch the race winner.
type LedgerRepository struct {
	pool   *postgres.Pool
	outbox *outbox.Repository
}

func NewLedgerRepository(pool *postgres.Pool, outboxRepo *outbox.Repository) *LedgerRepository {
	return &LedgerRepository{pool: pool, outbox: outboxRepo}
}

func (r *LedgerRepository) GetByTransactionID(ctx context.Context, transactionID string) (model.LedgerRecord, error) {
	var rec model.LedgerRecord
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_records
		WHERE transaction_id = $1
	`, transactionID).Scan(
		&rec.ID, &rec.TransactionID, &rec.BookingID, &rec.AmountCents, &rec.Currency,
		&rec.Method, &status, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return model.LedgerRecord{}, ledger.ErrNotFound
		}
		return model.LedgerRecord{}, err
	}
	rec.Status = model.LedgerStatus(status)
	return rec, nil
}

func (r *LedgerRepository) Insert(ctx context.Context, rec *model.LedgerRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec.ID = uuid.NewString()
	err = tx.QueryRow(ctx, `
		INSERT INTO ledger_records (id, transaction_id, booking_id, amount_cents, currency, method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, rec.ID, rec.TransactionID, rec.BookingID, rec.AmountCents, rec.Currency, rec.Method, string(rec.Status)).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicateTransaction
		}
		return err
	}

	if r.outbox != nil {
		payload, err := json.Marshal(map[string]any{
			"ledger_id":      rec.ID,
			"transaction_id": rec.TransactionID,
			"booking_id":     rec.BookingID,
			"amount_cents":   rec.AmountCents,
			"currency":       rec.Currency,
			"method":         rec.Method,
			"status":         string(rec.Status),
		})
		if err != nil {
			return err
		}
		if err := r.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "ledger_record",
			AggregateID:   rec.ID,
			EventType:     "ledger.record.created.v1",
			Payload:       payload,
		}); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *LedgerRepository) UpdateStatus(ctx context.Context, transactionID string, status model.LedgerStatus) (model.LedgerRecord, error) {
	var rec model.LedgerRecord
	var got string
	err := r.pool.QueryRow(ctx, `
		UPDATE ledger_records
		SET status = $2, updated_at = now()
		WHERE transaction_id = $1
		RETURNING `+ledgerColumns+`
	`, transactionID, string(status)).Scan(
		&rec.ID, &rec.TransactionID, &rec.BookingID, &rec.AmountCents, &rec.Currency,
		&rec.Method, &got, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return model.LedgerRecord{}, ledger.ErrNotFound
		}
		return model.LedgerRecord{}, err
	}
	rec.Status = model.LedgerStatus(got)
	return rec, nil
}
