package model

import "time"

type LedgerStatus string

const (
	LedgerPending   LedgerStatus = "pending"
	LedgerSucceeded LedgerStatus = "succeeded"
	LedgerFailed    LedgerStatus = "failed"
	LedgerRefunded  LedgerStatus = "refunded"
)

// LedgerRecord is the local mirror of a payment-gateway transaction.
// At most one record exists per TransactionID regardless of how many
// concurrent create attempts are made for it.
type LedgerRecord struct {
	ID            string
	TransactionID string
	BookingID     string
	AmountCents   int64
	Currency      string
	Method        string
	Status        LedgerStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
