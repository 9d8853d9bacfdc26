package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/slotwise/slotwise/internal/model"
)

// memLedger enforces the transaction_id unique constraint the way the
// database does: inside one critical section covering check and write.
type memLedger struct {
	mu     sync.Mutex
	nextID int
	byTxn  map[string]model.LedgerRecord
}

func newMemLedger() *memLedger {
	return &memLedger{byTxn: map[string]model.LedgerRecord{}}
}

func (m *memLedger) GetByTransactionID(_ context.Context, transactionID string) (model.LedgerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byTxn[transactionID]
	if !ok {
		return model.LedgerRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *memLedger) Insert(_ context.Context, rec *model.LedgerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byTxn[rec.TransactionID]; exists {
		return ErrDuplicateTransaction
	}
	m.nextID++
	rec.ID = fmt.Sprintf("led-%d", m.nextID)
	rec.CreatedAt = time.Now().UTC()
	rec.UpdatedAt = rec.CreatedAt
	m.byTxn[rec.TransactionID] = *rec
	return nil
}

func (m *memLedger) UpdateStatus(_ context.Context, transactionID string, status model.LedgerStatus) (model.LedgerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byTxn[transactionID]
	if !ok {
		return model.LedgerRecord{}, ErrNotFound
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	m.byTxn[transactionID] = rec
	return rec, nil
}

func newTestWriter(store Store) *Writer {
	return NewWriter(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateOrGet_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemLedger()
	w := newTestWriter(store)

	first, err := w.CreateOrGet(ctx, "txn_1", "res-1", 5000, "usd", "card")
	if err != nil {
		t.Fatalf("first CreateOrGet: %v", err)
	}
	if first.Status != model.LedgerPending {
		t.Errorf("new record status = %s, want pending", first.Status)
	}

	// Replays, even with drifted amounts, return the original record.
	second, err := w.CreateOrGet(ctx, "txn_1", "res-1", 9999, "eur", "card")
	if err != nil {
		t.Fatalf("second CreateOrGet: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay produced a different record: %s vs %s", second.ID, first.ID)
	}
	if second.AmountCents != 5000 || second.Currency != "usd" {
		t.Error("replay must not overwrite the original record")
	}
	if len(store.byTxn) != 1 {
		t.Fatalf("store holds %d records, want 1", len(store.byTxn))
	}
}

func TestCreateOrGet_ConcurrentSameTransaction(t *testing.T) {
	ctx := context.Background()
	store := newMemLedger()
	w := newTestWriter(store)

	const n = 16
	var wg sync.WaitGroup
	recs := make([]model.LedgerRecord, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recs[i], errs[i] = w.CreateOrGet(ctx, "txn_race", "res-1", 5000, "usd", "card")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if recs[i].ID != recs[0].ID {
			t.Fatalf("caller %d got record %s, caller 0 got %s", i, recs[i].ID, recs[0].ID)
		}
	}
	if len(store.byTxn) != 1 {
		t.Fatalf("store holds %d records after the race, want 1", len(store.byTxn))
	}
}

// duplicateOnInsert simulates the exact lost-race interleaving: the check sees
// nothing, the insert hits the unique constraint because a concurrent caller
// committed in between.
type duplicateOnInsert struct {
	*memLedger
	firstGet bool
}

func (s *duplicateOnInsert) GetByTransactionID(ctx context.Context, transactionID string) (model.LedgerRecord, error) {
	if !s.firstGet {
		s.firstGet = true
		return model.LedgerRecord{}, ErrNotFound
	}
	return s.memLedger.GetByTransactionID(ctx, transactionID)
}

func TestCreateOrGet_LostRaceRefetchesWinner(t *testing.T) {
	ctx := context.Background()
	inner := newMemLedger()
	winner := model.LedgerRecord{TransactionID: "txn_2", BookingID: "res-2", AmountCents: 1200, Currency: "usd", Method: "card", Status: model.LedgerSucceeded}
	if err := inner.Insert(ctx, &winner); err != nil {
		t.Fatalf("seed winner: %v", err)
	}

	w := newTestWriter(&duplicateOnInsert{memLedger: inner})
	got, err := w.CreateOrGet(ctx, "txn_2", "res-2", 1200, "usd", "card")
	if err != nil {
		t.Fatalf("CreateOrGet after lost race: %v", err)
	}
	if got.ID != winner.ID || got.Status != model.LedgerSucceeded {
		t.Fatalf("got record %+v, want the winner's row", got)
	}
}

func TestCreateOrGet_RequiresTransactionID(t *testing.T) {
	w := newTestWriter(newMemLedger())
	if _, err := w.CreateOrGet(context.Background(), "", "res-1", 100, "usd", "card"); err == nil {
		t.Fatal("empty transaction id must be rejected")
	}
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	store := newMemLedger()
	w := newTestWriter(store)

	if _, err := w.CreateOrGet(ctx, "txn_3", "res-3", 2500, "usd", "card"); err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}

	rec, err := w.UpdateStatus(ctx, "txn_3", model.LedgerSucceeded)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if rec.Status != model.LedgerSucceeded {
		t.Errorf("status = %s, want succeeded", rec.Status)
	}

	if _, err := w.UpdateStatus(ctx, "txn_missing", model.LedgerRefunded); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown transaction: err = %v, want ErrNotFound", err)
	}
}
