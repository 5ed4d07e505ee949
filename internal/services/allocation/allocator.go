// Package allocation validates proposed reconciliations against live
// invoice balances and commits them atomically: one payment per split,
// one bank-balance advance per transaction.
package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bank-reconciliation-engine/internal/models"
)

type Allocator struct {
	locks  *LockManager
	ledger Ledger
}

func NewAllocator(ledger Ledger) *Allocator {
	return &Allocator{locks: NewLockManager(), ledger: ledger}
}

// Confirm re-validates a proposed reconciliation against fresh invoice
// balances and commits it. Validation failures reject the whole
// proposal atomically and return the cause; lock contention returns
// ErrConcurrentAllocation without touching the proposal, so the caller
// can retry with fresh balances.
func (a *Allocator) Confirm(ctx context.Context, rec *models.Reconciliation, tx *models.BankTransaction) error {
	if rec.Status != models.ReconciliationProposed {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, rec.Status, models.ReconciliationConfirmed)
	}

	release, err := a.locks.TryAcquire(invoiceIDs(rec.Splits))
	if err != nil {
		return err
	}
	defer release()

	if err := a.validate(ctx, rec, tx); err != nil {
		return a.reject(ctx, rec, err)
	}

	now := time.Now().UTC()
	payments := make([]models.Payment, 0, len(rec.Splits))
	deltas := make(map[uuid.UUID]int64, len(rec.Splits))
	for i := range rec.Splits {
		s := &rec.Splits[i]
		p := models.Payment{
			ID:                    uuid.New(),
			CompanyID:             rec.CompanyID,
			InvoiceID:             s.InvoiceID,
			ReconciliationSplitID: &s.ID,
			Amount:                s.Amount,
			Currency:              tx.Currency,
			PaidAt:                now,
			CreatedAt:             now,
		}
		s.PaymentID = &p.ID
		payments = append(payments, p)
		deltas[s.InvoiceID] += s.Amount
	}

	if err := rec.Transition(models.ReconciliationConfirmed); err != nil {
		return err
	}
	rec.ConfirmedAt = &now

	return a.ledger.Commit(ctx, CommitSet{
		Reconciliation:    rec,
		FromStatus:        models.ReconciliationProposed,
		Payments:          payments,
		InvoiceDeltas:     deltas,
		BankAccountID:     rec.BankAccountID,
		BalanceDelta:      tx.Amount,
		TransactionID:     tx.ID,
		TransactionStatus: models.TransactionMatched,
	})
}

// Reverse writes the offsetting entry for a posted reconciliation:
// negative payments restore the invoice balances, the bank balance
// rolls back by the transaction amount, and the transaction returns to
// unmatched. The posted row itself is never edited beyond ReversedAt.
func (a *Allocator) Reverse(ctx context.Context, rec *models.Reconciliation, tx *models.BankTransaction) error {
	if rec.Status != models.ReconciliationPosted {
		return fmt.Errorf("%w: only posted reconciliations can be reversed, got %s", models.ErrInvalidTransition, rec.Status)
	}
	if rec.ReversedAt != nil {
		return fmt.Errorf("%w: reconciliation already reversed", models.ErrInvalidTransition)
	}

	release, err := a.locks.TryAcquire(invoiceIDs(rec.Splits))
	if err != nil {
		return err
	}
	defer release()

	now := time.Now().UTC()
	payments := make([]models.Payment, 0, len(rec.Splits))
	deltas := make(map[uuid.UUID]int64, len(rec.Splits))
	for _, s := range rec.Splits {
		payments = append(payments, models.Payment{
			ID:                    uuid.New(),
			CompanyID:             rec.CompanyID,
			InvoiceID:             s.InvoiceID,
			ReconciliationSplitID: &s.ID,
			ReversesPaymentID:     s.PaymentID,
			Amount:                -s.Amount,
			Currency:              tx.Currency,
			PaidAt:                now,
			CreatedAt:             now,
		})
		deltas[s.InvoiceID] -= s.Amount
	}
	rec.ReversedAt = &now

	return a.ledger.Commit(ctx, CommitSet{
		Reconciliation:     rec,
		FromStatus:         models.ReconciliationPosted,
		RequireNotReversed: true,
		Payments:           payments,
		InvoiceDeltas:      deltas,
		BankAccountID:      rec.BankAccountID,
		BalanceDelta:       -tx.Amount,
		TransactionID:      tx.ID,
		TransactionStatus:  models.TransactionUnmatched,
	})
}

// reject persists the rejection atomically and returns the original
// validation cause.
func (a *Allocator) reject(ctx context.Context, rec *models.Reconciliation, cause error) error {
	rec.RejectReason = cause.Error()
	if terr := rec.Transition(models.ReconciliationRejected); terr != nil {
		return terr
	}
	if perr := a.ledger.Commit(ctx, CommitSet{
		Reconciliation: rec,
		FromStatus:     models.ReconciliationProposed,
	}); perr != nil {
		return perr
	}
	return cause
}

// validate enforces the commit-time invariants: matched amount within
// the transaction and of the right sign, split total within the
// matched amount, and every target invoice still covering its splits
// at validation time.
func (a *Allocator) validate(ctx context.Context, rec *models.Reconciliation, tx *models.BankTransaction) error {
	if rec.MatchedAmount <= 0 || rec.MatchedAmount > tx.AbsAmount() {
		return fmt.Errorf("%w: matched amount %d outside transaction amount %d",
			ErrAllocationExceedsAvailable, rec.MatchedAmount, tx.Amount)
	}
	if len(rec.Splits) > 0 && !tx.IsCredit() {
		return fmt.Errorf("%w: debit transaction cannot fund invoice allocations", ErrAllocationExceedsAvailable)
	}

	var total int64
	wanted := make(map[uuid.UUID]int64, len(rec.Splits))
	for _, s := range rec.Splits {
		if s.Amount <= 0 {
			return fmt.Errorf("%w: split amounts must be positive", ErrAllocationExceedsAvailable)
		}
		total += s.Amount
		wanted[s.InvoiceID] += s.Amount
	}
	if total > rec.MatchedAmount {
		return fmt.Errorf("%w: splits total %d over matched amount %d",
			ErrAllocationExceedsAvailable, total, rec.MatchedAmount)
	}

	for invoiceID, want := range wanted {
		balance, err := a.ledger.OutstandingBalance(ctx, invoiceID)
		if err != nil {
			return err
		}
		if balance < want {
			return InsufficientBalanceError{InvoiceID: invoiceID, Outstanding: balance, Requested: want}
		}
	}
	return nil
}

func invoiceIDs(splits []models.ReconciliationSplit) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(splits))
	ids := make([]uuid.UUID, 0, len(splits))
	for _, s := range splits {
		if _, ok := seen[s.InvoiceID]; ok {
			continue
		}
		seen[s.InvoiceID] = struct{}{}
		ids = append(ids, s.InvoiceID)
	}
	return ids
}
