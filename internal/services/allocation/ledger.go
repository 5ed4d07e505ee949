package allocation

import (
	"context"

	"github.com/google/uuid"

	"bank-reconciliation-engine/internal/models"
)

// Ledger is the persistence boundary for allocation commits. A Commit
// call applies every write in the set atomically or not at all, and is
// idempotent: the FromStatus guard on the reconciliation row makes a
// retried commit a no-op instead of double-creating payments or
// double-advancing the bank balance.
type Ledger interface {
	// OutstandingBalance re-reads an invoice's outstanding balance.
	// Called under the invoice lock so the value cannot go stale
	// before Commit.
	OutstandingBalance(ctx context.Context, invoiceID uuid.UUID) (int64, error)

	Commit(ctx context.Context, set CommitSet) error
}

// CommitSet is one atomic ledger write.
type CommitSet struct {
	// Reconciliation carries the desired end state (status already
	// transitioned) and its splits.
	Reconciliation *models.Reconciliation
	// FromStatus guards the write: the reconciliation row is only
	// updated while still in this status.
	FromStatus string
	// RequireNotReversed additionally guards against double reversal.
	RequireNotReversed bool

	Payments []models.Payment
	// InvoiceDeltas is subtracted from each invoice's outstanding
	// balance (negative values restore balance on reversal).
	InvoiceDeltas map[uuid.UUID]int64

	BankAccountID uuid.UUID
	// BalanceDelta is added to the bank account's current balance.
	BalanceDelta int64

	// TransactionStatus, when non-empty, updates the bank
	// transaction's review status.
	TransactionID     uuid.UUID
	TransactionStatus string
}
