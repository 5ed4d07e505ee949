package allocation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank-reconciliation-engine/internal/models"
)

// fakeLedger applies commit sets to in-memory balances the way the
// database ledger would.
type fakeLedger struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64

	commits     []CommitSet
	bankBalance int64

	// onOutstanding, when set, runs inside OutstandingBalance. Used to
	// hold a confirmation mid-validation.
	onOutstanding func()
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: map[uuid.UUID]int64{}}
}

func (l *fakeLedger) OutstandingBalance(_ context.Context, invoiceID uuid.UUID) (int64, error) {
	if l.onOutstanding != nil {
		l.onOutstanding()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[invoiceID], nil
}

func (l *fakeLedger) Commit(_ context.Context, set CommitSet) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commits = append(l.commits, set)
	for invoiceID, delta := range set.InvoiceDeltas {
		l.balances[invoiceID] -= delta
	}
	l.bankBalance += set.BalanceDelta
	return nil
}

func (l *fakeLedger) commitCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.commits)
}

func proposedRec(txID uuid.UUID, matched int64, splits ...models.ReconciliationSplit) *models.Reconciliation {
	return &models.Reconciliation{
		ID:            uuid.New(),
		CompanyID:     uuid.New(),
		BankAccountID: uuid.New(),
		TransactionID: txID,
		MatchedAmount: matched,
		Status:        models.ReconciliationProposed,
		Splits:        splits,
	}
}

func split(invoiceID uuid.UUID, amount int64) models.ReconciliationSplit {
	return models.ReconciliationSplit{ID: uuid.New(), InvoiceID: invoiceID, Amount: amount}
}

func credit(amount int64) *models.BankTransaction {
	return &models.BankTransaction{ID: uuid.New(), Amount: amount, Currency: "EUR"}
}

func TestConfirmCommitsPaymentsAndAdvancesBalanceOnce(t *testing.T) {
	invA, invB := uuid.New(), uuid.New()
	ledger := newFakeLedger()
	ledger.balances[invA] = 60000
	ledger.balances[invB] = 40000

	tx := credit(100000)
	rec := proposedRec(tx.ID, 100000, split(invA, 60000), split(invB, 40000))

	alloc := NewAllocator(ledger)
	require.NoError(t, alloc.Confirm(context.Background(), rec, tx))

	assert.Equal(t, models.ReconciliationConfirmed, rec.Status)
	require.NotNil(t, rec.ConfirmedAt)

	require.Len(t, ledger.commits, 1)
	set := ledger.commits[0]
	assert.Equal(t, models.ReconciliationProposed, set.FromStatus)
	require.Len(t, set.Payments, 2)
	assert.Equal(t, models.TransactionMatched, set.TransactionStatus)

	// One payment per split, backlinked both ways.
	for i, p := range set.Payments {
		assert.Equal(t, rec.Splits[i].Amount, p.Amount)
		assert.Equal(t, rec.Splits[i].InvoiceID, p.InvoiceID)
		require.NotNil(t, rec.Splits[i].PaymentID)
		assert.Equal(t, p.ID, *rec.Splits[i].PaymentID)
	}

	// Invoices debited, bank balance advanced by the full transaction
	// amount exactly once.
	assert.Zero(t, ledger.balances[invA])
	assert.Zero(t, ledger.balances[invB])
	assert.Equal(t, int64(100000), ledger.bankBalance)
}

func TestConfirmRejectsWhenInvoiceBalanceInsufficient(t *testing.T) {
	inv := uuid.New()
	ledger := newFakeLedger()
	ledger.balances[inv] = 30000

	tx := credit(50000)
	rec := proposedRec(tx.ID, 50000, split(inv, 50000))

	alloc := NewAllocator(ledger)
	err := alloc.Confirm(context.Background(), rec, tx)
	require.ErrorIs(t, err, ErrInvoiceBalanceInsufficient)

	var ibe InsufficientBalanceError
	require.ErrorAs(t, err, &ibe)
	assert.Equal(t, inv, ibe.InvoiceID)
	assert.Equal(t, int64(30000), ibe.Outstanding)
	assert.Equal(t, int64(50000), ibe.Requested)

	// Whole proposal rejected atomically: no payments, no balance
	// movement, rejection persisted.
	assert.Equal(t, models.ReconciliationRejected, rec.Status)
	assert.NotEmpty(t, rec.RejectReason)
	require.Len(t, ledger.commits, 1)
	assert.Empty(t, ledger.commits[0].Payments)
	assert.Equal(t, int64(30000), ledger.balances[inv])
	assert.Zero(t, ledger.bankBalance)
}

func TestConfirmRejectsWhenSplitsExceedMatchedAmount(t *testing.T) {
	inv := uuid.New()
	ledger := newFakeLedger()
	ledger.balances[inv] = 200000

	tx := credit(100000)
	rec := proposedRec(tx.ID, 100000, split(inv, 120000))

	alloc := NewAllocator(ledger)
	err := alloc.Confirm(context.Background(), rec, tx)
	require.ErrorIs(t, err, ErrAllocationExceedsAvailable)
	assert.Equal(t, models.ReconciliationRejected, rec.Status)
	assert.Equal(t, int64(200000), ledger.balances[inv])
}

func TestConfirmRejectsMatchedAmountOverTransaction(t *testing.T) {
	tx := credit(100000)
	rec := proposedRec(tx.ID, 150000, split(uuid.New(), 150000))

	alloc := NewAllocator(newFakeLedger())
	err := alloc.Confirm(context.Background(), rec, tx)
	require.ErrorIs(t, err, ErrAllocationExceedsAvailable)
}

func TestConfirmRejectsDebitFundingSplits(t *testing.T) {
	tx := credit(-100000)
	rec := proposedRec(tx.ID, 100000, split(uuid.New(), 100000))

	alloc := NewAllocator(newFakeLedger())
	err := alloc.Confirm(context.Background(), rec, tx)
	require.ErrorIs(t, err, ErrAllocationExceedsAvailable)
	assert.Equal(t, models.ReconciliationRejected, rec.Status)
}

func TestConfirmRequiresProposedStatus(t *testing.T) {
	tx := credit(100000)
	rec := proposedRec(tx.ID, 100000, split(uuid.New(), 100000))
	rec.Status = models.ReconciliationConfirmed

	alloc := NewAllocator(newFakeLedger())
	err := alloc.Confirm(context.Background(), rec, tx)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestConcurrentConfirmsOnSameInvoiceConflict(t *testing.T) {
	inv := uuid.New()
	ledger := newFakeLedger()
	ledger.balances[inv] = 100000

	txA, txB := credit(60000), credit(60000)
	recA := proposedRec(txA.ID, 60000, split(inv, 60000))
	recB := proposedRec(txB.ID, 60000, split(inv, 60000))

	alloc := NewAllocator(ledger)

	// Hold the first confirmation inside validation so the second
	// arrives while the invoice lock is held.
	entered := make(chan struct{})
	proceed := make(chan struct{})
	var once sync.Once
	ledger.onOutstanding = func() {
		once.Do(func() { close(entered) })
		<-proceed
	}

	done := make(chan error, 1)
	go func() {
		done <- alloc.Confirm(context.Background(), recA, txA)
	}()

	<-entered
	errB := alloc.Confirm(context.Background(), recB, txB)
	require.ErrorIs(t, errB, ErrConcurrentAllocation)
	assert.Equal(t, models.ReconciliationProposed, recB.Status, "contention must not reject the proposal")

	close(proceed)
	require.NoError(t, <-done)

	// Only the first confirmation committed; retrying the loser now
	// fails on the spent balance instead of double-paying.
	assert.Equal(t, 1, ledger.commitCount())
	assert.Equal(t, int64(40000), ledger.balances[inv])

	ledger.onOutstanding = nil
	errRetry := alloc.Confirm(context.Background(), recB, txB)
	require.ErrorIs(t, errRetry, ErrInvoiceBalanceInsufficient)
}

func TestConfirmReleasesLocksOnFailure(t *testing.T) {
	inv := uuid.New()
	ledger := newFakeLedger()
	ledger.balances[inv] = 10000

	tx := credit(50000)
	rec := proposedRec(tx.ID, 50000, split(inv, 50000))

	alloc := NewAllocator(ledger)
	require.Error(t, alloc.Confirm(context.Background(), rec, tx))

	// The invoice lock must be free again for the next attempt.
	release, err := alloc.locks.TryAcquire([]uuid.UUID{inv})
	require.NoError(t, err)
	release()
}

func TestReverseWritesOffsettingEntries(t *testing.T) {
	inv := uuid.New()
	ledger := newFakeLedger()
	ledger.balances[inv] = 0 // fully paid

	tx := credit(100000)
	paymentID := uuid.New()
	rec := proposedRec(tx.ID, 100000, split(inv, 100000))
	rec.Status = models.ReconciliationPosted
	rec.Splits[0].PaymentID = &paymentID

	alloc := NewAllocator(ledger)
	require.NoError(t, alloc.Reverse(context.Background(), rec, tx))
	require.NotNil(t, rec.ReversedAt)

	require.Len(t, ledger.commits, 1)
	set := ledger.commits[0]
	assert.Equal(t, models.ReconciliationPosted, set.FromStatus)
	assert.True(t, set.RequireNotReversed)
	require.Len(t, set.Payments, 1)
	assert.Equal(t, int64(-100000), set.Payments[0].Amount)
	require.NotNil(t, set.Payments[0].ReversesPaymentID)
	assert.Equal(t, paymentID, *set.Payments[0].ReversesPaymentID)
	assert.Equal(t, models.TransactionUnmatched, set.TransactionStatus)

	// Invoice balance restored, bank balance rolled back.
	assert.Equal(t, int64(100000), ledger.balances[inv])
	assert.Equal(t, int64(-100000), ledger.bankBalance)
}

func TestReverseRequiresPostedAndUnreversed(t *testing.T) {
	tx := credit(100000)
	alloc := NewAllocator(newFakeLedger())

	rec := proposedRec(tx.ID, 100000, split(uuid.New(), 100000))
	rec.Status = models.ReconciliationConfirmed
	require.ErrorIs(t, alloc.Reverse(context.Background(), rec, tx), models.ErrInvalidTransition)

	rec.Status = models.ReconciliationPosted
	now := time.Now()
	rec.ReversedAt = &now
	require.ErrorIs(t, alloc.Reverse(context.Background(), rec, tx), models.ErrInvalidTransition)
}

func TestTryAcquireIsAllOrNothing(t *testing.T) {
	lm := NewLockManager()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	releaseB, err := lm.TryAcquire([]uuid.UUID{b})
	require.NoError(t, err)

	// Overlapping set fails whole, leaving a and c free.
	_, err = lm.TryAcquire([]uuid.UUID{a, b, c})
	require.ErrorIs(t, err, ErrConcurrentAllocation)

	releaseAC, err := lm.TryAcquire([]uuid.UUID{a, c})
	require.NoError(t, err)
	releaseAC()
	releaseB()

	releaseAll, err := lm.TryAcquire([]uuid.UUID{a, b, c})
	require.NoError(t, err)
	releaseAll()
}
