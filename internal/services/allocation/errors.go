package allocation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrAllocationExceedsAvailable rejects proposals whose split total
// exceeds the matched amount, or whose matched amount exceeds (or has
// the wrong sign for) the transaction amount.
var ErrAllocationExceedsAvailable = errors.New("allocation exceeds available amount")

// ErrInvoiceBalanceInsufficient rejects a proposal when a target
// invoice's outstanding balance dropped below a split's amount since
// the proposal was made. The caller may re-propose against the
// refreshed balance.
var ErrInvoiceBalanceInsufficient = errors.New("invoice balance insufficient")

// ErrConcurrentAllocation signals lock contention on a shared invoice
// during commit. Transient: safe to retry with fresh balances.
var ErrConcurrentAllocation = errors.New("concurrent allocation conflict")

// InsufficientBalanceError carries the invoice and amounts behind an
// ErrInvoiceBalanceInsufficient rejection.
type InsufficientBalanceError struct {
	InvoiceID   uuid.UUID
	Outstanding int64
	Requested   int64
}

func (e InsufficientBalanceError) Error() string {
	return fmt.Sprintf("invoice %s: outstanding %d below requested %d", e.InvoiceID, e.Outstanding, e.Requested)
}

func (e InsufficientBalanceError) Unwrap() error { return ErrInvoiceBalanceInsufficient }
