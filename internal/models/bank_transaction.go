package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction review states. A transaction is immutable once imported;
// only its review status and category move as rules run against it.
const (
	TransactionPending     = "pending"
	TransactionUnmatched   = "unmatched"
	TransactionProposed    = "proposed"
	TransactionReviewed    = "reviewed"
	TransactionCategorized = "categorized"
	TransactionMatched     = "matched"
)

type BankTransaction struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID     uuid.UUID `gorm:"type:uuid;index"`
	BankAccountID uuid.UUID `gorm:"type:uuid;index"`
	Amount        int64     `gorm:"index"` // signed minor units, negative = debit
	Currency      string    `gorm:"size:3"`
	OccurredAt    time.Time `gorm:"index"`
	Description   string
	Reference     string
	Status        string `gorm:"index"`
	Category      string // set by categorize rule actions
	CreatedAt     time.Time
}

// AbsAmount returns the transaction magnitude in minor units.
func (t *BankTransaction) AbsAmount() int64 {
	if t.Amount < 0 {
		return -t.Amount
	}
	return t.Amount
}

// IsCredit reports whether the transaction brings money in. Only
// credits can fund invoice allocations.
func (t *BankTransaction) IsCredit() bool {
	return t.Amount > 0
}
