package models

import (
	"time"

	"github.com/google/uuid"
)

// BankAccount owns imported transactions. CurrentBalance advances by
// each transaction's full amount exactly once, when the transaction's
// reconciliation is confirmed.
type BankAccount struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID      uuid.UUID `gorm:"type:uuid;index"`
	Name           string
	Number         string
	Currency       string `gorm:"size:3"`
	CurrentBalance int64  // minor units
	CreatedAt      time.Time
}
