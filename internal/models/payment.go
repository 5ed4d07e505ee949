package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment is produced 1:1 with a confirmed reconciliation split and
// reduces its invoice's outstanding balance. Reversing payments carry
// a negative amount and point at the payment they undo.
type Payment struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CompanyID             uuid.UUID  `gorm:"type:uuid;index"`
	InvoiceID             uuid.UUID  `gorm:"type:uuid;index"`
	ReconciliationSplitID *uuid.UUID `gorm:"type:uuid;index"`
	ReversesPaymentID     *uuid.UUID `gorm:"type:uuid"`
	Amount                int64      // minor units, negative for reversals
	Currency              string     `gorm:"size:3"`
	PaidAt                time.Time
	CreatedAt             time.Time
}
