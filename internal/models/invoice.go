package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	InvoiceDraft   = "draft"
	InvoiceSent    = "sent"
	InvoicePartial = "partial"
	InvoicePaid    = "paid"
	InvoiceOverdue = "overdue"
)

type Invoice struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID     uuid.UUID `gorm:"type:uuid;index"`
	InvoiceNumber string    `gorm:"uniqueIndex"`
	CustomerName  string    `gorm:"index"`
	Total         int64     // minor units
	Balance       int64     `gorm:"index"` // outstanding, minor units
	Currency      string    `gorm:"size:3"`
	Status        string    `gorm:"index"`
	DueDate       time.Time
	PaidAt        *time.Time
	CreatedAt     time.Time
}

// Open reports whether the invoice can still receive payments.
func (i *Invoice) Open() bool {
	return i.Status != InvoicePaid && i.Status != InvoiceDraft && i.Balance > 0
}
