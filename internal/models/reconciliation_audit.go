package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Audit actions written on every rule hit and state transition.
const (
	AuditNoRule      = "no_matching_rule"
	AuditIgnored     = "ignored"
	AuditCategorized = "categorized"
	AuditProposed    = "proposed"
	AuditConfirmed   = "confirmed"
	AuditRejected    = "rejected"
	AuditReopened    = "reopened"
	AuditPosted      = "posted"
	AuditReversed    = "reversed"
)

type ReconciliationAudit struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CompanyID        uuid.UUID  `gorm:"type:uuid;index"`
	ReconciliationID *uuid.UUID `gorm:"type:uuid;index"`
	TransactionID    uuid.UUID  `gorm:"type:uuid;index"`
	Action           string
	Details          datatypes.JSON
	PerformedBy      string
	CreatedAt        time.Time
}
