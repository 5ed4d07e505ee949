package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MatchingRule is an authored rule: an ordered condition set and an
// ordered action set, stored as JSON and validated before the rule is
// activated. Rules that have produced reconciliations are deactivated
// rather than deleted so the audit trail stays intact.
type MatchingRule struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID  uuid.UUID `gorm:"type:uuid;index"`
	Name       string
	Priority   int  `gorm:"index"` // higher evaluates first
	Active     bool `gorm:"index"`
	Conditions datatypes.JSON
	Actions    datatypes.JSON
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
