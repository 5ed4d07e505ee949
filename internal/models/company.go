package models

import (
	"time"

	"github.com/google/uuid"
)

// Company carries the currency configuration every amount in its
// ledgers is expressed in. Precision is the number of minor-unit
// digits (2 for EUR/USD, 0 for JPY).
type Company struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string
	Currency  string `gorm:"size:3"`
	Precision int32
	CreatedAt time.Time
}
