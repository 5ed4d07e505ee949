package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reconciliation state machine. unmatched and posted are terminal;
// posting is one-way and corrections to a posted reconciliation are
// reversing entries, never in-place edits.
const (
	ReconciliationUnmatched = "unmatched"
	ReconciliationProposed  = "proposed"
	ReconciliationConfirmed = "confirmed"
	ReconciliationRejected  = "rejected"
	ReconciliationPosted    = "posted"
)

var ErrInvalidTransition = errors.New("invalid reconciliation state transition")

var transitions = map[string][]string{
	ReconciliationUnmatched: {ReconciliationProposed},
	ReconciliationProposed:  {ReconciliationConfirmed, ReconciliationRejected},
	ReconciliationRejected:  {ReconciliationUnmatched},
	ReconciliationConfirmed: {ReconciliationPosted},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change.
func (r *Reconciliation) Transition(to string) error {
	if !CanTransition(r.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	r.Status = to
	return nil
}

// Reconciliation records one transaction under evaluation. MatchedAmount
// is the portion being allocated across splits; Unallocated is the
// remainder intentionally left off any invoice, tracked explicitly so
// no residue is ever silently dropped.
type Reconciliation struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CompanyID     uuid.UUID  `gorm:"type:uuid;index"`
	BankAccountID uuid.UUID  `gorm:"type:uuid;index"`
	// Unique only while live: a reversed reconciliation stays on
	// record but must not block the transaction from being
	// reconciled again.
	TransactionID uuid.UUID  `gorm:"type:uuid;index:udx_reconciliations_live_transaction,unique,where:reversed_at IS NULL"`
	RuleID        *uuid.UUID `gorm:"type:uuid"`
	MatchedAmount int64      // positive minor units, <= |transaction amount|
	Unallocated   int64      // minor units left off any split
	Status        string     `gorm:"index"`
	RejectReason  string
	ConfirmedAt   *time.Time
	PostedAt      *time.Time
	ReversedAt    *time.Time
	CreatedAt     time.Time

	Splits []ReconciliationSplit `gorm:"foreignKey:ReconciliationID"`
}

// SplitTotal sums the splits' allocated amounts. For a confirmed or
// posted reconciliation it equals MatchedAmount exactly.
func (r *Reconciliation) SplitTotal() int64 {
	var total int64
	for _, s := range r.Splits {
		total += s.Amount
	}
	return total
}

// ReconciliationSplit allocates part of a reconciliation to one
// invoice. Splits are owned by their reconciliation and become
// immutable once it is confirmed; PaymentID backlinks the payment the
// split produced.
type ReconciliationSplit struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ReconciliationID uuid.UUID  `gorm:"type:uuid;index"`
	InvoiceID        uuid.UUID  `gorm:"type:uuid;index"`
	Amount           int64      // positive minor units
	PaymentID        *uuid.UUID `gorm:"type:uuid"`
	CreatedAt        time.Time
}
