package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/services/allocation"
)

// GormLedger applies allocation commits in a single database
// transaction. The in-process lock manager keeps conflicting commits
// from racing; the status and balance predicates here are the
// database-level backstop for the same invariants.
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) OutstandingBalance(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	var invoice models.Invoice
	err := l.db.WithContext(ctx).
		Select("id", "balance").
		First(&invoice, "id = ?", invoiceID).Error
	if err != nil {
		return 0, err
	}
	return invoice.Balance, nil
}

func (l *GormLedger) Commit(ctx context.Context, set allocation.CommitSet) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := set.Reconciliation

		guard := tx.Model(&models.Reconciliation{}).
			Where("id = ? AND status = ?", rec.ID, set.FromStatus)
		if set.RequireNotReversed {
			guard = guard.Where("reversed_at IS NULL")
		}
		res := guard.Updates(map[string]any{
			"status":        rec.Status,
			"reject_reason": rec.RejectReason,
			"confirmed_at":  rec.ConfirmedAt,
			"posted_at":     rec.PostedAt,
			"reversed_at":   rec.ReversedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// An earlier attempt already moved the row past FromStatus.
			// The whole set committed with it, so retrying is a no-op.
			return nil
		}

		if len(set.Payments) > 0 {
			if err := tx.Create(&set.Payments).Error; err != nil {
				return err
			}
		}
		for i := range rec.Splits {
			s := &rec.Splits[i]
			if s.PaymentID == nil {
				continue
			}
			if err := tx.Model(&models.ReconciliationSplit{}).
				Where("id = ?", s.ID).
				Update("payment_id", s.PaymentID).Error; err != nil {
				return err
			}
		}

		for invoiceID, delta := range set.InvoiceDeltas {
			if err := applyInvoiceDelta(tx, invoiceID, delta); err != nil {
				return err
			}
		}

		if set.BalanceDelta != 0 {
			if err := tx.Model(&models.BankAccount{}).
				Where("id = ?", set.BankAccountID).
				Update("current_balance", gorm.Expr("current_balance + ?", set.BalanceDelta)).Error; err != nil {
				return err
			}
		}

		if set.TransactionStatus != "" {
			if err := tx.Model(&models.BankTransaction{}).
				Where("id = ?", set.TransactionID).
				Update("status", set.TransactionStatus).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// applyInvoiceDelta debits (or on reversal restores) an invoice balance
// and keeps its status in step. A positive delta only lands while the
// balance still covers it.
func applyInvoiceDelta(tx *gorm.DB, invoiceID uuid.UUID, delta int64) error {
	q := tx.Model(&models.Invoice{}).Where("id = ?", invoiceID)
	if delta > 0 {
		q = q.Where("balance >= ?", delta)
	}
	res := q.Update("balance", gorm.Expr("balance - ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("invoice %s: %w", invoiceID, allocation.ErrInvoiceBalanceInsufficient)
	}

	var invoice models.Invoice
	if err := tx.First(&invoice, "id = ?", invoiceID).Error; err != nil {
		return err
	}

	updates := map[string]any{}
	switch {
	case invoice.Balance == 0 && invoice.Status != models.InvoicePaid:
		updates["status"] = models.InvoicePaid
		updates["paid_at"] = time.Now().UTC()
	case invoice.Balance > 0 && invoice.Balance < invoice.Total:
		updates["status"] = models.InvoicePartial
		updates["paid_at"] = nil
	case invoice.Balance == invoice.Total &&
		(invoice.Status == models.InvoicePartial || invoice.Status == models.InvoicePaid):
		// Fully reversed back to untouched.
		updates["status"] = models.InvoiceSent
		updates["paid_at"] = nil
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(&models.Invoice{}).Where("id = ?", invoiceID).Updates(updates).Error
}
