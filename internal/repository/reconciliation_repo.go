package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-engine/internal/models"
)

type ReconciliationRepository struct {
	db *gorm.DB
}

func NewReconciliationRepository(db *gorm.DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

// CreateProposed inserts a proposed reconciliation with its splits. The
// partial unique index on transaction_id rejects a second live
// reconciliation for the same transaction at the database; reversed
// rows are excluded so a reversed transaction can be reconciled again.
func (r *ReconciliationRepository) CreateProposed(ctx context.Context, rec *models.Reconciliation) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *ReconciliationRepository) GetReconciliation(ctx context.Context, companyID, recID uuid.UUID) (*models.Reconciliation, error) {
	var rec models.Reconciliation
	err := r.db.WithContext(ctx).
		Preload("Splits").
		First(&rec, "id = ? AND company_id = ?", recID, companyID).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByTransaction returns the newest reconciliation for a transaction.
// Reversed predecessors stay on record, so the latest row is the one
// that reflects the transaction's current disposition.
func (r *ReconciliationRepository) GetByTransaction(ctx context.Context, companyID, txID uuid.UUID) (*models.Reconciliation, error) {
	var rec models.Reconciliation
	err := r.db.WithContext(ctx).
		Preload("Splits").
		Where("transaction_id = ? AND company_id = ?", txID, companyID).
		Order("created_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkRejected moves proposed -> rejected. The status predicate makes
// it a no-op against anything already confirmed or rejected.
func (r *ReconciliationRepository) MarkRejected(ctx context.Context, recID uuid.UUID, reason string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Reconciliation{}).
		Where("id = ? AND status = ?", recID, models.ReconciliationProposed).
		Updates(map[string]any{"status": models.ReconciliationRejected, "reject_reason": reason})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: reconciliation %s is not proposed", models.ErrInvalidTransition, recID)
	}
	return nil
}

// MarkPosted moves confirmed -> posted.
func (r *ReconciliationRepository) MarkPosted(ctx context.Context, recID uuid.UUID, postedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Reconciliation{}).
		Where("id = ? AND status = ?", recID, models.ReconciliationConfirmed).
		Updates(map[string]any{"status": models.ReconciliationPosted, "posted_at": postedAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: reconciliation %s is not confirmed", models.ErrInvalidTransition, recID)
	}
	return nil
}

func (r *ReconciliationRepository) ListConfirmed(ctx context.Context, companyID, bankAccountID uuid.UUID) ([]models.Reconciliation, error) {
	var recs []models.Reconciliation
	err := r.db.WithContext(ctx).
		Preload("Splits").
		Where("company_id = ? AND bank_account_id = ? AND status = ?",
			companyID, bankAccountID, models.ReconciliationConfirmed).
		Order("created_at ASC, id ASC").
		Find(&recs).Error
	return recs, err
}

// DiscardRejected deletes a rejected reconciliation and its splits.
// Nothing was committed for it, so deletion is the whole rollback.
func (r *ReconciliationRepository) DiscardRejected(ctx context.Context, recID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", recID, models.ReconciliationRejected).
			Delete(&models.Reconciliation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: reconciliation %s is not rejected", models.ErrInvalidTransition, recID)
		}
		return tx.Where("reconciliation_id = ?", recID).
			Delete(&models.ReconciliationSplit{}).Error
	})
}

// ListReconciliations pages through a company's reconciliations with a
// keyset cursor on the reconciliation id, optionally filtered by status.
func (r *ReconciliationRepository) ListReconciliations(ctx context.Context, companyID uuid.UUID, status, cursor string, limit int) ([]models.Reconciliation, string, bool, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Preload("Splits").Where("company_id = ?", companyID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if cursor != "" {
		q = q.Where("id > ?", cursor)
	}

	var recs []models.Reconciliation
	if err := q.Order("id ASC").Limit(limit + 1).Find(&recs).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := len(recs) > limit
	if hasMore {
		recs = recs[:limit]
	}
	next := ""
	if hasMore && len(recs) > 0 {
		next = recs[len(recs)-1].ID.String()
	}
	return recs, next, hasMore, nil
}

// StatusTotal is one row of the per-status rollup.
type StatusTotal struct {
	Status        string `json:"status"`
	Count         int64  `json:"count"`
	MatchedAmount int64  `json:"matched_amount"`
	Unallocated   int64  `json:"unallocated"`
}

// StatusTotals rolls up count and amounts per reconciliation status.
func (r *ReconciliationRepository) StatusTotals(ctx context.Context, companyID uuid.UUID) ([]StatusTotal, error) {
	var totals []StatusTotal
	err := r.db.WithContext(ctx).
		Model(&models.Reconciliation{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(matched_amount), 0) AS matched_amount, COALESCE(SUM(unallocated), 0) AS unallocated").
		Where("company_id = ?", companyID).
		Group("status").
		Order("status ASC").
		Scan(&totals).Error
	return totals, err
}
