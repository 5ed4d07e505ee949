package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-engine/internal/models"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry *models.ReconciliationAudit) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *AuditRepository) ListForTransaction(ctx context.Context, companyID, txID uuid.UUID) ([]models.ReconciliationAudit, error) {
	var entries []models.ReconciliationAudit
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND transaction_id = ?", companyID, txID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}
