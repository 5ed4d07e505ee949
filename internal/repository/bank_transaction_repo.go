package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-engine/internal/models"
)

type BankTransactionRepository struct {
	db *gorm.DB
}

func NewBankTransactionRepository(db *gorm.DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: db}
}

func (r *BankTransactionRepository) Create(ctx context.Context, tx *models.BankTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.Status == "" {
		tx.Status = models.TransactionPending
	}
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *BankTransactionRepository) GetTransaction(ctx context.Context, companyID, txID uuid.UUID) (*models.BankTransaction, error) {
	var tx models.BankTransaction
	err := r.db.WithContext(ctx).
		First(&tx, "id = ? AND company_id = ?", txID, companyID).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *BankTransactionRepository) UpdateTransactionReview(ctx context.Context, txID uuid.UUID, status, category string) error {
	res := r.db.WithContext(ctx).
		Model(&models.BankTransaction{}).
		Where("id = ?", txID).
		Updates(map[string]any{"status": status, "category": category})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListTransactions pages through an account's transactions with a
// keyset cursor on the transaction id.
func (r *BankTransactionRepository) ListTransactions(ctx context.Context, companyID, bankAccountID uuid.UUID, status, cursor string, limit int) ([]models.BankTransaction, string, bool, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).
		Where("company_id = ? AND bank_account_id = ?", companyID, bankAccountID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if cursor != "" {
		q = q.Where("id > ?", cursor)
	}

	var txs []models.BankTransaction
	if err := q.Order("id ASC").Limit(limit + 1).Find(&txs).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := len(txs) > limit
	if hasMore {
		txs = txs[:limit]
	}
	next := ""
	if hasMore && len(txs) > 0 {
		next = txs[len(txs)-1].ID.String()
	}
	return txs, next, hasMore, nil
}
