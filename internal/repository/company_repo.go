package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-engine/internal/models"
)

type CompanyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

func (r *CompanyRepository) Create(ctx context.Context, company *models.Company) error {
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	if company.Precision == 0 {
		company.Precision = 2
	}
	return r.db.WithContext(ctx).Create(company).Error
}

func (r *CompanyRepository) GetCompany(ctx context.Context, companyID uuid.UUID) (*models.Company, error) {
	var company models.Company
	err := r.db.WithContext(ctx).First(&company, "id = ?", companyID).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

type BankAccountRepository struct {
	db *gorm.DB
}

func NewBankAccountRepository(db *gorm.DB) *BankAccountRepository {
	return &BankAccountRepository{db: db}
}

func (r *BankAccountRepository) Create(ctx context.Context, account *models.BankAccount) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *BankAccountRepository) GetBankAccount(ctx context.Context, companyID, accountID uuid.UUID) (*models.BankAccount, error) {
	var account models.BankAccount
	err := r.db.WithContext(ctx).
		First(&account, "id = ? AND company_id = ?", accountID, companyID).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}
