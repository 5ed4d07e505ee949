package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-engine/internal/models"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	if invoice.Balance == 0 && invoice.Status != models.InvoicePaid {
		invoice.Balance = invoice.Total
	}
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *InvoiceRepository) GetInvoice(ctx context.Context, companyID, invoiceID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		First(&invoice, "id = ? AND company_id = ?", invoiceID, companyID).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// OpenInvoice resolves an invoice that can still receive payments.
// A missing or closed invoice is (nil, nil), not an error: the caller
// treats both as "no target" and falls back to manual handling.
func (r *InvoiceRepository) OpenInvoice(ctx context.Context, companyID, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := r.GetInvoice(ctx, companyID, invoiceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !invoice.Open() {
		return nil, nil
	}
	return invoice, nil
}

// OpenInvoicesNearAmount returns open invoices whose outstanding balance
// is within tolerance of amount, oldest due date first.
func (r *InvoiceRepository) OpenInvoicesNearAmount(ctx context.Context, companyID uuid.UUID, amount, tolerance int64) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Where("status NOT IN ?", []string{models.InvoiceDraft, models.InvoicePaid}).
		Where("balance > 0").
		Where("balance BETWEEN ? AND ?", amount-tolerance, amount+tolerance).
		Order("due_date ASC, id ASC").
		Find(&invoices).Error
	return invoices, err
}

func (r *InvoiceRepository) ListInvoices(ctx context.Context, companyID uuid.UUID, statuses []string) ([]models.Invoice, error) {
	q := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var invoices []models.Invoice
	err := q.Order("due_date ASC").Find(&invoices).Error
	return invoices, err
}
