package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/money"
	"bank-reconciliation-engine/internal/repository"
)

// SetupHandler covers the reference data the engine reconciles
// against: companies, bank accounts and invoices.
type SetupHandler struct {
	companies *repository.CompanyRepository
	accounts  *repository.BankAccountRepository
	invoices  *repository.InvoiceRepository
}

func NewSetupHandler(
	companyRepo *repository.CompanyRepository,
	accountRepo *repository.BankAccountRepository,
	invoiceRepo *repository.InvoiceRepository,
) *SetupHandler {
	return &SetupHandler{companies: companyRepo, accounts: accountRepo, invoices: invoiceRepo}
}

func (h *SetupHandler) CreateCompany(c *gin.Context) {
	var payload struct {
		Name      string `json:"name" binding:"required"`
		Currency  string `json:"currency" binding:"required"`
		Precision int32  `json:"precision"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	company := &models.Company{
		Name:      payload.Name,
		Currency:  payload.Currency,
		Precision: payload.Precision,
	}
	if err := h.companies.Create(c.Request.Context(), company); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"company": company})
}

func (h *SetupHandler) CreateBankAccount(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}

	var payload struct {
		Name     string `json:"name" binding:"required"`
		Number   string `json:"number"`
		Currency string `json:"currency"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	account := &models.BankAccount{
		CompanyID: companyID,
		Name:      payload.Name,
		Number:    payload.Number,
		Currency:  payload.Currency,
	}
	if err := h.accounts.Create(c.Request.Context(), account); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bank_account": account})
}

func (h *SetupHandler) CreateInvoice(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}

	var payload struct {
		InvoiceNumber string `json:"invoice_number"`
		CustomerName  string `json:"customer_name" binding:"required"`
		Total         string `json:"total" binding:"required"` // decimal string
		Status        string `json:"status"`
		DueDate       string `json:"due_date" binding:"required"` // YYYY-MM-DD
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	company, err := h.companies.GetCompany(c.Request.Context(), companyID)
	if err != nil {
		fail(c, err)
		return
	}
	total, err := money.ParseMinor(payload.Total, company.Precision)
	if err != nil || total <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid total"})
		return
	}
	dueDate, err := time.Parse(time.DateOnly, payload.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due date, expected YYYY-MM-DD"})
		return
	}

	invoiceNumber := payload.InvoiceNumber
	if invoiceNumber == "" {
		invoiceNumber = uuid.New().String()
	}
	status := payload.Status
	if status == "" {
		status = models.InvoiceSent
	}

	invoice := &models.Invoice{
		CompanyID:     companyID,
		InvoiceNumber: invoiceNumber,
		CustomerName:  payload.CustomerName,
		Total:         total,
		Balance:       total,
		Currency:      company.Currency,
		Status:        status,
		DueDate:       dueDate,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.invoices.Create(c.Request.Context(), invoice); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invoice": invoice})
}

func (h *SetupHandler) ListInvoices(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}
	var statuses []string
	if s := c.Query("status"); s != "" {
		statuses = []string{s}
	}
	invoices, err := h.invoices.ListInvoices(c.Request.Context(), companyID, statuses)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}
