package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/money"
	"bank-reconciliation-engine/internal/repository"
	service "bank-reconciliation-engine/internal/services/reconciliation"
)

type TransactionHandler struct {
	txs       *repository.BankTransactionRepository
	audits    *repository.AuditRepository
	companies *repository.CompanyRepository
	svc       *service.Service
}

func NewTransactionHandler(
	txRepo *repository.BankTransactionRepository,
	auditRepo *repository.AuditRepository,
	companyRepo *repository.CompanyRepository,
	svc *service.Service,
) *TransactionHandler {
	return &TransactionHandler{txs: txRepo, audits: auditRepo, companies: companyRepo, svc: svc}
}

type transactionPayload struct {
	BankAccountID string `json:"bank_account_id" binding:"required"`
	Amount        string `json:"amount" binding:"required"` // signed decimal string
	Currency      string `json:"currency"`
	OccurredAt    string `json:"occurred_at" binding:"required"` // YYYY-MM-DD
	Description   string `json:"description"`
	Reference     string `json:"reference"`
}

// CreateTransaction ingests one bank feed line. Amounts arrive as
// decimal strings and are stored as signed minor units at the
// company's precision.
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}

	var payload transactionPayload
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	accountID, err := uuid.Parse(payload.BankAccountID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bank account ID"})
		return
	}

	company, err := h.companies.GetCompany(c.Request.Context(), companyID)
	if err != nil {
		fail(c, err)
		return
	}
	amount, err := money.ParseMinor(payload.Amount, company.Precision)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount: " + err.Error()})
		return
	}
	occurredAt, err := time.Parse(time.DateOnly, payload.OccurredAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid occurred_at, expected YYYY-MM-DD"})
		return
	}
	currency := payload.Currency
	if currency == "" {
		currency = company.Currency
	}

	tx := &models.BankTransaction{
		CompanyID:     companyID,
		BankAccountID: accountID,
		Amount:        amount,
		Currency:      currency,
		OccurredAt:    occurredAt,
		Description:   payload.Description,
		Reference:     payload.Reference,
		Status:        models.TransactionPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.txs.Create(c.Request.Context(), tx); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}

// ProcessTransaction runs the rule engine over one transaction.
func (h *TransactionHandler) ProcessTransaction(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}
	txID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.svc.ProcessTransaction(c.Request.Context(), companyID, txID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}
	accountID, ok := pathUUID(c, "accountId")
	if !ok {
		return
	}

	items, nextCursor, hasMore, err := h.txs.ListTransactions(
		c.Request.Context(), companyID, accountID,
		c.Query("status"), c.Query("cursor"), 50)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"next_cursor": nextCursor,
		"has_more":    hasMore,
	})
}

// GetAuditTrail returns the full audit history for one transaction.
func (h *TransactionHandler) GetAuditTrail(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}
	txID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	entries, err := h.audits.ListForTransaction(c.Request.Context(), companyID, txID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
