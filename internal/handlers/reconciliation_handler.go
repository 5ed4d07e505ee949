package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bank-reconciliation-engine/internal/repository"
	service "bank-reconciliation-engine/internal/services/reconciliation"
)

type ReconciliationHandler struct {
	svc  *service.Service
	recs *repository.ReconciliationRepository
}

func NewReconciliationHandler(svc *service.Service, recRepo *repository.ReconciliationRepository) *ReconciliationHandler {
	return &ReconciliationHandler{svc: svc, recs: recRepo}
}

// Propose creates a manual proposal for a transaction the rule engine
// left unmatched.
func (h *ReconciliationHandler) Propose(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}
	txID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var payload struct {
		Splits []service.SplitRequest `json:"splits" binding:"required"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	rec, err := h.svc.ProposeManual(c.Request.Context(), companyID, txID, payload.Splits)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reconciliation": rec})
}

func (h *ReconciliationHandler) Confirm(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}
	recID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	rec, err := h.svc.Confirm(c.Request.Context(), companyID, recID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reconciliation confirmed", "reconciliation": rec})
}

func (h *ReconciliationHandler) Reject(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}
	recID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	_ = c.BindJSON(&payload)

	rec, err := h.svc.Reject(c.Request.Context(), companyID, recID, payload.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reconciliation rejected", "reconciliation": rec})
}

func (h *ReconciliationHandler) Reopen(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}
	recID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Reopen(c.Request.Context(), companyID, recID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transaction returned to unmatched"})
}

func (h *ReconciliationHandler) Post(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}
	recID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	rec, err := h.svc.Post(c.Request.Context(), companyID, recID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reconciliation posted", "reconciliation": rec})
}

// PostAll posts every confirmed reconciliation on a bank account.
func (h *ReconciliationHandler) PostAll(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}

	var payload struct {
		BankAccountID string `json:"bank_account_id" binding:"required"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	accountID, err := uuid.Parse(payload.BankAccountID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bank account ID"})
		return
	}

	count, err := h.svc.PostAll(c.Request.Context(), companyID, accountID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":                "post completed",
		"reconciliations_posted": count,
	})
}

func (h *ReconciliationHandler) Reverse(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}
	recID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	rec, err := h.svc.Reverse(c.Request.Context(), companyID, recID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reconciliation reversed", "reconciliation": rec})
}

// GetForTransaction returns the reconciliation attached to a
// transaction, if any.
func (h *ReconciliationHandler) GetForTransaction(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}
	txID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	rec, err := h.recs.GetByTransaction(c.Request.Context(), companyID, txID)
	if err != nil {
		fail(c, err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reconciliation for transaction"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reconciliation": rec})
}

func (h *ReconciliationHandler) List(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}

	items, nextCursor, hasMore, err := h.recs.ListReconciliations(
		c.Request.Context(), companyID,
		c.Query("status"), c.Query("cursor"), 50)
	if err != nil {
		fail(c, err)
		return
	}
	stats, err := h.recs.StatusTotals(c.Request.Context(), companyID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"next_cursor": nextCursor,
		"has_more":    hasMore,
		"stats":       stats,
	})
}
