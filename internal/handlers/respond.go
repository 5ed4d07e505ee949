package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/services/allocation"
	service "bank-reconciliation-engine/internal/services/reconciliation"
)

// fail maps domain errors onto HTTP statuses. Contention is 409 so the
// client retries; validation failures are 422; everything unexpected
// stays a 500.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, allocation.ErrConcurrentAllocation),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, service.ErrTransactionBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, allocation.ErrAllocationExceedsAvailable),
		errors.Is(err, allocation.ErrInvoiceBalanceInsufficient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}
