package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	handler "bank-reconciliation-engine/internal/handlers"
	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/services/allocation"
	"bank-reconciliation-engine/internal/services/matching"
	service "bank-reconciliation-engine/internal/services/reconciliation"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB) {
	companyRepo := repository.NewCompanyRepository(db)
	accountRepo := repository.NewBankAccountRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	txRepo := repository.NewBankTransactionRepository(db)
	ruleRepo := repository.NewMatchingRuleRepository(db)
	reconRepo := repository.NewReconciliationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	engine := matching.NewEngine(invoiceRepo)
	allocator := allocation.NewAllocator(repository.NewGormLedger(db))

	reconService := service.NewService(
		ruleRepo,
		txRepo,
		reconRepo,
		auditRepo,
		companyRepo,
		engine,
		allocator,
	)

	setupHandler := handler.NewSetupHandler(companyRepo, accountRepo, invoiceRepo)
	ruleHandler := handler.NewRuleHandler(ruleRepo, companyRepo)
	txHandler := handler.NewTransactionHandler(txRepo, auditRepo, companyRepo, reconService)
	reconHandler := handler.NewReconciliationHandler(reconService, reconRepo)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api.POST("/companies", setupHandler.CreateCompany)

	company := api.Group("/companies/:companyId")

	company.POST("/bank-accounts", setupHandler.CreateBankAccount)
	company.POST("/invoices", setupHandler.CreateInvoice)
	company.GET("/invoices", setupHandler.ListInvoices)

	// Rule authoring
	ruleGroup := company.Group("/rules")
	ruleGroup.POST("", ruleHandler.CreateRule)
	ruleGroup.GET("", ruleHandler.ListRules)
	ruleGroup.POST("/:ruleId/activate", ruleHandler.ActivateRule)
	ruleGroup.POST("/:ruleId/deactivate", ruleHandler.DeactivateRule)

	// Transaction-level routes
	tx := company.Group("/transactions")
	tx.POST("", txHandler.CreateTransaction)
	tx.POST("/:id/process", txHandler.ProcessTransaction)
	tx.POST("/:id/propose", reconHandler.Propose)
	tx.GET("/:id/audit", txHandler.GetAuditTrail)
	tx.GET("/:id/reconciliation", reconHandler.GetForTransaction)
	company.GET("/bank-accounts/:accountId/transactions", txHandler.ListTransactions)

	// Reconciliation lifecycle
	recon := company.Group("/reconciliations")
	recon.GET("", reconHandler.List)
	recon.POST("/post-all", reconHandler.PostAll)
	recon.POST("/:id/confirm", reconHandler.Confirm)
	recon.POST("/:id/reject", reconHandler.Reject)
	recon.POST("/:id/reopen", reconHandler.Reopen)
	recon.POST("/:id/post", reconHandler.Post)
	recon.POST("/:id/reverse", reconHandler.Reverse)
}
