package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/rules"
)

type RuleHandler struct {
	rules     *repository.MatchingRuleRepository
	companies *repository.CompanyRepository
}

func NewRuleHandler(ruleRepo *repository.MatchingRuleRepository, companyRepo *repository.CompanyRepository) *RuleHandler {
	return &RuleHandler{rules: ruleRepo, companies: companyRepo}
}

type rulePayload struct {
	Name       string          `json:"name" binding:"required"`
	Priority   int             `json:"priority"`
	Active     *bool           `json:"active"`
	Conditions json.RawMessage `json:"conditions"`
	Actions    json.RawMessage `json:"actions" binding:"required"`
}

// CreateRule validates the rule definition against the company's
// currency precision and stores it. A definition that fails validation
// never reaches the database.
func (h *RuleHandler) CreateRule(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}

	var payload rulePayload
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.Conditions == nil {
		payload.Conditions = json.RawMessage("[]")
	}

	company, err := h.companies.GetCompany(c.Request.Context(), companyID)
	if err != nil {
		fail(c, err)
		return
	}

	if !h.validate(c, payload.Conditions, payload.Actions, company.Precision) {
		return
	}

	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	rule := &models.MatchingRule{
		CompanyID:  companyID,
		Name:       payload.Name,
		Priority:   payload.Priority,
		Active:     active,
		Conditions: datatypes.JSON(payload.Conditions),
		Actions:    datatypes.JSON(payload.Actions),
	}
	if err := h.rules.Create(c.Request.Context(), rule); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}

func (h *RuleHandler) ListRules(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}
	ruleSet, err := h.rules.ListRules(c.Request.Context(), companyID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": ruleSet})
}

// ActivateRule re-validates the stored definition before turning the
// rule back on. A definition that has gone stale stays inactive.
func (h *RuleHandler) ActivateRule(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}
	ruleID, ok := pathUUID(c, "ruleId")
	if !ok {
		return
	}

	rule, err := h.rules.GetRule(c.Request.Context(), companyID, ruleID)
	if err != nil {
		fail(c, err)
		return
	}
	company, err := h.companies.GetCompany(c.Request.Context(), companyID)
	if err != nil {
		fail(c, err)
		return
	}
	if !h.validate(c, json.RawMessage(rule.Conditions), json.RawMessage(rule.Actions), company.Precision) {
		return
	}

	if err := h.rules.SetActive(c.Request.Context(), companyID, ruleID, true); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rule activated"})
}

func (h *RuleHandler) DeactivateRule(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId")
	if !ok {
		return
	}
	ruleID, ok := pathUUID(c, "ruleId")
	if !ok {
		return
	}
	if err := h.rules.SetActive(c.Request.Context(), companyID, ruleID, false); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rule deactivated"})
}

// validate decodes and checks a rule definition, writing a 422 with
// every violation when it does not hold.
func (h *RuleHandler) validate(c *gin.Context, conditions, actions json.RawMessage, precision int32) bool {
	conds, err := rules.DecodeConditions(datatypes.JSON(conditions))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return false
	}
	acts, err := rules.DecodeActions(datatypes.JSON(actions))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return false
	}
	if violations := rules.ValidateDefinition(conds, acts, precision); len(violations) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      "invalid rule definition",
			"violations": violations,
		})
		return false
	}
	return true
}
