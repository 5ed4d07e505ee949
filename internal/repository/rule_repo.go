package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-engine/internal/models"
)

type MatchingRuleRepository struct {
	db *gorm.DB
}

func NewMatchingRuleRepository(db *gorm.DB) *MatchingRuleRepository {
	return &MatchingRuleRepository{db: db}
}

func (r *MatchingRuleRepository) Create(ctx context.Context, rule *models.MatchingRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return r.db.WithContext(ctx).Create(rule).Error
}

// ActiveRulesForCompany returns the company's active rules in evaluation
// order: highest priority first, ties broken by rule id so the ordering
// is stable across restarts.
func (r *MatchingRuleRepository) ActiveRulesForCompany(ctx context.Context, companyID uuid.UUID) ([]models.MatchingRule, error) {
	var ruleSet []models.MatchingRule
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND active = ?", companyID, true).
		Order("priority DESC, id ASC").
		Find(&ruleSet).Error
	return ruleSet, err
}

func (r *MatchingRuleRepository) ListRules(ctx context.Context, companyID uuid.UUID) ([]models.MatchingRule, error) {
	var ruleSet []models.MatchingRule
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("priority DESC, id ASC").
		Find(&ruleSet).Error
	return ruleSet, err
}

func (r *MatchingRuleRepository) GetRule(ctx context.Context, companyID, ruleID uuid.UUID) (*models.MatchingRule, error) {
	var rule models.MatchingRule
	err := r.db.WithContext(ctx).
		First(&rule, "id = ? AND company_id = ?", ruleID, companyID).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// SetActive flips a rule's active flag. Rules are deactivated rather
// than deleted so reconciliations keep a valid rule reference.
func (r *MatchingRuleRepository) SetActive(ctx context.Context, companyID, ruleID uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.MatchingRule{}).
		Where("id = ? AND company_id = ?", ruleID, companyID).
		Updates(map[string]any{"active": active, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
