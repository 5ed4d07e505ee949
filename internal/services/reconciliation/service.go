package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/services/allocation"
	"bank-reconciliation-engine/internal/services/matching"
)

// ErrTransactionBusy is returned when a transaction already has a live
// reconciliation attached and a second one is requested.
var ErrTransactionBusy = errors.New("transaction already has an open reconciliation")

// RuleStore supplies a company's active rules in evaluation order.
type RuleStore interface {
	ActiveRulesForCompany(ctx context.Context, companyID uuid.UUID) ([]models.MatchingRule, error)
}

// TransactionStore reads and updates bank transactions.
type TransactionStore interface {
	GetTransaction(ctx context.Context, companyID, txID uuid.UUID) (*models.BankTransaction, error)
	UpdateTransactionReview(ctx context.Context, txID uuid.UUID, status, category string) error
}

// ReconciliationStore persists reconciliations outside the commit path.
// Confirm and Reverse go through allocation.Ledger instead, which writes
// everything in one database transaction.
type ReconciliationStore interface {
	CreateProposed(ctx context.Context, rec *models.Reconciliation) error
	GetReconciliation(ctx context.Context, companyID, recID uuid.UUID) (*models.Reconciliation, error)
	MarkRejected(ctx context.Context, recID uuid.UUID, reason string) error
	MarkPosted(ctx context.Context, recID uuid.UUID, postedAt time.Time) error
	ListConfirmed(ctx context.Context, companyID, bankAccountID uuid.UUID) ([]models.Reconciliation, error)
	DiscardRejected(ctx context.Context, recID uuid.UUID) error
}

// AuditStore appends immutable audit entries.
type AuditStore interface {
	Append(ctx context.Context, entry *models.ReconciliationAudit) error
}

// CompanyStore resolves company settings, notably currency precision.
type CompanyStore interface {
	GetCompany(ctx context.Context, companyID uuid.UUID) (*models.Company, error)
}

// Planner decides what to do with a transaction. Satisfied by matching.Engine.
type Planner interface {
	Plan(ctx context.Context, ruleSet []models.MatchingRule, tx *models.BankTransaction, precision int32) (*matching.Plan, error)
}

// Committer moves proposals through confirmation and reversal.
// Satisfied by allocation.Allocator.
type Committer interface {
	Confirm(ctx context.Context, rec *models.Reconciliation, tx *models.BankTransaction) error
	Reverse(ctx context.Context, rec *models.Reconciliation, tx *models.BankTransaction) error
}

// Service coordinates rule evaluation, proposal lifecycle and audit trail
// for a company's bank transactions.
type Service struct {
	rules     RuleStore
	txs       TransactionStore
	recs      ReconciliationStore
	audits    AuditStore
	companies CompanyStore
	planner   Planner
	committer Committer
}

func NewService(
	rules RuleStore,
	txs TransactionStore,
	recs ReconciliationStore,
	audits AuditStore,
	companies CompanyStore,
	planner Planner,
	committer Committer,
) *Service {
	return &Service{
		rules:     rules,
		txs:       txs,
		recs:      recs,
		audits:    audits,
		companies: companies,
		planner:   planner,
		committer: committer,
	}
}

// ProcessResult reports what happened to a single transaction.
type ProcessResult struct {
	Transaction    *models.BankTransaction `json:"transaction"`
	Plan           *matching.Plan          `json:"plan"`
	Reconciliation *models.Reconciliation  `json:"reconciliation,omitempty"`
}

// ProcessTransaction runs the rule engine over one transaction and applies
// the winning rule's actions. Allocation actions produce a proposed
// reconciliation; nothing is committed here.
func (s *Service) ProcessTransaction(ctx context.Context, companyID, txID uuid.UUID) (*ProcessResult, error) {
	tx, err := s.txs.GetTransaction(ctx, companyID, txID)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.TransactionPending && tx.Status != models.TransactionUnmatched {
		return nil, fmt.Errorf("transaction %s is %s: %w", tx.ID, tx.Status, ErrTransactionBusy)
	}

	company, err := s.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	ruleSet, err := s.rules.ActiveRulesForCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	plan, err := s.planner.Plan(ctx, ruleSet, tx, company.Precision)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{Transaction: tx, Plan: plan}

	switch plan.Outcome {
	case matching.OutcomeIgnore:
		if err := s.setReview(ctx, tx, models.TransactionReviewed, ""); err != nil {
			return nil, err
		}
		s.audit(ctx, companyID, nil, tx.ID, models.AuditIgnored, map[string]any{
			"rule_id": plan.Rule.ID, "rule": plan.Rule.Name,
		})

	case matching.OutcomeCategorize:
		if err := s.setReview(ctx, tx, models.TransactionCategorized, plan.Category); err != nil {
			return nil, err
		}
		s.audit(ctx, companyID, nil, tx.ID, models.AuditCategorized, map[string]any{
			"rule_id": plan.Rule.ID, "rule": plan.Rule.Name, "category": plan.Category,
		})

	case matching.OutcomeAllocate:
		rec, err := s.propose(ctx, companyID, tx, plan)
		if err != nil {
			return nil, err
		}
		result.Reconciliation = rec

	default:
		if err := s.setReview(ctx, tx, models.TransactionUnmatched, ""); err != nil {
			return nil, err
		}
		s.audit(ctx, companyID, nil, tx.ID, models.AuditNoRule, map[string]any{
			"reason": plan.Reason,
		})
	}

	return result, nil
}

func (s *Service) propose(ctx context.Context, companyID uuid.UUID, tx *models.BankTransaction, plan *matching.Plan) (*models.Reconciliation, error) {
	now := time.Now().UTC()
	rec := &models.Reconciliation{
		ID:            uuid.New(),
		CompanyID:     companyID,
		BankAccountID: tx.BankAccountID,
		TransactionID: tx.ID,
		RuleID:        &plan.Rule.ID,
		MatchedAmount: plan.Proposal.MatchedAmount,
		Unallocated:   plan.Proposal.Unallocated,
		Status:        models.ReconciliationProposed,
		CreatedAt:     now,
	}
	for _, ps := range plan.Proposal.Splits {
		rec.Splits = append(rec.Splits, models.ReconciliationSplit{
			ID:               uuid.New(),
			ReconciliationID: rec.ID,
			InvoiceID:        ps.InvoiceID,
			Amount:           ps.Amount,
			CreatedAt:        now,
		})
	}
	if err := s.recs.CreateProposed(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.setReview(ctx, tx, models.TransactionProposed, plan.Category); err != nil {
		return nil, err
	}
	s.audit(ctx, companyID, &rec.ID, tx.ID, models.AuditProposed, map[string]any{
		"rule_id":        plan.Rule.ID,
		"rule":           plan.Rule.Name,
		"matched_amount": rec.MatchedAmount,
		"unallocated":    rec.Unallocated,
		"splits":         len(rec.Splits),
	})
	return rec, nil
}

// SplitRequest is one invoice allocation in a manual proposal.
type SplitRequest struct {
	InvoiceID uuid.UUID `json:"invoice_id" binding:"required"`
	Amount    int64     `json:"amount" binding:"required"`
}

// ProposeManual builds a proposed reconciliation from user-supplied splits,
// bypassing the rule engine. Used for transactions no rule could place.
func (s *Service) ProposeManual(ctx context.Context, companyID, txID uuid.UUID, splits []SplitRequest) (*models.Reconciliation, error) {
	tx, err := s.txs.GetTransaction(ctx, companyID, txID)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.TransactionPending && tx.Status != models.TransactionUnmatched {
		return nil, fmt.Errorf("transaction %s is %s: %w", tx.ID, tx.Status, ErrTransactionBusy)
	}
	if len(splits) == 0 {
		return nil, errors.New("at least one split is required")
	}

	var total int64
	now := time.Now().UTC()
	rec := &models.Reconciliation{
		ID:            uuid.New(),
		CompanyID:     companyID,
		BankAccountID: tx.BankAccountID,
		TransactionID: tx.ID,
		Status:        models.ReconciliationProposed,
		CreatedAt:     now,
	}
	for _, sr := range splits {
		if sr.Amount <= 0 {
			return nil, fmt.Errorf("split for invoice %s must be positive", sr.InvoiceID)
		}
		total += sr.Amount
		rec.Splits = append(rec.Splits, models.ReconciliationSplit{
			ID:               uuid.New(),
			ReconciliationID: rec.ID,
			InvoiceID:        sr.InvoiceID,
			Amount:           sr.Amount,
			CreatedAt:        now,
		})
	}
	rec.MatchedAmount = total
	avail := tx.AbsAmount()
	if total > avail {
		return nil, fmt.Errorf("splits total %d exceed transaction amount %d: %w",
			total, avail, allocation.ErrAllocationExceedsAvailable)
	}
	rec.Unallocated = avail - total

	if err := s.recs.CreateProposed(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.setReview(ctx, tx, models.TransactionProposed, ""); err != nil {
		return nil, err
	}
	s.audit(ctx, companyID, &rec.ID, tx.ID, models.AuditProposed, map[string]any{
		"manual":         true,
		"matched_amount": rec.MatchedAmount,
		"splits":         len(rec.Splits),
	})
	return rec, nil
}

// Confirm commits a proposed reconciliation. Validation failures leave the
// reconciliation rejected with the failure recorded; lock contention leaves
// it proposed so the caller can retry.
func (s *Service) Confirm(ctx context.Context, companyID, recID uuid.UUID) (*models.Reconciliation, error) {
	rec, err := s.recs.GetReconciliation(ctx, companyID, recID)
	if err != nil {
		return nil, err
	}
	tx, err := s.txs.GetTransaction(ctx, companyID, rec.TransactionID)
	if err != nil {
		return nil, err
	}

	if err := s.committer.Confirm(ctx, rec, tx); err != nil {
		if errors.Is(err, allocation.ErrConcurrentAllocation) {
			return nil, err
		}
		if rec.Status == models.ReconciliationRejected {
			s.audit(ctx, companyID, &rec.ID, tx.ID, models.AuditRejected, map[string]any{
				"reason": rec.RejectReason,
			})
		}
		return nil, err
	}

	s.audit(ctx, companyID, &rec.ID, tx.ID, models.AuditConfirmed, map[string]any{
		"matched_amount": rec.MatchedAmount,
		"payments":       len(rec.Splits),
	})
	return rec, nil
}

// Reject moves a proposed reconciliation to rejected with an operator reason.
func (s *Service) Reject(ctx context.Context, companyID, recID uuid.UUID, reason string) (*models.Reconciliation, error) {
	rec, err := s.recs.GetReconciliation(ctx, companyID, recID)
	if err != nil {
		return nil, err
	}
	if err := rec.Transition(models.ReconciliationRejected); err != nil {
		return nil, err
	}
	rec.RejectReason = reason
	if err := s.recs.MarkRejected(ctx, recID, reason); err != nil {
		return nil, err
	}
	s.audit(ctx, companyID, &rec.ID, rec.TransactionID, models.AuditRejected, map[string]any{
		"reason": reason,
	})
	return rec, nil
}

// Reopen discards a rejected reconciliation and returns its transaction to
// the unmatched pool. The proposal never touched any balance, so discarding
// it is the whole recovery.
func (s *Service) Reopen(ctx context.Context, companyID, recID uuid.UUID) error {
	rec, err := s.recs.GetReconciliation(ctx, companyID, recID)
	if err != nil {
		return err
	}
	if rec.Status != models.ReconciliationRejected {
		return fmt.Errorf("reconciliation %s is %s: %w", rec.ID, rec.Status, models.ErrInvalidTransition)
	}
	if err := s.recs.DiscardRejected(ctx, recID); err != nil {
		return err
	}
	if err := s.txs.UpdateTransactionReview(ctx, rec.TransactionID, models.TransactionUnmatched, ""); err != nil {
		return err
	}
	s.audit(ctx, companyID, &rec.ID, rec.TransactionID, models.AuditReopened, nil)
	return nil
}

// Post finalizes a confirmed reconciliation.
func (s *Service) Post(ctx context.Context, companyID, recID uuid.UUID) (*models.Reconciliation, error) {
	rec, err := s.recs.GetReconciliation(ctx, companyID, recID)
	if err != nil {
		return nil, err
	}
	if err := rec.Transition(models.ReconciliationPosted); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rec.PostedAt = &now
	if err := s.recs.MarkPosted(ctx, recID, now); err != nil {
		return nil, err
	}
	s.audit(ctx, companyID, &rec.ID, rec.TransactionID, models.AuditPosted, nil)
	return rec, nil
}

// PostAll posts every confirmed reconciliation on a bank account and
// returns how many were posted.
func (s *Service) PostAll(ctx context.Context, companyID, bankAccountID uuid.UUID) (int, error) {
	confirmed, err := s.recs.ListConfirmed(ctx, companyID, bankAccountID)
	if err != nil {
		return 0, err
	}
	posted := 0
	for i := range confirmed {
		if _, err := s.Post(ctx, companyID, confirmed[i].ID); err != nil {
			return posted, fmt.Errorf("posting %s: %w", confirmed[i].ID, err)
		}
		posted++
	}
	return posted, nil
}

// Reverse backs out a posted reconciliation with offsetting payments and
// returns the transaction to the unmatched pool.
func (s *Service) Reverse(ctx context.Context, companyID, recID uuid.UUID) (*models.Reconciliation, error) {
	rec, err := s.recs.GetReconciliation(ctx, companyID, recID)
	if err != nil {
		return nil, err
	}
	tx, err := s.txs.GetTransaction(ctx, companyID, rec.TransactionID)
	if err != nil {
		return nil, err
	}
	if err := s.committer.Reverse(ctx, rec, tx); err != nil {
		return nil, err
	}
	s.audit(ctx, companyID, &rec.ID, tx.ID, models.AuditReversed, map[string]any{
		"matched_amount": rec.MatchedAmount,
	})
	return rec, nil
}

func (s *Service) setReview(ctx context.Context, tx *models.BankTransaction, status, category string) error {
	if err := s.txs.UpdateTransactionReview(ctx, tx.ID, status, category); err != nil {
		return err
	}
	tx.Status = status
	if category != "" {
		tx.Category = category
	}
	return nil
}

// audit failures are logged, never surfaced: the trail is best effort and
// must not undo a state change that already happened.
func (s *Service) audit(ctx context.Context, companyID uuid.UUID, recID *uuid.UUID, txID uuid.UUID, action string, details map[string]any) {
	var blob json.RawMessage
	if details != nil {
		blob, _ = json.Marshal(details)
	}
	entry := &models.ReconciliationAudit{
		ID:               uuid.New(),
		CompanyID:        companyID,
		ReconciliationID: recID,
		TransactionID:    txID,
		Action:           action,
		Details:          datatypes.JSON(blob),
		PerformedBy:      "system",
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.audits.Append(ctx, entry); err != nil {
		log.Printf("audit append failed for transaction %s: %v", txID, err)
	}
}
