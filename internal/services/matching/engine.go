// Package matching selects the winning rule for a transaction and
// turns its action set into a proposed disposition. Planning is
// side-effect-free: nothing is persisted until the allocator commits.
package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/money"
	"bank-reconciliation-engine/internal/rules"
)

// InvoiceFinder resolves allocation targets. Implementations return
// (nil, nil) when no open invoice exists for the id.
type InvoiceFinder interface {
	OpenInvoice(ctx context.Context, companyID, invoiceID uuid.UUID) (*models.Invoice, error)
	// OpenInvoicesNearAmount returns open invoices whose outstanding
	// balance is within tolerance of amount.
	OpenInvoicesNearAmount(ctx context.Context, companyID uuid.UUID, amount, tolerance int64) ([]models.Invoice, error)
}

type Outcome string

const (
	OutcomeNoMatch    Outcome = "no_match"
	OutcomeIgnore     Outcome = "ignore"
	OutcomeCategorize Outcome = "categorize"
	OutcomeAllocate   Outcome = "allocate"
)

type ProposedSplit struct {
	InvoiceID uuid.UUID
	Amount    int64 // positive minor units
}

// Proposal is a planned allocation: MatchedAmount across Splits with
// any remainder explicitly left Unallocated.
type Proposal struct {
	MatchedAmount int64
	Unallocated   int64
	Splits        []ProposedSplit
}

// Plan is the disposition the winning rule proposes for a transaction.
type Plan struct {
	Rule     *models.MatchingRule
	Outcome  Outcome
	Category string
	Proposal *Proposal
	Reason   string // set when a matched rule could not resolve a target
}

type Engine struct {
	invoices InvoiceFinder
}

func NewEngine(invoices InvoiceFinder) *Engine {
	return &Engine{invoices: invoices}
}

// Plan evaluates the rule set against the transaction in priority
// order, highest first with ties broken by rule id ascending. The
// first rule whose conditions hold wins and evaluation stops there,
// so priority decides which of several overlapping rules governs an
// ambiguous transaction. No winning rule leaves the transaction
// unmatched for manual handling.
func (e *Engine) Plan(ctx context.Context, ruleSet []models.MatchingRule, tx *models.BankTransaction, precision int32) (*Plan, error) {
	ordered := make([]models.MatchingRule, len(ruleSet))
	copy(ordered, ruleSet)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	eval := rules.Evaluator{Precision: precision}
	for i := range ordered {
		rule := &ordered[i]
		conds, err := rules.DecodeConditions(rule.Conditions)
		if err != nil {
			// Active rules were validated at activation; a rule that
			// no longer decodes degrades to a non-match.
			continue
		}
		if !eval.Matches(conds, tx) {
			continue
		}
		return e.execute(ctx, rule, tx, precision)
	}
	return &Plan{Outcome: OutcomeNoMatch}, nil
}

func (e *Engine) execute(ctx context.Context, rule *models.MatchingRule, tx *models.BankTransaction, precision int32) (*Plan, error) {
	actions, err := rules.DecodeActions(rule.Actions)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}

	plan := &Plan{Rule: rule, Outcome: OutcomeNoMatch}
	for _, act := range actions {
		switch act.Kind {
		case rules.ActionIgnore:
			plan.Outcome = OutcomeIgnore
			return plan, nil
		case rules.ActionCategorize:
			plan.Category = act.Category
			if plan.Outcome == OutcomeNoMatch {
				plan.Outcome = OutcomeCategorize
			}
		case rules.ActionMatchInvoice:
			proposal, reason, err := e.matchInvoice(ctx, act, tx, precision)
			if err != nil {
				return nil, err
			}
			if proposal == nil {
				plan.Reason = reason
				continue
			}
			plan.Proposal = proposal
			plan.Outcome = OutcomeAllocate
		case rules.ActionSplit:
			proposal, err := e.split(act, tx, precision)
			if err != nil {
				return nil, err
			}
			plan.Proposal = proposal
			plan.Outcome = OutcomeAllocate
		}
	}
	return plan, nil
}

// matchInvoice resolves a single target invoice: by explicit reference
// when the action names one, otherwise by the amount/due-date
// heuristic. Candidates within the amount tolerance are ordered by
// due-date distance from the transaction date, ties broken by invoice
// ID, so resolution is deterministic.
func (e *Engine) matchInvoice(ctx context.Context, act rules.Action, tx *models.BankTransaction, precision int32) (*Proposal, string, error) {
	amount := tx.AbsAmount()

	var target *models.Invoice
	if act.InvoiceID != nil {
		inv, err := e.invoices.OpenInvoice(ctx, tx.CompanyID, *act.InvoiceID)
		if err != nil {
			return nil, "", err
		}
		target = inv
	} else {
		var tolerance int64
		if act.Tolerance != "" {
			v, err := money.ParseMinor(act.Tolerance, precision)
			if err != nil {
				return nil, "", err
			}
			tolerance = v
		}
		candidates, err := e.invoices.OpenInvoicesNearAmount(ctx, tx.CompanyID, amount, tolerance)
		if err != nil {
			return nil, "", err
		}
		if len(candidates) > 0 {
			sort.Slice(candidates, func(i, j int) bool {
				di := absDuration(candidates[i].DueDate.Sub(tx.OccurredAt))
				dj := absDuration(candidates[j].DueDate.Sub(tx.OccurredAt))
				if di != dj {
					return di < dj
				}
				return candidates[i].ID.String() < candidates[j].ID.String()
			})
			target = &candidates[0]
		}
	}

	if target == nil {
		return nil, "no open invoice resolved for allocation", nil
	}

	alloc := amount
	if target.Balance < alloc {
		alloc = target.Balance
	}
	return &Proposal{
		MatchedAmount: alloc,
		Unallocated:   amount - alloc,
		Splits:        []ProposedSplit{{InvoiceID: target.ID, Amount: alloc}},
	}, "", nil
}

// split expands a split action's allocations against the transaction
// amount. Percentages truncate toward zero at minor-unit precision.
// Each allocation is capped at the amount the earlier ones left
// uncovered, so the splits never sum past the transaction and
// Unallocated never goes negative.
func (e *Engine) split(act rules.Action, tx *models.BankTransaction, precision int32) (*Proposal, error) {
	amount := tx.AbsAmount()

	var splits []ProposedSplit
	var total int64
	for _, alloc := range act.Allocations {
		var v int64
		if alloc.Amount != "" {
			parsed, err := money.ParseMinor(alloc.Amount, precision)
			if err != nil {
				return nil, err
			}
			v = parsed
		} else {
			v = money.Percent(amount, alloc.Percent)
		}
		if remaining := amount - total; v > remaining {
			v = remaining
		}
		if v <= 0 {
			continue
		}
		splits = append(splits, ProposedSplit{InvoiceID: alloc.InvoiceID, Amount: v})
		total += v
	}

	return &Proposal{
		MatchedAmount: total,
		Unallocated:   amount - total,
		Splits:        splits,
	}, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
