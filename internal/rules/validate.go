package rules

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-reconciliation-engine/internal/money"
)

// ErrInvalidRuleDefinition wraps every structural defect found at
// activation time. Malformed rules are rejected here, never surfaced
// mid-evaluation.
var ErrInvalidRuleDefinition = errors.New("invalid rule definition")

// DefinitionError describes a single structural defect in a rule.
type DefinitionError struct {
	Clause string `json:"clause"` // "condition" or "action"
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

func (e DefinitionError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Clause, e.Index, e.Reason)
}

func (e DefinitionError) Unwrap() error { return ErrInvalidRuleDefinition }

var textOps = map[Operator]bool{OpEquals: true, OpContains: true, OpMatches: true}
var amountOps = map[Operator]bool{OpEquals: true, OpGreaterThan: true, OpLessThan: true, OpBetween: true}
var dateOps = map[Operator]bool{OpOn: true, OpBefore: true, OpAfter: true, OpBetween: true}

// ValidateDefinition structurally checks a rule's condition and action
// sets before activation. An empty condition set is legal (catch-all
// rules); an empty action set is not. Precision is the company's
// minor-unit precision, used to vet money strings.
func ValidateDefinition(conds []Condition, actions []Action, precision int32) []DefinitionError {
	var errs []DefinitionError

	for i, c := range conds {
		if reason := checkCondition(c, precision); reason != "" {
			errs = append(errs, DefinitionError{Clause: "condition", Index: i, Reason: reason})
		}
	}

	if len(actions) == 0 {
		errs = append(errs, DefinitionError{Clause: "action", Index: 0, Reason: "rule must carry at least one action"})
	}
	dispositions := 0
	for i, a := range actions {
		if reason := checkAction(a, precision); reason != "" {
			errs = append(errs, DefinitionError{Clause: "action", Index: i, Reason: reason})
			continue
		}
		switch a.Kind {
		case ActionIgnore:
			if len(actions) > 1 {
				errs = append(errs, DefinitionError{Clause: "action", Index: i, Reason: "ignore must be the only action"})
			}
		case ActionMatchInvoice, ActionSplit:
			dispositions++
		}
	}
	if dispositions > 1 {
		errs = append(errs, DefinitionError{Clause: "action", Index: 0, Reason: "at most one allocation action per rule"})
	}
	return errs
}

func checkCondition(c Condition, precision int32) string {
	switch c.Field {
	case FieldDescription, FieldReference:
		if !textOps[c.Operator] {
			return fmt.Sprintf("operator %q not valid for text field %q", c.Operator, c.Field)
		}
		if c.Value == "" {
			return "text condition requires a value"
		}
		if c.Operator == OpMatches {
			if _, err := regexp.Compile(c.Value); err != nil {
				return fmt.Sprintf("invalid pattern: %v", err)
			}
		}
	case FieldAmount:
		if !amountOps[c.Operator] {
			return fmt.Sprintf("operator %q not valid for amount", c.Operator)
		}
		if c.Operator == OpBetween {
			return checkRange(c.Values, func(s string) error {
				_, err := money.ParseMinor(s, precision)
				return err
			})
		}
		if _, err := money.ParseMinor(c.Value, precision); err != nil {
			return err.Error()
		}
	case FieldDate:
		if !dateOps[c.Operator] {
			return fmt.Sprintf("operator %q not valid for date", c.Operator)
		}
		if c.Operator == OpBetween {
			return checkRange(c.Values, func(s string) error {
				_, err := time.Parse(time.DateOnly, s)
				return err
			})
		}
		if _, err := time.Parse(time.DateOnly, c.Value); err != nil {
			return fmt.Sprintf("invalid date %q", c.Value)
		}
	default:
		return fmt.Sprintf("unknown field %q", c.Field)
	}
	return ""
}

func checkRange(values []string, parse func(string) error) string {
	if len(values) != 2 {
		return "between requires exactly two values"
	}
	for _, v := range values {
		if err := parse(v); err != nil {
			return fmt.Sprintf("invalid range bound %q", v)
		}
	}
	return ""
}

func checkAction(a Action, precision int32) string {
	switch a.Kind {
	case ActionIgnore:
		return ""
	case ActionCategorize:
		if a.Category == "" {
			return "categorize requires a category"
		}
	case ActionMatchInvoice:
		if a.Tolerance != "" {
			if _, err := money.ParseMinor(a.Tolerance, precision); err != nil {
				return err.Error()
			}
		}
	case ActionSplit:
		if len(a.Allocations) == 0 {
			return "split requires at least one allocation"
		}
		pctTotal := decimal.Zero
		for _, alloc := range a.Allocations {
			if alloc.InvoiceID == uuid.Nil {
				return "split allocation requires an invoice"
			}
			hasAmount := alloc.Amount != ""
			hasPercent := alloc.Percent.IsPositive()
			if hasAmount == hasPercent {
				return "split allocation requires exactly one of amount or percent"
			}
			if hasAmount {
				v, err := money.ParseMinor(alloc.Amount, precision)
				if err != nil {
					return err.Error()
				}
				if v <= 0 {
					return "split amount must be positive"
				}
			}
			pctTotal = pctTotal.Add(alloc.Percent)
		}
		if pctTotal.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Sprintf("split percentages sum to %s%%, over 100%%", pctTotal)
		}
	default:
		return fmt.Sprintf("unknown action kind %q", a.Kind)
	}
	return ""
}
