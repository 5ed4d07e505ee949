// Package rules defines the typed condition and action vocabulary for
// matching rules and the pure evaluation of conditions against bank
// transactions. Definitions are validated once, when a rule is
// activated; evaluation never errors.
package rules

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Field selects which transaction attribute a condition inspects.
type Field string

const (
	FieldDescription Field = "description"
	FieldReference   Field = "reference"
	FieldAmount      Field = "amount"
	FieldDate        Field = "date"
)

// Operator is a comparison applied to a field. Which operators are
// legal depends on the field's kind; mismatches are rejected at
// activation and evaluate to non-match if they slip through.
type Operator string

const (
	// text
	OpEquals   Operator = "equals"
	OpContains Operator = "contains"
	OpMatches  Operator = "matches"
	// numeric / date
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpBetween     Operator = "between"
	OpOn          Operator = "on"
	OpBefore      Operator = "before"
	OpAfter       Operator = "after"
)

// Condition is one clause of a rule's condition set. Clauses combine
// with AND semantics; clauses sharing a non-empty OrGroup form a
// disjunction that holds when any one member holds.
type Condition struct {
	Field    Field    `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value,omitempty"`
	Values   []string `json:"values,omitempty"` // between: [low, high]
	OrGroup  string   `json:"or_group,omitempty"`
}

// ActionKind names a rule action directive.
type ActionKind string

const (
	ActionIgnore       ActionKind = "ignore"
	ActionCategorize   ActionKind = "categorize"
	ActionMatchInvoice ActionKind = "match_invoice"
	ActionSplit        ActionKind = "split"
)

// Allocation is one target of a split action: exactly one of Amount
// (fixed, decimal money string) or Percent must be set.
type Allocation struct {
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Amount    string          `json:"amount,omitempty"`
	Percent   decimal.Decimal `json:"percent,omitempty"`
}

// Action is one directive of a rule's action set.
type Action struct {
	Kind      ActionKind `json:"kind"`
	Category  string     `json:"category,omitempty"`
	InvoiceID *uuid.UUID `json:"invoice_id,omitempty"` // explicit match_invoice target
	Tolerance string     `json:"tolerance,omitempty"`  // heuristic amount tolerance, money string

	Allocations []Allocation `json:"allocations,omitempty"`
}

// DecodeConditions parses the JSON condition set stored on a rule.
func DecodeConditions(raw []byte) ([]Condition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var conds []Condition
	if err := json.Unmarshal(raw, &conds); err != nil {
		return nil, fmt.Errorf("decoding conditions: %w", err)
	}
	return conds, nil
}

// DecodeActions parses the JSON action set stored on a rule.
func DecodeActions(raw []byte) ([]Action, error) {
	var actions []Action
	if err := json.Unmarshal(raw, &actions); err != nil {
		return nil, fmt.Errorf("decoding actions: %w", err)
	}
	return actions, nil
}
