package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bank-reconciliation-engine/internal/models"
)

func sampleTx() *models.BankTransaction {
	return &models.BankTransaction{
		Amount:      150000, // 1500.00 at precision 2
		Description: "ACME Corp RENT payment March",
		Reference:   "INV-2024-001",
		OccurredAt:  time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
	}
}

func TestMatchesSingleConditions(t *testing.T) {
	eval := Evaluator{Precision: 2}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"description contains", Condition{Field: FieldDescription, Operator: OpContains, Value: "rent"}, true},
		{"description contains miss", Condition{Field: FieldDescription, Operator: OpContains, Value: "salary"}, false},
		{"description equals is exact", Condition{Field: FieldDescription, Operator: OpEquals, Value: "ACME Corp RENT payment March"}, true},
		{"description equals is case sensitive", Condition{Field: FieldDescription, Operator: OpEquals, Value: "acme corp rent payment march"}, false},
		{"reference equals", Condition{Field: FieldReference, Operator: OpEquals, Value: "INV-2024-001"}, true},
		{"reference matches pattern", Condition{Field: FieldReference, Operator: OpMatches, Value: `^INV-\d{4}-\d{3}$`}, true},
		{"invalid pattern never matches", Condition{Field: FieldReference, Operator: OpMatches, Value: `INV-[`}, false},

		{"amount equals", Condition{Field: FieldAmount, Operator: OpEquals, Value: "1500.00"}, true},
		{"amount equals miss", Condition{Field: FieldAmount, Operator: OpEquals, Value: "1500.01"}, false},
		{"amount greater than", Condition{Field: FieldAmount, Operator: OpGreaterThan, Value: "1000.00"}, true},
		{"amount less than", Condition{Field: FieldAmount, Operator: OpLessThan, Value: "1000.00"}, false},
		{"amount between inclusive low", Condition{Field: FieldAmount, Operator: OpBetween, Values: []string{"1500.00", "2000.00"}}, true},
		{"amount between inclusive high", Condition{Field: FieldAmount, Operator: OpBetween, Values: []string{"1000.00", "1500.00"}}, true},
		{"amount between miss", Condition{Field: FieldAmount, Operator: OpBetween, Values: []string{"1600.00", "2000.00"}}, false},
		{"amount between wrong arity", Condition{Field: FieldAmount, Operator: OpBetween, Values: []string{"1.00"}}, false},
		{"amount with unparseable value", Condition{Field: FieldAmount, Operator: OpEquals, Value: "lots"}, false},

		{"date on", Condition{Field: FieldDate, Operator: OpOn, Value: "2024-03-15"}, true},
		{"date before", Condition{Field: FieldDate, Operator: OpBefore, Value: "2024-04-01"}, true},
		{"date before same day is false", Condition{Field: FieldDate, Operator: OpBefore, Value: "2024-03-15"}, false},
		{"date after", Condition{Field: FieldDate, Operator: OpAfter, Value: "2024-03-01"}, true},
		{"date between", Condition{Field: FieldDate, Operator: OpBetween, Values: []string{"2024-03-01", "2024-03-31"}}, true},
		{"date between boundary", Condition{Field: FieldDate, Operator: OpBetween, Values: []string{"2024-03-15", "2024-03-31"}}, true},

		{"text operator on amount never matches", Condition{Field: FieldAmount, Operator: OpContains, Value: "1500"}, false},
		{"unknown field never matches", Condition{Field: "memo", Operator: OpEquals, Value: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eval.Matches([]Condition{tt.cond}, sampleTx()))
		})
	}
}

func TestMatchesCombinesWithAnd(t *testing.T) {
	eval := Evaluator{Precision: 2}

	conds := []Condition{
		{Field: FieldDescription, Operator: OpContains, Value: "rent"},
		{Field: FieldAmount, Operator: OpGreaterThan, Value: "1000.00"},
	}
	assert.True(t, eval.Matches(conds, sampleTx()))

	conds[1].Value = "2000.00"
	assert.False(t, eval.Matches(conds, sampleTx()))
}

func TestMatchesOrGroups(t *testing.T) {
	eval := Evaluator{Precision: 2}

	// One member of the group holds, the other does not.
	conds := []Condition{
		{Field: FieldDescription, Operator: OpContains, Value: "salary", OrGroup: "kind"},
		{Field: FieldDescription, Operator: OpContains, Value: "rent", OrGroup: "kind"},
	}
	assert.True(t, eval.Matches(conds, sampleTx()))

	// No member holds.
	conds[1].Value = "utilities"
	assert.False(t, eval.Matches(conds, sampleTx()))

	// A failing ungrouped clause still vetoes a passing group.
	conds[1].Value = "rent"
	conds = append(conds, Condition{Field: FieldAmount, Operator: OpLessThan, Value: "100.00"})
	assert.False(t, eval.Matches(conds, sampleTx()))
}

func TestMatchesEmptyConditionSet(t *testing.T) {
	eval := Evaluator{Precision: 2}
	assert.True(t, eval.Matches(nil, sampleTx()), "empty condition set is a catch-all")
}

func TestEvalDateIgnoresTimeOfDay(t *testing.T) {
	eval := Evaluator{Precision: 2}
	tx := sampleTx()
	tx.OccurredAt = time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC)
	assert.True(t, eval.Matches([]Condition{
		{Field: FieldDate, Operator: OpOn, Value: "2024-03-15"},
	}, tx))
}
