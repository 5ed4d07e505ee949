package rules

import (
	"regexp"
	"strings"
	"time"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/money"
)

// Evaluator decides whether a condition set matches a transaction.
// Evaluation is pure and total: a malformed or wrong-kind clause is a
// deterministic non-match, never an error, so legacy rules degrade
// safely instead of halting the pipeline.
type Evaluator struct {
	Precision int32 // company minor-unit precision for amount clauses
}

// Matches evaluates a condition set against a transaction. Ungrouped
// clauses combine with AND; clauses sharing an OrGroup hold when any
// one member holds. An empty condition set matches every transaction,
// which is how catch-all ignore rules are written.
func (e Evaluator) Matches(conds []Condition, tx *models.BankTransaction) bool {
	groups := make(map[string]bool)
	var groupOrder []string

	for _, c := range conds {
		ok := e.eval(c, tx)
		if c.OrGroup == "" {
			if !ok {
				return false
			}
			continue
		}
		if _, seen := groups[c.OrGroup]; !seen {
			groupOrder = append(groupOrder, c.OrGroup)
		}
		groups[c.OrGroup] = groups[c.OrGroup] || ok
	}

	for _, g := range groupOrder {
		if !groups[g] {
			return false
		}
	}
	return true
}

func (e Evaluator) eval(c Condition, tx *models.BankTransaction) bool {
	switch c.Field {
	case FieldDescription:
		return evalText(c, tx.Description)
	case FieldReference:
		return evalText(c, tx.Reference)
	case FieldAmount:
		return e.evalAmount(c, tx.Amount)
	case FieldDate:
		return evalDate(c, tx.OccurredAt)
	}
	return false
}

func evalText(c Condition, field string) bool {
	switch c.Operator {
	case OpEquals:
		return field == c.Value
	case OpContains:
		return strings.Contains(strings.ToLower(field), strings.ToLower(c.Value))
	case OpMatches:
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return false
		}
		return re.MatchString(field)
	}
	return false
}

func (e Evaluator) evalAmount(c Condition, amount int64) bool {
	switch c.Operator {
	case OpEquals:
		v, err := money.ParseMinor(c.Value, e.Precision)
		return err == nil && amount == v
	case OpGreaterThan:
		v, err := money.ParseMinor(c.Value, e.Precision)
		return err == nil && amount > v
	case OpLessThan:
		v, err := money.ParseMinor(c.Value, e.Precision)
		return err == nil && amount < v
	case OpBetween:
		if len(c.Values) != 2 {
			return false
		}
		lo, err1 := money.ParseMinor(c.Values[0], e.Precision)
		hi, err2 := money.ParseMinor(c.Values[1], e.Precision)
		return err1 == nil && err2 == nil && amount >= lo && amount <= hi
	}
	return false
}

func evalDate(c Condition, occurred time.Time) bool {
	y, m, d := occurred.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	switch c.Operator {
	case OpOn:
		v, err := time.Parse(time.DateOnly, c.Value)
		return err == nil && day.Equal(v)
	case OpBefore:
		v, err := time.Parse(time.DateOnly, c.Value)
		return err == nil && day.Before(v)
	case OpAfter:
		v, err := time.Parse(time.DateOnly, c.Value)
		return err == nil && day.After(v)
	case OpBetween:
		if len(c.Values) != 2 {
			return false
		}
		lo, err1 := time.Parse(time.DateOnly, c.Values[0])
		hi, err2 := time.Parse(time.DateOnly, c.Values[1])
		return err1 == nil && err2 == nil && !day.Before(lo) && !day.After(hi)
	}
	return false
}
