package game

import "fmt"

// Awards are evaluated from a closed set of tagged conditions. No rule text
// is ever executed as code.

type ConditionKind string

const (
	CondGTE ConditionKind = "gte"
	CondLTE ConditionKind = "lte"
	CondEQ  ConditionKind = "eq"
)

type StatField string

const (
	FieldScore  StatField = "score"
	FieldBudget StatField = "budget"
)

// Condition is one predicate over a player/team stat line.
type Condition struct {
	Kind  ConditionKind `json:"kind"`
	Field StatField     `json:"field"`
	Value int           `json:"value"`
}

// Stats is the snapshot a condition is evaluated against.
type Stats struct {
	Score  int
	Budget int
}

// Eval interprets the condition against the stats.
func (c Condition) Eval(s Stats) (bool, error) {
	var field int
	switch c.Field {
	case FieldScore:
		field = s.Score
	case FieldBudget:
		field = s.Budget
	default:
		return false, fmt.Errorf("%w: unknown stat field %q", ErrValidation, c.Field)
	}

	switch c.Kind {
	case CondGTE:
		return field >= c.Value, nil
	case CondLTE:
		return field <= c.Value, nil
	case CondEQ:
		return field == c.Value, nil
	default:
		return false, fmt.Errorf("%w: unknown condition kind %q", ErrValidation, c.Kind)
	}
}

// Award pairs a display name with the condition that grants it.
type Award struct {
	Name      string    `json:"name"`
	Condition Condition `json:"condition"`
}

// DefaultAwards are the built-in end-of-game badges.
var DefaultAwards = []Award{
	{Name: "Solvent", Condition: Condition{Kind: CondGTE, Field: FieldBudget, Value: 0}},
	{Name: "High Performer", Condition: Condition{Kind: CondGTE, Field: FieldScore, Value: 50}},
	{Name: "In The Red", Condition: Condition{Kind: CondLTE, Field: FieldBudget, Value: -1}},
}

// EvalAwards returns the names of every award whose condition holds.
func EvalAwards(awards []Award, s Stats) []string {
	var earned []string
	for _, a := range awards {
		ok, err := a.Condition.Eval(s)
		if err != nil {
			continue
		}
		if ok {
			earned = append(earned, a.Name)
		}
	}
	return earned
}
