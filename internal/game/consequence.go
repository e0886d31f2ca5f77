package game

// Effects are the five impact magnitudes carried by a card response.
type Effects struct {
	Political      int `json:"political"`
	Economic       int `json:"economic"`
	Infrastructure int `json:"infrastructure"`
	Society        int `json:"society"`
	Environment    int `json:"environment"`
}

// Sum is the combined magnitude across all five effect axes.
func (e Effects) Sum() int {
	return e.Political + e.Economic + e.Infrastructure + e.Society + e.Environment
}

// Consequence is the outcome of one accepted response submission.
type Consequence struct {
	Cost        int     `json:"cost"`
	Effects     Effects `json:"effects"`
	BaseValue   int     `json:"baseValue"`
	ScoreChange int     `json:"scoreChange"`
	NewBudget   int     `json:"newBudget"`
	IsDebt      bool    `json:"isDebt"`
}

// ApplyResponse computes the ledger deltas for a chosen response.
// The budget moves by the response cost alone; the player score moves by the
// team base value plus the summed effects. Negative budget is debt, not an
// error.
func ApplyResponse(budget, baseValue, cost int, effects Effects) Consequence {
	newBudget := budget + cost
	scoreChange := baseValue + effects.Sum()
	return Consequence{
		Cost:        cost,
		Effects:     effects,
		BaseValue:   baseValue,
		ScoreChange: scoreChange,
		NewBudget:   newBudget,
		IsDebt:      newBudget < 0,
	}
}
