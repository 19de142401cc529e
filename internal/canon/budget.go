package canon

import "fmt"

// Budget bounds the fact set fed into one generation call. Zero-valued
// limits are unlimited.
type Budget struct {
	// MaxFacts caps the number of facts.
	MaxFacts int
	// MaxChars caps the aggregate character count of fact text.
	MaxChars int
}

// Exceeded reports whether the fact set breaks either limit.
func (b Budget) Exceeded(facts []Fact) bool {
	if b.MaxFacts > 0 && len(facts) > b.MaxFacts {
		return true
	}
	if b.MaxChars > 0 && AggregateSize(facts) > b.MaxChars {
		return true
	}
	return false
}

// BudgetExceededError signals that retrieval halted because the fact set is
// over budget and a narrowing decision is required.
type BudgetExceededError struct {
	FactCount int
	CharCount int
	Budget    Budget
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("fact set exceeds budget: %d facts / %d chars against limit of %d facts / %d chars",
		e.FactCount, e.CharCount, e.Budget.MaxFacts, e.Budget.MaxChars)
}
