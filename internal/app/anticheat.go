package app

import "live-quiz-service/internal/domain"

// PenaltyPolicy maps each cheat type to the points it costs.
type PenaltyPolicy map[domain.CheatType]int

// Penalty returns the deduction for t; unknown types cost nothing.
func (p PenaltyPolicy) Penalty(t domain.CheatType) int {
	if v, ok := p[t]; ok && v > 0 {
		return v
	}
	return 0
}

// deduct subtracts penalty from total without going below zero and reports the
// amount actually taken.
func deduct(total, penalty int) (int, int) {
	if penalty > total {
		return 0, total
	}
	return total - penalty, penalty
}
