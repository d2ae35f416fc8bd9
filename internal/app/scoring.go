package app

import (
	"math"
	"strings"

	"live-quiz-service/internal/domain"
)

const (
	baseScore          = 100
	maxTimeBonus       = 30
	defaultHintPenalty = 15
)

// Scorer computes the score of a single answer. Cheat penalties are never mixed in here.
type Scorer struct {
	HintPenalty int
}

// IsCorrect compares an answer with the question's correct answer. Choice-based questions
// need an exact match; typed answers are compared trimmed and case-insensitively.
func IsCorrect(q domain.Question, answer string) bool {
	correct := q.Body.CorrectAnswer()
	switch q.Body.(type) {
	case domain.MultipleChoice, domain.TrueFalse:
		return answer == correct
	default:
		return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(correct))
	}
}

// Score returns the points awarded and whether the answer was correct.
// The hint penalty applies whether or not the answer is correct.
func (s Scorer) Score(q domain.Question, answer string, timeTakenSeconds, limitSeconds float64, usedHint bool) (int, bool) {
	correct := IsCorrect(q, answer)

	base, timeBonus := 0, 0
	if correct {
		base = baseScore
		if limitSeconds > 0 {
			left := math.Max(0, limitSeconds-timeTakenSeconds)
			timeBonus = int(math.Floor(left * maxTimeBonus / limitSeconds))
		}
	}
	hint := 0
	if usedHint {
		hint = s.HintPenalty
	}

	score := base + timeBonus - hint
	if score < 0 {
		score = 0
	}
	return score, correct
}

// ComputeScore scores an answer with the default hint penalty.
func ComputeScore(q domain.Question, answer string, timeTakenSeconds float64, usedHint bool, limitSeconds float64) int {
	score, _ := Scorer{HintPenalty: defaultHintPenalty}.Score(q, answer, timeTakenSeconds, limitSeconds, usedHint)
	return score
}
