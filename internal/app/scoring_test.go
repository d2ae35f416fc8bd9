package app_test

import (
	"testing"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

func mustQuestion(t *testing.T, in domain.QuestionInput) domain.Question {
	t.Helper()
	q, err := domain.NewQuestion(in)
	if err != nil {
		t.Fatalf("build question: %v", err)
	}
	return q
}

func TestComputeScore(t *testing.T) {
	tf := mustQuestion(t, trueFalse("Sky is blue", "True"))
	text := mustQuestion(t, domain.QuestionInput{Type: domain.QuestionFreeText, Text: "Capital", CorrectAnswer: "Paris"})
	scrambled := mustQuestion(t, domain.QuestionInput{Type: domain.QuestionScrambled, Text: "TCA", CorrectAnswer: "cat"})
	choice := mustQuestion(t, mcq("Pick", []string{"Red", "red"}, "Red"))

	cases := []struct {
		name   string
		q      domain.Question
		answer string
		taken  float64
		hint   bool
		want   int
	}{
		{"instant correct", tf, "True", 0, false, 130},
		{"correct at 5s", tf, "True", 5, false, 125},
		{"correct at 5s with hint", tf, "True", 5, true, 110},
		{"correct at the deadline", tf, "True", 30, false, 100},
		{"correct after the deadline", tf, "True", 45, false, 100},
		{"bonus is floored", tf, "True", 10.5, false, 119},
		{"wrong answer", tf, "False", 1, false, 0},
		{"wrong answer with hint floors at zero", tf, "False", 1, true, 0},
		{"true/false is exact", tf, "true", 0, false, 0},
		{"typed answer ignores case and spaces", text, "  pArIs ", 15, false, 115},
		{"scrambled answer", scrambled, "CAT", 30, true, 85},
		{"choice is exact", choice, "red", 0, false, 0},
		{"choice matches option", choice, "Red", 0, false, 130},
	}
	for _, tc := range cases {
		if got := app.ComputeScore(tc.q, tc.answer, tc.taken, tc.hint, 30); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestScorerUsesConfiguredHintPenalty(t *testing.T) {
	q := mustQuestion(t, trueFalse("x", "False"))
	score, correct := app.Scorer{HintPenalty: 40}.Score(q, "False", 30, 30, true)
	if !correct || score != 60 {
		t.Fatalf("expected 60 with a 40 point hint penalty, got %d (correct=%v)", score, correct)
	}
}

func TestPenaltyPolicy(t *testing.T) {
	policy := app.PenaltyPolicy(domain.DefaultSettings().CheatPenalties)
	if policy.Penalty(domain.CheatTabSwitch) != 10 || policy.Penalty(domain.CheatDevTools) != 15 || policy.Penalty(domain.CheatCopyAttempt) != 20 {
		t.Fatalf("unexpected default penalties %v", policy)
	}
	if policy.Penalty("UNKNOWN") != 0 {
		t.Fatalf("expected unknown type to cost nothing")
	}
}
