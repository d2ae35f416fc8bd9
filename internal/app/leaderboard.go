package app

import (
	"sort"
	"time"

	"live-quiz-service/internal/domain"
)

// Standing is the input of the leaderboard projection for one participant.
type Standing struct {
	Participant domain.Participant
	AnswerCount int
	seq         int
}

// Rank projects standings into a leaderboard: highest score first, ties broken by the
// earlier join time and then by join order. It keeps no state between calls.
func Rank(gameCode string, standings []Standing, at time.Time) domain.Leaderboard {
	sorted := append([]Standing(nil), standings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Participant.TotalScore != b.Participant.TotalScore {
			return a.Participant.TotalScore > b.Participant.TotalScore
		}
		if !a.Participant.JoinedAt.Equal(b.Participant.JoinedAt) {
			return a.Participant.JoinedAt.Before(b.Participant.JoinedAt)
		}
		return a.seq < b.seq
	})

	entries := make([]domain.LeaderboardEntry, 0, len(sorted))
	for i, s := range sorted {
		entries = append(entries, summarize(s.Participant, s.AnswerCount, i+1))
	}
	return domain.Leaderboard{
		GameCode:  gameCode,
		Entries:   entries,
		UpdatedAt: at,
	}
}

func summarize(p domain.Participant, answerCount, rank int) domain.LeaderboardEntry {
	return domain.LeaderboardEntry{
		Rank:          rank,
		ParticipantID: p.ID,
		Name:          p.Name,
		AvatarURL:     p.AvatarURL,
		TotalScore:    p.TotalScore,
		AnswerCount:   answerCount,
	}
}
