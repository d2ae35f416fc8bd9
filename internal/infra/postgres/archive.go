package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-service/internal/domain"
)

// Archive reads games back from the journal tables once they have left memory.
type Archive struct {
	pool *pgxpool.Pool
}

func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

func (a *Archive) Game(ctx context.Context, code string) (domain.Game, error) {
	var (
		g        domain.Game
		status   string
		settings []byte
	)
	err := a.pool.QueryRow(ctx, `
SELECT code, title, organizer_id, status, question_count, current_question_index,
       question_deadline, settings, created_at, started_at, ended_at
FROM games WHERE code = $1`, code).Scan(
		&g.Code, &g.Title, &g.OrganizerID, &status, &g.QuestionCount, &g.CurrentQuestionIndex,
		&g.QuestionDeadline, &settings, &g.CreatedAt, &g.StartedAt, &g.EndedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Game{}, domain.ErrGameNotFound
	}
	if err != nil {
		return domain.Game{}, fmt.Errorf("load game: %w", err)
	}
	g.Status = domain.GameStatus(status)
	if err := json.Unmarshal(settings, &g.Settings); err != nil {
		return domain.Game{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	return g, nil
}

// Archived reports whether a game with this code was ever journaled.
func (a *Archive) Archived(ctx context.Context, code string) (bool, error) {
	var known bool
	if err := a.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE code = $1)`, code).Scan(&known); err != nil {
		return false, fmt.Errorf("check game code: %w", err)
	}
	return known, nil
}

// Leaderboard rebuilds the final standings of an archived game.
func (a *Archive) Leaderboard(ctx context.Context, code string) (domain.Leaderboard, error) {
	if _, err := a.Game(ctx, code); err != nil {
		return domain.Leaderboard{}, err
	}
	rows, err := a.pool.Query(ctx, `
SELECT p.id, p.name, p.avatar_url, p.total_score,
       (SELECT count(*) FROM answers a WHERE a.participant_id = p.id AND NOT a.auto_submitted)
FROM participants p
WHERE p.game_code = $1
ORDER BY p.total_score DESC, p.joined_at ASC`, code)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("load standings: %w", err)
	}
	defer rows.Close()

	lb := domain.Leaderboard{GameCode: code, Entries: []domain.LeaderboardEntry{}, UpdatedAt: time.Now()}
	for rows.Next() {
		var (
			e     domain.LeaderboardEntry
			count int64
		)
		if err := rows.Scan(&e.ParticipantID, &e.Name, &e.AvatarURL, &e.TotalScore, &count); err != nil {
			return domain.Leaderboard{}, fmt.Errorf("scan standing: %w", err)
		}
		e.AnswerCount = int(count)
		e.Rank = len(lb.Entries) + 1
		lb.Entries = append(lb.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return domain.Leaderboard{}, fmt.Errorf("iterate standings: %w", err)
	}
	return lb, nil
}
