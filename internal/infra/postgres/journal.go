package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

const uniqueViolation = "23505"

// errGameRowMismatch means no stored game row belongs to the session being updated, so
// the row under that code was written by a different game.
var errGameRowMismatch = errors.New("no game row with this code and creation time")

// Journal persists committed game mutations. Append only queues the entry; a single
// worker applies entries in the order they were committed.
type Journal struct {
	pool  *pgxpool.Pool
	queue chan domain.JournalEntry
	log   logrus.FieldLogger
}

func NewJournal(pool *pgxpool.Pool, size int, logger logrus.FieldLogger) *Journal {
	if size <= 0 {
		size = 1024
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Journal{
		pool:  pool,
		queue: make(chan domain.JournalEntry, size),
		log:   logger.WithField("component", "journal"),
	}
}

// Append queues entry without blocking. A full queue drops the entry.
func (j *Journal) Append(entry domain.JournalEntry) {
	select {
	case j.queue <- entry:
	default:
		metrics.JournalEntries.WithLabelValues("dropped").Inc()
		j.log.WithField("kind", entry.Kind).Error("journal queue full, entry dropped")
	}
}

// Run applies queued entries until ctx is cancelled, then flushes what is left.
func (j *Journal) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			j.flush()
			return nil
		case entry := <-j.queue:
			j.write(ctx, entry)
		}
	}
}

func (j *Journal) flush() {
	for {
		select {
		case entry := <-j.queue:
			j.write(context.Background(), entry)
		default:
			return
		}
	}
}

func (j *Journal) write(ctx context.Context, entry domain.JournalEntry) {
	ctx = context.WithoutCancel(ctx)
	err := j.Apply(ctx, entry)
	switch {
	case err == nil:
		metrics.JournalEntries.WithLabelValues("applied").Inc()
	case isUniqueViolation(err):
		// Only a row with the same identity counts as already persisted.
		same, cerr := j.replayed(ctx, entry)
		switch {
		case cerr != nil:
			metrics.JournalEntries.WithLabelValues("failed").Inc()
			j.log.WithError(cerr).WithField("kind", entry.Kind).Error("check journal replay")
		case same:
			metrics.JournalEntries.WithLabelValues("duplicate").Inc()
			j.log.WithError(err).WithField("kind", entry.Kind).Debug("journal entry already applied")
		default:
			metrics.JournalEntries.WithLabelValues("conflict").Inc()
			j.log.WithError(err).WithField("kind", entry.Kind).Error("journal entry collides with another game's row")
		}
	case errors.Is(err, errGameRowMismatch):
		metrics.JournalEntries.WithLabelValues("conflict").Inc()
		j.log.WithError(err).WithField("kind", entry.Kind).Error("journal entry collides with another game's row")
	default:
		metrics.JournalEntries.WithLabelValues("failed").Inc()
		j.log.WithError(err).WithField("kind", entry.Kind).Error("apply journal entry")
	}
}

// Apply writes one entry synchronously.
func (j *Journal) Apply(ctx context.Context, entry domain.JournalEntry) error {
	query, args, err := statement(entry)
	if err != nil {
		return err
	}
	tag, err := j.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", entry.Kind, err)
	}
	if entry.Kind == domain.EntryGameUpdated && tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", entry.Kind, entry.Game.Code, errGameRowMismatch)
	}
	return nil
}

func (j *Journal) replayed(ctx context.Context, entry domain.JournalEntry) (bool, error) {
	query, args, err := identity(entry)
	if err != nil {
		return false, err
	}
	var same bool
	if err := j.pool.QueryRow(ctx, query, args...).Scan(&same); err != nil {
		return false, fmt.Errorf("%s: %w", entry.Kind, err)
	}
	return same, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const (
	insertGameSQL = `
INSERT INTO games (code, title, organizer_id, status, question_count, current_question_index,
                   question_deadline, settings, created_at, started_at, ended_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	// created_at pins the update to the game that created the row.
	updateGameSQL = `
UPDATE games SET
    status = $2,
    question_count = $3,
    current_question_index = $4,
    question_deadline = $5,
    started_at = $6,
    ended_at = $7
WHERE code = $1 AND created_at = $8`

	insertQuestionSQL = `
INSERT INTO questions (id, game_code, type, text, options, correct_answer, hint, image_url, question_order)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	upsertParticipantSQL = `
INSERT INTO participants (id, game_code, name, avatar_url, total_score, cheat_flags, joined_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    total_score = EXCLUDED.total_score,
    cheat_flags = EXCLUDED.cheat_flags`

	insertAnswerSQL = `
INSERT INTO answers (participant_id, question_id, game_code, submitted_answer, time_taken_seconds,
                     used_hint, is_correct, score_awarded, auto_submitted, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	insertCheatSQL = `
INSERT INTO cheat_events (id, participant_id, game_code, type, details, penalty_applied, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

// statement maps an entry onto its SQL and arguments.
func statement(entry domain.JournalEntry) (string, []any, error) {
	switch entry.Kind {
	case domain.EntryGameCreated:
		g := entry.Game
		if g == nil {
			return "", nil, fmt.Errorf("%s entry without game", entry.Kind)
		}
		settings, err := json.Marshal(g.Settings)
		if err != nil {
			return "", nil, fmt.Errorf("marshal settings: %w", err)
		}
		return insertGameSQL, []any{
			g.Code, g.Title, g.OrganizerID, string(g.Status), g.QuestionCount, g.CurrentQuestionIndex,
			g.QuestionDeadline, string(settings), g.CreatedAt, g.StartedAt, g.EndedAt,
		}, nil

	case domain.EntryGameUpdated:
		g := entry.Game
		if g == nil {
			return "", nil, fmt.Errorf("%s entry without game", entry.Kind)
		}
		return updateGameSQL, []any{
			g.Code, string(g.Status), g.QuestionCount, g.CurrentQuestionIndex,
			g.QuestionDeadline, g.StartedAt, g.EndedAt, g.CreatedAt,
		}, nil

	case domain.EntryQuestionAdded:
		q := entry.Question
		if q == nil {
			return "", nil, fmt.Errorf("%s entry without question", entry.Kind)
		}
		options := q.Body.Choices()
		if options == nil {
			options = []string{}
		}
		raw, err := json.Marshal(options)
		if err != nil {
			return "", nil, fmt.Errorf("marshal options: %w", err)
		}
		return insertQuestionSQL, []any{
			q.ID, q.GameCode, string(q.Type()), q.Text, string(raw), q.Body.CorrectAnswer(), q.Hint, q.ImageURL, q.Order,
		}, nil

	case domain.EntryParticipantAdded, domain.EntryScoreChanged:
		p := entry.Participant
		if p == nil {
			return "", nil, fmt.Errorf("%s entry without participant", entry.Kind)
		}
		flags, err := json.Marshal(p.CheatFlags)
		if err != nil {
			return "", nil, fmt.Errorf("marshal cheat flags: %w", err)
		}
		return upsertParticipantSQL, []any{
			p.ID, p.GameCode, p.Name, p.AvatarURL, p.TotalScore, string(flags), p.JoinedAt,
		}, nil

	case domain.EntryAnswerRecorded:
		a := entry.Answer
		if a == nil {
			return "", nil, fmt.Errorf("%s entry without answer", entry.Kind)
		}
		return insertAnswerSQL, []any{
			a.ParticipantID, a.QuestionID, a.GameCode, a.SubmittedAnswer, a.TimeTakenSeconds,
			a.UsedHint, a.IsCorrect, a.ScoreAwarded, a.AutoSubmitted, a.SubmittedAt,
		}, nil

	case domain.EntryCheatRecorded:
		c := entry.Cheat
		if c == nil {
			return "", nil, fmt.Errorf("%s entry without cheat event", entry.Kind)
		}
		var details any
		if len(c.Details) > 0 {
			raw, err := json.Marshal(c.Details)
			if err != nil {
				return "", nil, fmt.Errorf("marshal cheat details: %w", err)
			}
			details = string(raw)
		}
		return insertCheatSQL, []any{
			c.ID, c.ParticipantID, c.GameCode, string(c.Type), details, c.PenaltyApplied, c.Timestamp,
		}, nil
	}
	return "", nil, fmt.Errorf("unknown journal entry kind %q", entry.Kind)
}

// identity builds a query reporting whether the row entry would insert is already stored
// under the same identity, as opposed to a different game's row sharing a unique key.
func identity(entry domain.JournalEntry) (string, []any, error) {
	switch {
	case entry.Kind == domain.EntryGameCreated && entry.Game != nil:
		g := entry.Game
		return `SELECT EXISTS (SELECT 1 FROM games WHERE code = $1 AND organizer_id = $2 AND created_at = $3)`,
			[]any{g.Code, g.OrganizerID, g.CreatedAt}, nil
	case entry.Kind == domain.EntryQuestionAdded && entry.Question != nil:
		q := entry.Question
		return `SELECT EXISTS (SELECT 1 FROM questions WHERE id = $1 AND game_code = $2)`,
			[]any{q.ID, q.GameCode}, nil
	case (entry.Kind == domain.EntryParticipantAdded || entry.Kind == domain.EntryScoreChanged) && entry.Participant != nil:
		p := entry.Participant
		return `SELECT EXISTS (SELECT 1 FROM participants WHERE id = $1 AND game_code = $2)`,
			[]any{p.ID, p.GameCode}, nil
	case entry.Kind == domain.EntryAnswerRecorded && entry.Answer != nil:
		a := entry.Answer
		return `SELECT EXISTS (SELECT 1 FROM answers WHERE participant_id = $1 AND question_id = $2 AND game_code = $3)`,
			[]any{a.ParticipantID, a.QuestionID, a.GameCode}, nil
	case entry.Kind == domain.EntryCheatRecorded && entry.Cheat != nil:
		c := entry.Cheat
		return `SELECT EXISTS (SELECT 1 FROM cheat_events WHERE id = $1 AND game_code = $2)`,
			[]any{c.ID, c.GameCode}, nil
	}
	return "", nil, fmt.Errorf("no identity for journal entry kind %q", entry.Kind)
}
