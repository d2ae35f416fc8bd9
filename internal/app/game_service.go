package app

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

// Archive serves games that have been retired from memory (e.g. from Postgres).
type Archive interface {
	Game(ctx context.Context, code string) (domain.Game, error)
	Leaderboard(ctx context.Context, code string) (domain.Leaderboard, error)
}

// GameService contains the quiz session use cases exposed to transports.
type GameService struct {
	registry *Registry
	defaults domain.Settings
	archive  Archive
	log      logrus.FieldLogger
}

func NewGameService(registry *Registry, defaults domain.Settings, logger logrus.FieldLogger) *GameService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &GameService{registry: registry, defaults: cloneSettings(defaults), log: logger}
}

// WithArchive makes retired games readable through Game and Leaderboard.
func (s *GameService) WithArchive(archive Archive) *GameService {
	s.archive = archive
	return s
}

// Registry exposes the session table, e.g. for the retention janitor.
func (s *GameService) Registry() *Registry {
	return s.registry
}

// CreateGame opens a new game owned by organizerID. Unset fields of override keep the
// service defaults.
func (s *GameService) CreateGame(ctx context.Context, organizerID, title string, override domain.SettingsOverride) (domain.Game, error) {
	settings, err := mergeSettings(s.defaults, override)
	if err != nil {
		return domain.Game{}, err
	}
	session, err := s.registry.Create(ctx, organizerID, title, settings)
	if err != nil {
		return domain.Game{}, err
	}
	metrics.GamesCreated.Inc()
	return session.Game(), nil
}

// ListGames returns the organizer's games in creation order.
func (s *GameService) ListGames(_ context.Context, organizerID string) []domain.Game {
	sessions := s.registry.ListByOrganizer(organizerID)
	games := make([]domain.Game, 0, len(sessions))
	for _, session := range sessions {
		games = append(games, session.Game())
	}
	return games
}

// Game returns a snapshot of one game.
func (s *GameService) Game(ctx context.Context, code string) (domain.Game, error) {
	session, err := s.registry.Get(code)
	if errors.Is(err, domain.ErrGameNotFound) && s.archive != nil {
		return s.archive.Game(ctx, normalizeCode(code))
	}
	if err != nil {
		return domain.Game{}, err
	}
	return session.Game(), nil
}

// AddQuestion appends a question to a waiting game.
func (s *GameService) AddQuestion(_ context.Context, code, organizerID string, in domain.QuestionInput) (domain.Question, error) {
	session, err := s.registry.Get(code)
	if err != nil {
		return domain.Question{}, err
	}
	return session.AddQuestion(organizerID, in)
}

// Questions lists the game's questions in order. Correct answers are only included for
// the owning organizer.
func (s *GameService) Questions(_ context.Context, code, viewerID string) ([]domain.QuestionView, error) {
	session, err := s.registry.Get(code)
	if err != nil {
		return nil, err
	}
	owner := viewerID != "" && viewerID == session.OrganizerID()
	questions := session.Questions()
	views := make([]domain.QuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, q.View(owner))
	}
	return views, nil
}

// StartGame moves a waiting game into play.
func (s *GameService) StartGame(_ context.Context, code, organizerID string) (domain.Game, error) {
	session, err := s.registry.Get(code)
	if err != nil {
		return domain.Game{}, err
	}
	return session.Start(organizerID)
}

// SkipQuestion closes the current question early on behalf of the organizer.
func (s *GameService) SkipQuestion(_ context.Context, code, organizerID string) (domain.Game, error) {
	session, err := s.registry.Get(code)
	if err != nil {
		return domain.Game{}, err
	}
	return session.Skip(organizerID)
}

// JoinGame registers a participant under a unique name.
func (s *GameService) JoinGame(_ context.Context, code, name string) (domain.Participant, domain.Game, error) {
	p, session, err := s.registry.Join(code, name)
	if err != nil {
		return domain.Participant{}, domain.Game{}, err
	}
	return p, session.Game(), nil
}

// SubmitAnswer records a participant's answer to the current question.
func (s *GameService) SubmitAnswer(_ context.Context, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	if sub.ParticipantID == "" || sub.QuestionID == "" {
		return domain.AnswerResult{}, domain.Validationf("participantId and questionId are required")
	}
	session, err := s.registry.SessionFor(sub.ParticipantID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return session.SubmitAnswer(sub)
}

// ReportCheat applies an anti-cheat report. Only malformed reports produce an error; every
// other failure is logged so the reporting client learns nothing from the response.
func (s *GameService) ReportCheat(_ context.Context, report domain.CheatReport) error {
	if !report.Type.Valid() {
		return domain.Validationf("unknown cheat type %q", report.Type)
	}
	if report.ParticipantID == "" {
		return domain.Validationf("participantId is required")
	}
	session, err := s.registry.SessionFor(report.ParticipantID)
	if err != nil {
		s.log.WithError(err).WithField("participant", report.ParticipantID).Debug("cheat report dropped")
		return nil
	}
	if _, err := session.ReportCheat(report); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return err
		}
		s.log.WithError(err).WithField("participant", report.ParticipantID).Debug("cheat report dropped")
	}
	return nil
}

// Participants lists the game's participants in join order.
func (s *GameService) Participants(_ context.Context, code string) ([]domain.Participant, error) {
	session, err := s.registry.Get(code)
	if err != nil {
		return nil, err
	}
	return session.Participants(), nil
}

// Participant returns one participant of the game.
func (s *GameService) Participant(_ context.Context, code, participantID string) (domain.Participant, error) {
	session, err := s.registry.Get(code)
	if err != nil {
		return domain.Participant{}, err
	}
	return session.Participant(participantID)
}

// Leaderboard ranks the game's participants.
func (s *GameService) Leaderboard(ctx context.Context, code string) (domain.Leaderboard, error) {
	session, err := s.registry.Get(code)
	if errors.Is(err, domain.ErrGameNotFound) && s.archive != nil {
		return s.archive.Leaderboard(ctx, normalizeCode(code))
	}
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return session.Leaderboard(), nil
}

// State returns the pull view polling clients converge on.
func (s *GameService) State(_ context.Context, code string) (domain.GameState, error) {
	session, err := s.registry.Get(code)
	if err != nil {
		return domain.GameState{}, err
	}
	return session.State(), nil
}

// RunJanitor retires completed games older than retention every interval until ctx ends.
func (s *GameService) RunJanitor(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.registry.RetireCompleted(ctx, retention); n > 0 {
				s.log.WithField("retired", n).Info("retired completed games")
			}
		}
	}
}

func mergeSettings(defaults domain.Settings, override domain.SettingsOverride) (domain.Settings, error) {
	out := cloneSettings(defaults)
	if v := override.QuestionTimeLimitSeconds; v != nil {
		if *v <= 0 {
			return domain.Settings{}, domain.Validationf("question time limit must be positive")
		}
		out.QuestionTimeLimitSeconds = *v
	}
	if v := override.HintPenalty; v != nil {
		if *v < 0 {
			return domain.Settings{}, domain.Validationf("hint penalty must not be negative")
		}
		out.HintPenalty = *v
	}
	for t, v := range override.CheatPenalties {
		if !t.Valid() {
			return domain.Settings{}, domain.Validationf("unknown cheat type %q", t)
		}
		if v < 0 {
			return domain.Settings{}, domain.Validationf("cheat penalty for %s must not be negative", t)
		}
		out.CheatPenalties[t] = v
	}
	if out.QuestionTimeLimitSeconds <= 0 {
		return domain.Settings{}, domain.Validationf("question time limit must be positive")
	}
	return out, nil
}
