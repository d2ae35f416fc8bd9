package app

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

const maxNameLength = 40

// Journal receives committed mutations in commit order. Append is called while the
// session lock is held, so implementations must not block.
type Journal interface {
	Append(entry domain.JournalEntry)
}

// Notifier delivers committed events to observers. It is called after the session lock is
// released and must not block the caller for long.
type Notifier interface {
	Notify(event domain.Event)
}

type nopJournal struct{}

func (nopJournal) Append(domain.JournalEntry) {}

type nopNotifier struct{}

func (nopNotifier) Notify(domain.Event) {}

type sessionDeps struct {
	clock    Clock
	journal  Journal
	notifier Notifier
	avatars  AvatarProvider
	newID    func() string
	log      logrus.FieldLogger
}

// Session is one game: its question sequence, participants and lifecycle. Every mutation
// holds mu for its whole duration; events are delivered only after mu is released.
type Session struct {
	code        string
	title       string
	organizerID string
	deps        sessionDeps

	mu                sync.Mutex
	status            domain.GameStatus
	settings          domain.Settings
	questions         []domain.Question
	current           int
	questionStartedAt time.Time
	deadline          time.Time
	createdAt         time.Time
	startedAt         time.Time
	endedAt           time.Time
	participants      *participantRegistry
	cheats            []domain.CheatEvent
	timer             Timer
	timerGen          uint64
	seq               uint64
}

func newSession(code, organizerID, title string, settings domain.Settings, deps sessionDeps) *Session {
	return &Session{
		code:         code,
		title:        title,
		organizerID:  organizerID,
		deps:         deps,
		status:       domain.StatusWaiting,
		settings:     cloneSettings(settings),
		createdAt:    deps.clock.Now(),
		participants: newParticipantRegistry(code, deps.avatars),
	}
}

// Code returns the game code.
func (s *Session) Code() string { return s.code }

// OrganizerID returns the id of the organizer that owns the game.
func (s *Session) OrganizerID() string { return s.organizerID }

// AddQuestion appends a question while the game is still waiting.
func (s *Session) AddQuestion(organizerID string, in domain.QuestionInput) (domain.Question, error) {
	q, err := domain.NewQuestion(in)
	if err != nil {
		return domain.Question{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if organizerID != s.organizerID {
		return domain.Question{}, domain.ErrNotOwner
	}
	if s.status != domain.StatusWaiting {
		return domain.Question{}, domain.ErrQuestionsLocked
	}

	used := make(map[int]bool, len(s.questions))
	highest := 0
	for _, existing := range s.questions {
		used[existing.Order] = true
		if existing.Order > highest {
			highest = existing.Order
		}
	}
	if q.Order == 0 {
		q.Order = len(s.questions) + 1
		if used[q.Order] {
			q.Order = highest + 1
		}
	} else if used[q.Order] {
		return domain.Question{}, domain.ErrDuplicateOrder
	}

	q.ID = s.deps.newID()
	q.GameCode = s.code
	s.questions = append(s.questions, q)

	stored := q
	s.deps.journal.Append(domain.JournalEntry{Kind: domain.EntryQuestionAdded, Question: &stored})
	return q, nil
}

// Join registers a new participant. Names are unique per game and joins close once the
// game starts.
func (s *Session) Join(name string) (domain.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Participant{}, domain.Validationf("name is required")
	}
	if len([]rune(name)) > maxNameLength {
		return domain.Participant{}, domain.Validationf("name must be at most %d characters", maxNameLength)
	}

	s.mu.Lock()
	if s.status != domain.StatusWaiting {
		s.mu.Unlock()
		return domain.Participant{}, domain.ErrJoinClosed
	}
	p, err := s.participants.join(s.deps.newID(), name, s.deps.clock.Now())
	if err != nil {
		s.mu.Unlock()
		return domain.Participant{}, err
	}
	stored := p.Clone()
	s.deps.journal.Append(domain.JournalEntry{Kind: domain.EntryParticipantAdded, Participant: &stored})
	events := []domain.Event{s.eventLocked(domain.EventParticipantJoined, domain.AllRooms, domain.ParticipantJoinedPayload{
		Participant:      summarize(p, 0, 0),
		ParticipantCount: s.participants.count(),
	})}
	s.mu.Unlock()

	metrics.ParticipantsJoined.Inc()
	s.dispatch(events)
	return p, nil
}

// Start moves the game from waiting to in progress and opens the first question.
func (s *Session) Start(organizerID string) (domain.Game, error) {
	s.mu.Lock()
	if organizerID != s.organizerID {
		s.mu.Unlock()
		return domain.Game{}, domain.ErrNotOwner
	}
	if s.status != domain.StatusWaiting {
		s.mu.Unlock()
		return domain.Game{}, domain.ErrAlreadyStarted
	}
	if len(s.questions) == 0 {
		s.mu.Unlock()
		return domain.Game{}, domain.ErrNoQuestions
	}

	sort.SliceStable(s.questions, func(i, j int) bool { return s.questions[i].Order < s.questions[j].Order })
	now := s.deps.clock.Now()
	s.status = domain.StatusInProgress
	s.startedAt = now
	s.current = 0
	s.openQuestionLocked(now)

	game := s.gameLocked()
	s.journalGameLocked(game)
	view := s.questions[0].View(false)
	events := []domain.Event{s.eventLocked(domain.EventGameStarted, domain.AllRooms, domain.GameStartedPayload{
		Game:            game,
		CurrentQuestion: &view,
	})}
	s.mu.Unlock()

	s.deps.log.WithFields(logrus.Fields{"code": s.code, "questions": game.QuestionCount}).Info("game started")
	s.dispatch(events)
	return game, nil
}

// SubmitAnswer scores and stores a participant's answer to the current question. When it
// is the last missing answer the game advances immediately.
func (s *Session) SubmitAnswer(sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	if sub.ParticipantID == "" || sub.QuestionID == "" {
		return domain.AnswerResult{}, domain.Validationf("participantId and questionId are required")
	}

	s.mu.Lock()
	if s.status != domain.StatusInProgress {
		s.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrNotInProgress
	}
	p, ok := s.participants.get(sub.ParticipantID)
	if !ok {
		s.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrParticipantNotFound
	}
	idx := s.questionIndexLocked(sub.QuestionID)
	if idx < 0 {
		s.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrQuestionNotFound
	}
	if s.participants.hasAnswered(p.ID, sub.QuestionID) {
		s.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrAlreadyAnswered
	}
	if idx != s.current {
		s.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrNotCurrentQuestion
	}

	q := s.questions[idx]
	now := s.deps.clock.Now()
	limit := s.settings.QuestionTimeLimit().Seconds()
	remaining := s.deadline.Sub(now).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	taken := limit - remaining
	if taken < 0 {
		taken = 0
	}

	score, correct := Scorer{HintPenalty: s.settings.HintPenalty}.Score(q, sub.Answer, taken, limit, sub.UsedHint)
	rec := domain.AnswerRecord{
		ParticipantID:    p.ID,
		QuestionID:       q.ID,
		GameCode:         s.code,
		SubmittedAnswer:  sub.Answer,
		TimeTakenSeconds: taken,
		UsedHint:         sub.UsedHint,
		IsCorrect:        correct,
		ScoreAwarded:     score,
		SubmittedAt:      now,
	}
	updated, err := s.participants.recordAnswer(rec)
	if err != nil {
		s.mu.Unlock()
		return domain.AnswerResult{}, err
	}
	s.journalAnswerLocked(rec, updated)

	events := []domain.Event{s.eventLocked(domain.EventAnswerSubmitted, domain.AllRooms, domain.AnswerSubmittedPayload{
		ParticipantID: updated.ID,
		Name:          updated.Name,
		QuestionID:    q.ID,
		ScoreAwarded:  score,
		TotalScore:    updated.TotalScore,
		Leaderboard:   s.leaderboardLocked(),
	})}
	if s.participants.allAnswered(q.ID) {
		events = append(events, s.advanceLocked("all_answered")...)
	}
	s.mu.Unlock()

	result := "incorrect"
	if correct {
		result = "correct"
	}
	metrics.AnswersSubmitted.WithLabelValues(result).Inc()
	s.dispatch(events)

	return domain.AnswerResult{
		QuestionID:   q.ID,
		IsCorrect:    correct,
		ScoreAwarded: score,
		TotalScore:   updated.TotalScore,
	}, nil
}

// ReportCheat applies the anti-cheat penalty for one reported event. Reports that arrive
// while the game is not in progress are ignored. It reports whether a penalty was applied.
func (s *Session) ReportCheat(report domain.CheatReport) (bool, error) {
	if !report.Type.Valid() {
		return false, domain.Validationf("unknown cheat type %q", report.Type)
	}
	if report.ParticipantID == "" {
		return false, domain.Validationf("participantId is required")
	}

	s.mu.Lock()
	if s.status != domain.StatusInProgress {
		s.mu.Unlock()
		return false, nil
	}
	penalty := PenaltyPolicy(s.settings.CheatPenalties).Penalty(report.Type)
	updated, applied, err := s.participants.applyCheatPenalty(report.ParticipantID, report.Type, penalty)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	ev := domain.CheatEvent{
		ID:             s.deps.newID(),
		ParticipantID:  updated.ID,
		GameCode:       s.code,
		Type:           report.Type,
		Details:        report.Details,
		PenaltyApplied: applied,
		Timestamp:      s.deps.clock.Now(),
	}
	s.cheats = append(s.cheats, ev)
	stored := ev
	scored := updated.Clone()
	s.deps.journal.Append(domain.JournalEntry{Kind: domain.EntryCheatRecorded, Cheat: &stored})
	s.deps.journal.Append(domain.JournalEntry{Kind: domain.EntryScoreChanged, Participant: &scored})

	events := []domain.Event{s.eventLocked(domain.EventCheatFlagged, []domain.Room{domain.RoomOrganizer}, domain.CheatFlaggedPayload{
		ParticipantID:  updated.ID,
		Name:           updated.Name,
		Type:           report.Type,
		Count:          updated.CheatFlags[report.Type],
		PenaltyApplied: applied,
		TotalScore:     updated.TotalScore,
	})}
	s.mu.Unlock()

	metrics.CheatReports.WithLabelValues(string(report.Type)).Inc()
	s.deps.log.WithFields(logrus.Fields{
		"code":        s.code,
		"participant": updated.ID,
		"type":        report.Type,
		"penalty":     applied,
	}).Warn("cheat flagged")
	s.dispatch(events)
	return true, nil
}

// Skip lets the owning organizer close the current question before its deadline.
func (s *Session) Skip(organizerID string) (domain.Game, error) {
	s.mu.Lock()
	if organizerID != s.organizerID {
		s.mu.Unlock()
		return domain.Game{}, domain.ErrNotOwner
	}
	if s.status != domain.StatusInProgress {
		s.mu.Unlock()
		return domain.Game{}, domain.ErrNotInProgress
	}
	events := s.advanceLocked("skipped")
	game := s.gameLocked()
	s.mu.Unlock()

	s.dispatch(events)
	return game, nil
}

// expire is the deadline callback. gen identifies the question window the timer was armed
// for; a callback from an earlier window finds a newer generation and does nothing.
func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.timerGen || s.status != domain.StatusInProgress {
		s.mu.Unlock()
		return
	}
	events := s.advanceLocked("deadline")
	s.mu.Unlock()

	s.dispatch(events)
}

// advanceLocked closes the current question, synthesizing a zero-score answer for every
// participant that did not answer, then opens the next question or completes the game.
func (s *Session) advanceLocked(reason string) []domain.Event {
	now := s.deps.clock.Now()
	q := s.questions[s.current]
	limit := s.settings.QuestionTimeLimit().Seconds()
	for _, p := range s.participants.unanswered(q.ID) {
		rec := domain.AnswerRecord{
			ParticipantID:    p.ID,
			QuestionID:       q.ID,
			GameCode:         s.code,
			TimeTakenSeconds: limit,
			AutoSubmitted:    true,
			SubmittedAt:      now,
		}
		updated, err := s.participants.recordAnswer(rec)
		if err != nil {
			continue
		}
		s.journalAnswerLocked(rec, updated)
		metrics.AnswersSubmitted.WithLabelValues("auto").Inc()
	}
	metrics.QuestionsAdvanced.WithLabelValues(reason).Inc()

	s.current++
	if s.current >= len(s.questions) {
		s.cancelTimerLocked()
		s.status = domain.StatusCompleted
		s.endedAt = now
		game := s.gameLocked()
		s.journalGameLocked(game)
		metrics.GamesCompleted.Inc()
		s.deps.log.WithFields(logrus.Fields{"code": s.code, "reason": reason}).Info("game completed")
		return []domain.Event{s.eventLocked(domain.EventGameCompleted, domain.AllRooms, domain.GameCompletedPayload{
			Game:        game,
			Leaderboard: s.leaderboardLocked(),
		})}
	}

	s.openQuestionLocked(now)
	game := s.gameLocked()
	s.journalGameLocked(game)
	view := s.questions[s.current].View(false)
	return []domain.Event{s.eventLocked(domain.EventQuestionAdvanced, domain.AllRooms, domain.QuestionAdvancedPayload{
		CurrentQuestionIndex: s.current,
		CurrentQuestion:      &view,
		QuestionDeadline:     game.QuestionDeadline,
		Reason:               reason,
		Leaderboard:          s.leaderboardLocked(),
	})}
}

func (s *Session) openQuestionLocked(now time.Time) {
	s.questionStartedAt = now
	s.deadline = now.Add(s.settings.QuestionTimeLimit())
	s.armTimerLocked()
}

// armTimerLocked replaces the pending deadline callback with one for the current window.
func (s *Session) armTimerLocked() {
	s.cancelTimerLocked()
	gen := s.timerGen
	s.timer = s.deps.clock.AfterFunc(s.settings.QuestionTimeLimit(), func() { s.expire(gen) })
}

func (s *Session) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

// shutdown cancels any pending deadline; used when the session is retired.
func (s *Session) shutdown() {
	s.mu.Lock()
	s.cancelTimerLocked()
	s.mu.Unlock()
}

func (s *Session) questionIndexLocked(id string) int {
	for i := range s.questions {
		if s.questions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) eventLocked(t domain.EventType, rooms []domain.Room, payload any) domain.Event {
	s.seq++
	return domain.Event{
		GameCode: s.code,
		Type:     t,
		Seq:      s.seq,
		At:       s.deps.clock.Now(),
		Payload:  payload,
		Rooms:    rooms,
	}
}

func (s *Session) dispatch(events []domain.Event) {
	for _, ev := range events {
		s.deps.notifier.Notify(ev)
	}
}

func (s *Session) journalGameLocked(game domain.Game) {
	s.deps.journal.Append(domain.JournalEntry{Kind: domain.EntryGameUpdated, Game: &game})
}

func (s *Session) journalAnswerLocked(rec domain.AnswerRecord, updated domain.Participant) {
	stored := rec
	scored := updated.Clone()
	s.deps.journal.Append(domain.JournalEntry{Kind: domain.EntryAnswerRecorded, Answer: &stored})
	s.deps.journal.Append(domain.JournalEntry{Kind: domain.EntryScoreChanged, Participant: &scored})
}

func (s *Session) gameLocked() domain.Game {
	g := domain.Game{
		Code:                 s.code,
		Title:                s.title,
		OrganizerID:          s.organizerID,
		Status:               s.status,
		QuestionCount:        len(s.questions),
		CurrentQuestionIndex: s.current,
		Settings:             cloneSettings(s.settings),
		CreatedAt:            s.createdAt,
	}
	if s.status == domain.StatusInProgress {
		deadline := s.deadline
		g.QuestionDeadline = &deadline
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		g.StartedAt = &started
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		g.EndedAt = &ended
	}
	return g
}

func (s *Session) leaderboardLocked() domain.Leaderboard {
	return Rank(s.code, s.participants.standings(), s.deps.clock.Now())
}

// Game returns a snapshot of the game.
func (s *Session) Game() domain.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameLocked()
}

// Status returns the lifecycle state.
func (s *Session) Status() domain.GameStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Questions returns the question sequence in order.
func (s *Session) Questions() []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]domain.Question(nil), s.questions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Participants returns every participant ordered by join time.
func (s *Session) Participants() []domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participants.list()
}

// Participant returns one participant by id.
func (s *Session) Participant(id string) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants.get(id)
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return p.Participant.Clone(), nil
}

// Answers returns every stored answer record.
func (s *Session) Answers() []domain.AnswerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participants.answers()
}

// CheatEvents returns the anti-cheat log in report order.
func (s *Session) CheatEvents() []domain.CheatEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CheatEvent(nil), s.cheats...)
}

// Leaderboard ranks the participants as of now.
func (s *Session) Leaderboard() domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaderboardLocked()
}

// State is the pull view of the game; it carries the same data the push events do.
func (s *Session) State() domain.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := domain.GameState{
		Game:             s.gameLocked(),
		ParticipantCount: s.participants.count(),
		Leaderboard:      s.leaderboardLocked(),
		Seq:              s.seq,
	}
	if s.status == domain.StatusInProgress {
		view := s.questions[s.current].View(false)
		state.CurrentQuestion = &view
		if remaining := s.deadline.Sub(s.deps.clock.Now()).Seconds(); remaining > 0 {
			state.SecondsRemaining = remaining
		}
	}
	return state
}

func cloneSettings(in domain.Settings) domain.Settings {
	out := in
	out.CheatPenalties = make(map[domain.CheatType]int, len(in.CheatPenalties))
	for k, v := range in.CheatPenalties {
		out.CheatPenalties[k] = v
	}
	return out
}
