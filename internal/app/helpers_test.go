package app_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

const organizer = "org-1"

var epoch = time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)

// fakeClock fires timers only when the test advances it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) app.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs every timer that became due, outside the lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t.f)
		}
	}
	c.mu.Unlock()
	for _, f := range due {
		f()
	}
}

// timer returns the i-th timer ever armed, stopped or not.
func (c *fakeClock) timer(i int) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[i]
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) Notify(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) all() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func (r *eventRecorder) ofType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, ev := range r.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *eventRecorder) last() domain.Event {
	all := r.all()
	return all[len(all)-1]
}

type journalRecorder struct {
	mu      sync.Mutex
	entries []domain.JournalEntry
}

func (j *journalRecorder) Append(entry domain.JournalEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journalRecorder) kinds() []domain.EntryKind {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.EntryKind, 0, len(j.entries))
	for _, e := range j.entries {
		out = append(out, e.Kind)
	}
	return out
}

type stubAvatars struct{}

func (stubAvatars) Generate(seed string) string { return "avatar://" + seed }

type harness struct {
	clock    *fakeClock
	events   *eventRecorder
	journal  *journalRecorder
	codes    *memory.CodeStore
	registry *app.Registry
	service  *app.GameService
	retired  []string
}

type harnessOption func(*app.RegistryOptions)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		clock:   newFakeClock(),
		events:  &eventRecorder{},
		journal: &journalRecorder{},
		codes:   memory.NewCodeStore(),
	}
	var ids atomic.Int64
	options := app.RegistryOptions{
		Clock:    h.clock,
		Journal:  h.journal,
		Notifier: h.events,
		Avatars:  stubAvatars{},
		Logger:   quietLogger(),
		NewID:    func() string { return fmt.Sprintf("id-%d", ids.Add(1)) },
		OnRetire: func(code string) { h.retired = append(h.retired, code) },
	}
	for _, opt := range opts {
		opt(&options)
	}
	h.registry = app.NewRegistry(h.codes, options)
	h.service = app.NewGameService(h.registry, domain.DefaultSettings(), quietLogger())
	return h
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func (h *harness) createGame(t *testing.T, questions ...domain.QuestionInput) string {
	t.Helper()
	game, err := h.service.CreateGame(context.Background(), organizer, "General knowledge", domain.SettingsOverride{})
	if err != nil {
		t.Fatalf("create game failed: %v", err)
	}
	for _, q := range questions {
		if _, err := h.service.AddQuestion(context.Background(), game.Code, organizer, q); err != nil {
			t.Fatalf("add question failed: %v", err)
		}
	}
	return game.Code
}

func (h *harness) join(t *testing.T, code, name string) domain.Participant {
	t.Helper()
	p, _, err := h.service.JoinGame(context.Background(), code, name)
	if err != nil {
		t.Fatalf("join %s failed: %v", name, err)
	}
	return p
}

func (h *harness) start(t *testing.T, code string) {
	t.Helper()
	if _, err := h.service.StartGame(context.Background(), code, organizer); err != nil {
		t.Fatalf("start failed: %v", err)
	}
}

func (h *harness) questions(t *testing.T, code string) []domain.QuestionView {
	t.Helper()
	qs, err := h.service.Questions(context.Background(), code, organizer)
	if err != nil {
		t.Fatalf("list questions failed: %v", err)
	}
	return qs
}

func (h *harness) answer(t *testing.T, participantID, questionID, answer string, usedHint bool) domain.AnswerResult {
	t.Helper()
	res, err := h.service.SubmitAnswer(context.Background(), domain.AnswerSubmission{
		ParticipantID: participantID,
		QuestionID:    questionID,
		Answer:        answer,
		UsedHint:      usedHint,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return res
}

func (h *harness) session(t *testing.T, code string) *app.Session {
	t.Helper()
	s, err := h.registry.Get(code)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return s
}

func trueFalse(text, answer string) domain.QuestionInput {
	return domain.QuestionInput{Type: domain.QuestionTrueFalse, Text: text, CorrectAnswer: answer}
}

func mcq(text string, options []string, answer string) domain.QuestionInput {
	return domain.QuestionInput{Type: domain.QuestionMCQ, Text: text, Options: options, CorrectAnswer: answer}
}

func intPtr(v int) *int { return &v }
