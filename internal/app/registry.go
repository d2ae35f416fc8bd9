package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
)

const (
	codeLength          = 6
	codeAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	defaultCodeAttempts = 10
)

// CodeStore reserves game codes so that no two live games share one (in-memory, Redis, etc).
type CodeStore interface {
	Reserve(ctx context.Context, code string) (bool, error)
	Release(ctx context.Context, code string) error
}

// ArchivedCodes reports whether a code already belongs to a game kept in durable storage.
// Retired codes are freed for live use, so without this check a new game could reuse the
// code of an archived one.
type ArchivedCodes interface {
	Archived(ctx context.Context, code string) (bool, error)
}

// RegistryOptions configures how sessions are built. Zero values fall back to defaults.
type RegistryOptions struct {
	Clock        Clock
	Journal      Journal
	Notifier     Notifier
	Avatars      AvatarProvider
	Logger       logrus.FieldLogger
	NewCode      func() string
	NewID        func() string
	CodeAttempts int
	Archived     ArchivedCodes
	// OnRetire runs after a session leaves the live table, e.g. to drop its subscribers.
	OnRetire func(code string)
}

// Registry creates, looks up and retires game sessions by code. It is the only shared
// table; each Session serializes its own mutations.
type Registry struct {
	codes    CodeStore
	deps     sessionDeps
	newCode  func() string
	attempts int
	archived ArchivedCodes
	onRetire func(code string)

	mu           sync.RWMutex
	sessions     map[string]*Session
	order        []*Session
	participants map[string]string
}

func NewRegistry(codes CodeStore, opts RegistryOptions) *Registry {
	deps := sessionDeps{
		clock:    opts.Clock,
		journal:  opts.Journal,
		notifier: opts.Notifier,
		avatars:  opts.Avatars,
		newID:    opts.NewID,
		log:      opts.Logger,
	}
	if deps.clock == nil {
		deps.clock = SystemClock{}
	}
	if deps.journal == nil {
		deps.journal = nopJournal{}
	}
	if deps.notifier == nil {
		deps.notifier = nopNotifier{}
	}
	if deps.avatars == nil {
		deps.avatars = DiceBearAvatars{}
	}
	if deps.newID == nil {
		deps.newID = uuid.NewString
	}
	if deps.log == nil {
		deps.log = logrus.StandardLogger()
	}
	r := &Registry{
		codes:        codes,
		deps:         deps,
		newCode:      opts.NewCode,
		attempts:     opts.CodeAttempts,
		archived:     opts.Archived,
		onRetire:     opts.OnRetire,
		sessions:     make(map[string]*Session),
		participants: make(map[string]string),
	}
	if r.newCode == nil {
		r.newCode = NewGameCode
	}
	if r.attempts <= 0 {
		r.attempts = defaultCodeAttempts
	}
	return r
}

// NewGameCode draws a 6-character uppercase alphanumeric code.
func NewGameCode() string {
	id := uuid.New()
	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeAlphabet[int(id[i])%len(codeAlphabet)]
	}
	return string(code)
}

// Create opens a new waiting session with a code not held by any live or archived game.
func (r *Registry) Create(ctx context.Context, organizerID, title string, settings domain.Settings) (*Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.Validationf("title is required")
	}
	if strings.TrimSpace(organizerID) == "" {
		return nil, domain.Validationf("organizer id is required")
	}

	for i := 0; i < r.attempts; i++ {
		code := r.newCode()

		r.mu.RLock()
		_, taken := r.sessions[code]
		r.mu.RUnlock()
		if taken {
			continue
		}
		if r.archived != nil {
			known, err := r.archived.Archived(ctx, code)
			if err != nil {
				return nil, fmt.Errorf("check archived game code: %w", err)
			}
			if known {
				continue
			}
		}

		ok, err := r.codes.Reserve(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("reserve game code: %w", err)
		}
		if !ok {
			continue
		}

		session := newSession(code, organizerID, title, settings, r.deps)
		game := session.Game()

		r.mu.Lock()
		if _, taken := r.sessions[code]; taken {
			r.mu.Unlock()
			_ = r.codes.Release(ctx, code)
			continue
		}
		r.deps.journal.Append(domain.JournalEntry{Kind: domain.EntryGameCreated, Game: &game})
		r.sessions[code] = session
		r.order = append(r.order, session)
		r.mu.Unlock()

		r.deps.log.WithFields(logrus.Fields{"code": code, "organizer": organizerID}).Info("game created")
		return session, nil
	}
	return nil, domain.ErrCodeExhausted
}

// Get returns the live session for code.
func (r *Registry) Get(code string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[normalizeCode(code)]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	return session, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ListByOrganizer returns the organizer's live sessions in creation order.
func (r *Registry) ListByOrganizer(organizerID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, s := range r.order {
		if s.organizerID == organizerID {
			out = append(out, s)
		}
	}
	return out
}

// Join adds a participant to the game and indexes the participant id for lookups that
// arrive without a game code.
func (r *Registry) Join(code, name string) (domain.Participant, *Session, error) {
	session, err := r.Get(code)
	if err != nil {
		return domain.Participant{}, nil, err
	}
	p, err := session.Join(name)
	if err != nil {
		return domain.Participant{}, nil, err
	}
	r.mu.Lock()
	r.participants[p.ID] = session.code
	r.mu.Unlock()
	return p, session, nil
}

// SessionFor resolves the session a participant belongs to.
func (r *Registry) SessionFor(participantID string) (*Session, error) {
	r.mu.RLock()
	code, ok := r.participants[participantID]
	var session *Session
	if ok {
		session = r.sessions[code]
	}
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	if session == nil {
		return nil, domain.ErrGameNotFound
	}
	return session, nil
}

// Retire removes a session from the live table, cancels its timer and frees its code.
func (r *Registry) Retire(ctx context.Context, code string) error {
	code = normalizeCode(code)
	r.mu.Lock()
	session, ok := r.sessions[code]
	if !ok {
		r.mu.Unlock()
		return domain.ErrGameNotFound
	}
	delete(r.sessions, code)
	for i, s := range r.order {
		if s == session {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	for pid, c := range r.participants {
		if c == code {
			delete(r.participants, pid)
		}
	}
	r.mu.Unlock()

	session.shutdown()
	if r.onRetire != nil {
		r.onRetire(code)
	}
	if err := r.codes.Release(ctx, code); err != nil {
		return fmt.Errorf("release game code: %w", err)
	}
	r.deps.log.WithField("code", code).Info("game retired")
	return nil
}

// RetireCompleted retires every completed session that ended more than retention ago and
// returns how many were retired.
func (r *Registry) RetireCompleted(ctx context.Context, retention time.Duration) int {
	cutoff := r.deps.clock.Now().Add(-retention)

	r.mu.RLock()
	var stale []string
	for _, s := range r.order {
		game := s.Game()
		if game.Status == domain.StatusCompleted && game.EndedAt != nil && game.EndedAt.Before(cutoff) {
			stale = append(stale, s.code)
		}
	}
	r.mu.RUnlock()

	retired := 0
	for _, code := range stale {
		if err := r.Retire(ctx, code); err != nil {
			r.deps.log.WithError(err).WithField("code", code).Warn("retire game failed")
			continue
		}
		retired++
	}
	return retired
}
