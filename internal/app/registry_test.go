package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

func sequenceCodes(codes ...string) func() string {
	i := 0
	return func() string {
		code := codes[i%len(codes)]
		i++
		return code
	}
}

func TestRegistryRetriesCodeCollisions(t *testing.T) {
	h := newHarness(t, func(o *app.RegistryOptions) {
		o.NewCode = sequenceCodes("AAAAAA", "AAAAAA", "BBBBBB")
	})
	ctx := context.Background()

	first, err := h.service.CreateGame(ctx, organizer, "One", domain.SettingsOverride{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := h.service.CreateGame(ctx, organizer, "Two", domain.SettingsOverride{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first.Code != "AAAAAA" || second.Code != "BBBBBB" {
		t.Fatalf("expected collision to be retried, got %s and %s", first.Code, second.Code)
	}
}

func TestRegistrySkipsCodesReservedElsewhere(t *testing.T) {
	h := newHarness(t, func(o *app.RegistryOptions) {
		o.NewCode = sequenceCodes("TAKEN1", "FREE01")
	})
	ctx := context.Background()
	if ok, _ := h.codes.Reserve(ctx, "TAKEN1"); !ok {
		t.Fatalf("expected to pre-reserve code")
	}

	game, err := h.service.CreateGame(ctx, organizer, "Quiz", domain.SettingsOverride{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if game.Code != "FREE01" {
		t.Fatalf("expected code reserved by another instance to be skipped, got %s", game.Code)
	}
}

func TestRegistryGivesUpAfterAttempts(t *testing.T) {
	h := newHarness(t, func(o *app.RegistryOptions) {
		o.NewCode = sequenceCodes("AAAAAA")
		o.CodeAttempts = 3
	})
	ctx := context.Background()
	if _, err := h.service.CreateGame(ctx, organizer, "One", domain.SettingsOverride{}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := h.service.CreateGame(ctx, organizer, "Two", domain.SettingsOverride{}); !errors.Is(err, domain.ErrCodeExhausted) {
		t.Fatalf("expected ErrCodeExhausted, got %v", err)
	}
}

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	h := newHarness(t, func(o *app.RegistryOptions) {
		o.NewCode = sequenceCodes("ABC123")
	})
	h.createGame(t)
	if _, err := h.registry.Get(" abc123 "); err != nil {
		t.Fatalf("expected lookup to normalise the code, got %v", err)
	}
}

func TestListByOrganizer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createGame(t)
	h.createGame(t)
	if _, err := h.service.CreateGame(ctx, "org-2", "Other", domain.SettingsOverride{}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	games := h.service.ListGames(ctx, organizer)
	if len(games) != 2 {
		t.Fatalf("expected 2 games for organizer, got %d", len(games))
	}
	for _, g := range games {
		if g.OrganizerID != organizer {
			t.Fatalf("unexpected game %+v", g)
		}
	}
}

func TestRetireCompletedGames(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	done := h.createGame(t, trueFalse("a", "True"))
	alice := h.join(t, done, "Alice")
	waiting := h.createGame(t, trueFalse("b", "True"))
	h.start(t, done)
	h.answer(t, alice.ID, h.questions(t, done)[0].ID, "True", false)

	if n := h.registry.RetireCompleted(ctx, time.Hour); n != 0 {
		t.Fatalf("expected nothing retired before retention elapses, got %d", n)
	}
	h.clock.Advance(2 * time.Hour)
	if n := h.registry.RetireCompleted(ctx, time.Hour); n != 1 {
		t.Fatalf("expected one game retired, got %d", n)
	}

	if _, err := h.registry.Get(done); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected retired game to be gone, got %v", err)
	}
	if _, err := h.registry.SessionFor(alice.ID); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected participant index to be cleared, got %v", err)
	}
	if _, err := h.registry.Get(waiting); err != nil {
		t.Fatalf("expected waiting game to survive, got %v", err)
	}
	if h.codes.Len() != 1 {
		t.Fatalf("expected retired code to be released, got %d reserved", h.codes.Len())
	}
	if len(h.retired) != 1 || h.retired[0] != done {
		t.Fatalf("expected retire hook for %s, got %v", done, h.retired)
	}
}

func TestRetireCancelsPendingDeadline(t *testing.T) {
	h := newHarness(t)
	code := h.createGame(t, trueFalse("a", "True"), trueFalse("b", "True"))
	h.start(t, code)
	session := h.session(t, code)

	if err := h.registry.Retire(context.Background(), code); err != nil {
		t.Fatalf("retire failed: %v", err)
	}
	before := len(h.events.all())
	h.clock.Advance(time.Minute)
	if session.Game().CurrentQuestionIndex != 0 || len(h.events.all()) != before {
		t.Fatalf("expected retired session to stop advancing")
	}
	if err := h.registry.Retire(context.Background(), code); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected second retire to report not found, got %v", err)
	}
}

func TestRetireAcceptsLowercaseCode(t *testing.T) {
	h := newHarness(t)
	code := h.createGame(t, trueFalse("a", "True"))

	if err := h.registry.Retire(context.Background(), "  "+strings.ToLower(code)+" "); err != nil {
		t.Fatalf("retire with lowercase code failed: %v", err)
	}
	if _, err := h.registry.Get(code); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected game to be retired, got %v", err)
	}
	if h.codes.Len() != 0 {
		t.Fatalf("expected code to be released, got %d reserved", h.codes.Len())
	}
	if len(h.retired) != 1 || h.retired[0] != code {
		t.Fatalf("expected retire hook for %s, got %v", code, h.retired)
	}
}

type archivedCodes map[string]bool

func (a archivedCodes) Archived(_ context.Context, code string) (bool, error) {
	return a[code], nil
}

type failingArchive struct{}

func (failingArchive) Archived(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestRetiredCodeIsNotReissuedWhileArchived(t *testing.T) {
	known := archivedCodes{}
	h := newHarness(t, func(o *app.RegistryOptions) {
		o.NewCode = sequenceCodes("AAAAAA", "AAAAAA", "BBBBBB")
		o.Archived = known
	})
	ctx := context.Background()

	first := h.createGame(t, trueFalse("a", "True"))
	if first != "AAAAAA" {
		t.Fatalf("expected AAAAAA, got %s", first)
	}
	known[first] = true
	if err := h.registry.Retire(ctx, first); err != nil {
		t.Fatalf("retire failed: %v", err)
	}

	second, err := h.service.CreateGame(ctx, organizer, "Round two", domain.SettingsOverride{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if second.Code != "BBBBBB" {
		t.Fatalf("expected archived code to be skipped, got %s", second.Code)
	}

	created := 0
	for _, kind := range h.journal.kinds() {
		if kind == domain.EntryGameCreated {
			created++
		}
	}
	if created != 2 {
		t.Fatalf("expected two distinct game rows journaled, got %d", created)
	}
}

func TestCreateFailsWhenArchiveCannotBeChecked(t *testing.T) {
	h := newHarness(t, func(o *app.RegistryOptions) {
		o.Archived = failingArchive{}
	})
	_, err := h.service.CreateGame(context.Background(), organizer, "Quiz", domain.SettingsOverride{})
	if err == nil || errors.Is(err, domain.ErrCodeExhausted) {
		t.Fatalf("expected archive lookup error, got %v", err)
	}
	if h.codes.Len() != 0 {
		t.Fatalf("expected no code reserved, got %d", h.codes.Len())
	}
}

func TestNewGameCodeShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := app.NewGameCode()
		if len(code) != 6 {
			t.Fatalf("expected 6 characters, got %q", code)
		}
		for _, r := range code {
			if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
				t.Fatalf("unexpected character in %q", code)
			}
		}
	}
}

type staticArchive struct {
	game domain.Game
}

func (a staticArchive) Game(_ context.Context, code string) (domain.Game, error) {
	if code != a.game.Code {
		return domain.Game{}, domain.ErrGameNotFound
	}
	return a.game, nil
}

func (a staticArchive) Leaderboard(_ context.Context, code string) (domain.Leaderboard, error) {
	if code != a.game.Code {
		return domain.Leaderboard{}, domain.ErrGameNotFound
	}
	return domain.Leaderboard{GameCode: code}, nil
}

func TestRetiredGamesFallBackToArchive(t *testing.T) {
	h := newHarness(t)
	h.service.WithArchive(staticArchive{game: domain.Game{Code: "OLD123", Status: domain.StatusCompleted}})
	ctx := context.Background()

	game, err := h.service.Game(ctx, "old123")
	if err != nil || game.Status != domain.StatusCompleted {
		t.Fatalf("expected archived game, got %+v err=%v", game, err)
	}
	if _, err := h.service.Leaderboard(ctx, "OLD123"); err != nil {
		t.Fatalf("expected archived leaderboard, got %v", err)
	}
	if _, err := h.service.Game(ctx, "NOPE00"); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
