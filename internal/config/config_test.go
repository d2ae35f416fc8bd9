package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: "9090"
redis:
  addr: "localhost:6379"
game:
  question_time_limit: 20
  cheat_penalties:
    tab_switch: 5
    SCREENSHOT: 99
auth:
  organizers:
    alice: secret
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected values %+v", cfg)
	}
	if cfg.Server.RateLimit != 600 || cfg.Log.Level != "info" {
		t.Fatalf("expected defaults to survive, got rate=%d level=%s", cfg.Server.RateLimit, cfg.Log.Level)
	}
	if cfg.Auth.Organizers["alice"] != "secret" {
		t.Fatalf("expected organizer credentials, got %v", cfg.Auth.Organizers)
	}

	s := cfg.GameSettings()
	if s.QuestionTimeLimitSeconds != 20 || s.HintPenalty != 15 {
		t.Fatalf("unexpected settings %+v", s)
	}
	if s.CheatPenalties[domain.CheatTabSwitch] != 5 || s.CheatPenalties[domain.CheatDevTools] != 15 {
		t.Fatalf("unexpected penalties %v", s.CheatPenalties)
	}
	if _, ok := s.CheatPenalties["SCREENSHOT"]; ok {
		t.Fatalf("expected unknown cheat type to be ignored")
	}
}

func TestZeroHintPenaltyDisablesHintCost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("game:\n  hint_penalty: 0\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s := cfg.GameSettings(); s.HintPenalty != 0 {
		t.Fatalf("expected hint penalty 0, got %d", s.HintPenalty)
	}
	if s := Defaults().GameSettings(); s.HintPenalty != 15 {
		t.Fatalf("expected default hint penalty when unset, got %d", s.HintPenalty)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Game.CodeAttempts != 10 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("JWT_SECRET", "from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("redis:\n  addr: file:6379\nauth:\n  secret: from-file\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Redis.Addr != "redis:6380" || cfg.Auth.Secret != "from-env" {
		t.Fatalf("expected env to win, got addr=%s secret=%s", cfg.Redis.Addr, cfg.Auth.Secret)
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("garbage", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for invalid input, got %v", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}
