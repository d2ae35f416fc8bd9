package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"live-quiz-service/internal/domain"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		// RateLimit is the number of API requests allowed per client IP per minute.
		RateLimit     int    `yaml:"rate_limit"`
		StateCacheTTL string `yaml:"state_cache_ttl"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	NATS struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
	} `yaml:"nats"`
	Game struct {
		QuestionTimeLimit int            `yaml:"question_time_limit"`
		// HintPenalty is a pointer so an explicit 0 turns the penalty off.
		HintPenalty       *int           `yaml:"hint_penalty"`
		CheatPenalties    map[string]int `yaml:"cheat_penalties"`
		Retention         string         `yaml:"retention"`
		JanitorInterval   string         `yaml:"janitor_interval"`
		CodeAttempts      int            `yaml:"code_attempts"`
		AvatarURL         string         `yaml:"avatar_url"`
	} `yaml:"game"`
	Auth struct {
		Secret   string `yaml:"secret"`
		TokenTTL string `yaml:"token_ttl"`
		// Organizers maps usernames to passwords. When empty any non-empty credentials log in.
		Organizers map[string]string `yaml:"organizers"`
	} `yaml:"auth"`
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
}

// Load reads YAML config from path, after loading a .env file from the working directory
// when one exists. A missing config file yields defaults; environment variables win over
// both.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Server.RateLimit = 600
	cfg.Server.StateCacheTTL = "250ms"
	cfg.Redis.TTL = "24h"
	cfg.Game.Retention = "1h"
	cfg.Game.JanitorInterval = "1m"
	cfg.Game.CodeAttempts = 10
	cfg.Auth.TokenTTL = "12h"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"REDIS_ADDR", &cfg.Redis.Addr},
		{"REDIS_PASSWORD", &cfg.Redis.Password},
		{"POSTGRES_URL", &cfg.Postgres.URL},
		{"NATS_URL", &cfg.NATS.URL},
		{"NATS_TOKEN", &cfg.NATS.Token},
		{"JWT_SECRET", &cfg.Auth.Secret},
		{"LOG_LEVEL", &cfg.Log.Level},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.dst = v
		}
	}
}

// GameSettings turns the game section into per-game defaults, keeping the built-in value
// for anything unset.
func (c Config) GameSettings() domain.Settings {
	s := domain.DefaultSettings()
	if c.Game.QuestionTimeLimit > 0 {
		s.QuestionTimeLimitSeconds = c.Game.QuestionTimeLimit
	}
	if p := c.Game.HintPenalty; p != nil && *p >= 0 {
		s.HintPenalty = *p
	}
	for name, penalty := range c.Game.CheatPenalties {
		t := domain.CheatType(strings.ToUpper(name))
		if t.Valid() && penalty >= 0 {
			s.CheatPenalties[t] = penalty
		}
	}
	return s
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
