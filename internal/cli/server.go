package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/memory"
	natsbus "live-quiz-service/internal/infra/nats"
	"live-quiz-service/internal/infra/postgres"
	redisinfra "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/metrics"
	"live-quiz-service/internal/realtime"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	metrics.Init()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	hub := realtime.NewHub(0)
	notifiers := realtime.Fanout{hub}
	var workers []func(context.Context) error

	var codes app.CodeStore = memory.NewCodeStore()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		codes = redisinfra.NewCodeStore(client, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
		sink := realtime.NewAsyncSink("redis", redisinfra.NewEventPublisher(client), 0, log)
		notifiers = append(notifiers, sink)
		workers = append(workers, sink.Run)
		log.WithField("addr", cfg.Redis.Addr).Info("redis code reservation and event fan-out enabled")
	}

	if cfg.NATS.URL != "" {
		conn, err := natsbus.Connect(cfg.NATS.URL, cfg.NATS.Token)
		if err != nil {
			return err
		}
		defer conn.Drain()
		sink := realtime.NewAsyncSink("nats", natsbus.NewEventPublisher(conn), 0, log)
		notifiers = append(notifiers, sink)
		workers = append(workers, sink.Run)
		log.WithField("url", cfg.NATS.URL).Info("nats event fan-out enabled")
	}

	var journal app.Journal
	var (
		archive  app.Archive
		archived app.ArchivedCodes
	)
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg.Postgres.URL, log); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		j := postgres.NewJournal(pool, 0, log)
		journal = j
		a := postgres.NewArchive(pool)
		archive, archived = a, a
		workers = append(workers, j.Run)
		log.Info("postgres journal enabled")
	}

	var states *memory.StateCache
	registry := app.NewRegistry(codes, app.RegistryOptions{
		Journal:      journal,
		Notifier:     notifiers,
		Avatars:      app.DiceBearAvatars{BaseURL: cfg.Game.AvatarURL},
		Logger:       log,
		CodeAttempts: cfg.Game.CodeAttempts,
		Archived:     archived,
		OnRetire: func(code string) {
			hub.CloseGame(code)
			states.Invalidate(code)
		},
	})
	service := app.NewGameService(registry, cfg.GameSettings(), log)
	if archive != nil {
		service.WithArchive(archive)
	}
	states = memory.NewStateCache(service, config.TTLDuration(cfg.Server.StateCacheTTL, 250*time.Millisecond))

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("auth.secret not set, organizer tokens will not survive a restart")
	}
	auth := transport.NewAuth(secret, config.TTLDuration(cfg.Auth.TokenTTL, 12*time.Hour), cfg.Auth.Organizers)
	api := transport.NewServer(service, hub, auth, states, transport.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		Logger:         log,
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, run := range workers {
		g.Go(func() error { return run(gctx) })
	}
	g.Go(func() error {
		service.RunJanitor(gctx,
			config.TTLDuration(cfg.Game.JanitorInterval, time.Minute),
			config.TTLDuration(cfg.Game.Retention, time.Hour))
		return nil
	})
	g.Go(func() error {
		log.WithField("port", finalPort).Info("starting live quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
