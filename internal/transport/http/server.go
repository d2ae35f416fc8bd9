package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/metrics"
	"live-quiz-service/internal/realtime"
)

// Options configures the HTTP surface. Zero values keep the defaults.
type Options struct {
	AllowedOrigins []string
	// RateLimit is the number of API requests allowed per client IP per minute.
	RateLimit      int
	RequestTimeout time.Duration
	WSRate         float64
	WSBurst        int
	Logger         logrus.FieldLogger
}

// Server exposes the game service over REST and websockets.
type Server struct {
	service  *app.GameService
	hub      *realtime.Hub
	auth     *Auth
	states   StateReader
	log      logrus.FieldLogger
	opts     Options
	upgrader websocket.Upgrader
}

// NewServer builds the transport. states may be nil, in which case pull snapshots are
// read straight from the service.
func NewServer(service *app.GameService, hub *realtime.Hub, auth *Auth, states StateReader, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 600
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if states == nil {
		states = service
	}
	return &Server{
		service: service,
		hub:     hub,
		auth:    auth,
		states:  states,
		log:     opts.Logger,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

// Routes returns the root handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.health)
	r.Handle("/metrics", metrics.Handler())
	r.With(s.auth.Verifier()).Get("/ws", s.serveWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
		r.Use(httprate.LimitByIP(s.opts.RateLimit, time.Minute))
		r.Use(s.auth.Verifier())

		r.Post("/organizer/login", s.login)
		r.Post("/participants", s.joinByBody)
		r.Post("/answers", s.submitAnswer)
		r.Post("/cheat-detected", s.reportCheat)

		r.Route("/games", func(r chi.Router) {
			r.With(s.auth.RequireOrganizer).Post("/", s.createGame)
			r.With(s.auth.RequireOrganizer).Get("/", s.listGames)

			r.Route("/{code}", func(r chi.Router) {
				r.Get("/", s.getGame)
				r.Get("/questions", s.listQuestions)
				r.With(s.auth.RequireOrganizer).Post("/questions", s.addQuestion)
				r.With(s.auth.RequireOrganizer).Post("/start", s.startGame)
				r.With(s.auth.RequireOrganizer).Post("/advance", s.skipQuestion)
				r.Post("/join", s.joinGame)
				r.Get("/participants", s.listParticipants)
				r.Get("/leaderboard", s.leaderboard)
				r.Get("/state", s.state)
			})
		})
	})
	return r
}

func requestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.WithFields(logrus.Fields{
					"method":     r.Method,
					"path":       r.URL.Path,
					"remote":     r.RemoteAddr,
					"status":     ww.Status(),
					"duration":   time.Since(start),
					"request_id": middleware.GetReqID(r.Context()),
				}).Debug("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func gameCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
