package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2},
		},
		[]string{"method", "endpoint"},
	)

	GamesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quiz_games_created_total",
		Help: "Games opened by organizers",
	})

	GamesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quiz_games_completed_total",
		Help: "Games that reached the completed state",
	})

	ParticipantsJoined = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quiz_participants_joined_total",
		Help: "Participants registered across all games",
	})

	// AnswersSubmitted is labelled correct, incorrect or auto (synthesized on advance).
	AnswersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_answers_total",
			Help: "Answer records stored, by result",
		},
		[]string{"result"},
	)

	QuestionsAdvanced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_question_advances_total",
			Help: "Question transitions, by reason",
		},
		[]string{"reason"},
	)

	CheatReports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_cheat_reports_total",
			Help: "Anti-cheat reports that applied a penalty, by type",
		},
		[]string{"type"},
	)

	EventsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_events_delivered_total",
			Help: "Realtime events handed to a consumer, by sink",
		},
		[]string{"sink"},
	)

	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_events_dropped_total",
			Help: "Realtime events dropped because a consumer fell behind, by sink",
		},
		[]string{"sink"},
	)

	// JournalEntries counts persisted mutations by outcome: applied, duplicate, conflict,
	// failed, dropped.
	JournalEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_journal_entries_total",
			Help: "Journal entries handled by the Postgres writer, by result",
		},
		[]string{"result"},
	)

	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quiz_ws_connections",
		Help: "Open websocket connections",
	})
)

var initOnce sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			GamesCreated,
			GamesCompleted,
			ParticipantsJoined,
			AnswersSubmitted,
			QuestionsAdvanced,
			CheatReports,
			EventsDelivered,
			EventsDropped,
			JournalEntries,
			WSConnections,
		)
	})
}

// Middleware records request counts and latencies labelled by the matched chi route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
