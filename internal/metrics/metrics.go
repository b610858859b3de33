// Package metrics exposes Prometheus counters for games and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QuestionsAsked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turtlesoup_questions_asked_total",
			Help: "Questions sent to the oracle",
		},
		[]string{"language"},
	)

	OracleFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turtlesoup_oracle_failures_total",
			Help: "Oracle calls that returned an error",
		},
		[]string{"language"},
	)

	OracleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turtlesoup_oracle_duration_seconds",
			Help:    "Duration of oracle judge calls",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"language"},
	)

	StagesUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turtlesoup_stages_unlocked_total",
			Help: "Stages unlocked by clearing or skipping",
		},
		[]string{"language", "via"},
	)

	GamesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turtlesoup_games_finished_total",
			Help: "Games that reached WON or LOST",
		},
		[]string{"language", "status"},
	)

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
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			QuestionsAsked,
			OracleFailures,
			OracleDuration,
			StagesUnlocked,
			GamesFinished,
			RequestCounter,
			RequestDuration,
		)
	})
}

// Middleware records request counts and durations by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			endpoint = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
