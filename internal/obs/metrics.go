package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ledgerGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_generation_total",
			Help: "Ledger generations per charge kind and result.",
		},
		[]string{"kind", "result"},
	)

	ledgerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_errors_total",
			Help: "Accounting errors by class and kind.",
		},
		[]string{"class", "error"},
	)

	matchCandidates = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "match_candidates",
		Help:    "Number of candidates proposed per matching run.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})

	lockChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_lock_checks_total",
			Help: "Ledger lock checks by outcome.",
		},
		[]string{"locked"},
	)

	initOnce sync.Once
)

// Init registers all collectors in the default registry. Safe to call repeatedly.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			ledgerGenerations, ledgerErrors, matchCandidates, lockChecks)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLedgerGeneration counts one generation attempt.
func ObserveLedgerGeneration(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ledgerGenerations.WithLabelValues(kind, result).Inc()
}

// ObserveError counts a classified error.
func ObserveError(class, name string) {
	ledgerErrors.WithLabelValues(class, name).Inc()
}

// ObserveCandidates records the size of a matching result.
func ObserveCandidates(n int) {
	matchCandidates.Observe(float64(n))
}

// ObserveLockCheck counts a lock decision.
func ObserveLockCheck(locked bool) {
	lockChecks.WithLabelValues(strconv.FormatBool(locked)).Inc()
}

// Instrument measures in-flight requests, totals and latency.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource ids so metric label cardinality stays bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) >= 3 && parts[0] == "v1" {
		switch parts[1] {
		case "charges", "transactions", "documents":
			if len(parts) <= 4 {
				parts[2] = ":id"
				return "/" + strings.Join(parts, "/")
			}
		}
	}
	return p
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
