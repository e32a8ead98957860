package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"accounter.org/internal/accounting"
	"accounter.org/internal/obs"
	"accounter.org/internal/stream"
)

// ReadyProbe reports readiness, pinging the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the accounting service.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	svc        *accounting.Service
	stream     *stream.Stream

	rateBurst  int
	ratePerSec float64
}

// Option configures API.
type Option func(*API)

// WithStream enables GET /v1/stream.
func WithStream(st *stream.Stream) Option {
	return func(a *API) { a.stream = st }
}

// WithRateLimit sets the per-client token bucket. perSecond <= 0 disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(a *API) {
		a.ratePerSec = perSecond
		a.rateBurst = burst
	}
}

func New(rp ReadyProbe, version string, svc *accounting.Service, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		svc:        svc,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("GET /v1/transactions/{id}/matches", a.TransactionMatches)
	a.mux.HandleFunc("GET /v1/documents/{id}/matches", a.DocumentMatches)
	a.mux.HandleFunc("GET /v1/charges/{id}/ledger", a.ValidateLedger)
	a.mux.HandleFunc("POST /v1/charges/{id}/ledger", a.RegenerateLedger)
	a.mux.HandleFunc("GET /v1/charges/{id}/lock", a.ChargeLock)
	a.mux.HandleFunc("GET /v1/charges/{id}/balance", a.BalanceCharge)
	a.mux.HandleFunc("GET /v1/stream", a.Stream)

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	if a.ratePerSec > 0 {
		h = RateLimit(h, a.rateBurst, a.ratePerSec)
	}
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "accounter-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      "accounter-api",
		"time":      time.Now().UTC().Format(time.RFC3339),
		"version":   a.version,
		"lock_date": a.svc.LockDate(),
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
