// Package httpapi exposes the node's served HTTP surface: the
// exchange-compatible klines read endpoint, a health snapshot, and two
// admin/ops endpoints.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/sawpanic/klinenode/internal/metrics"
	"github.com/sawpanic/klinenode/internal/registry"
	"github.com/sawpanic/klinenode/internal/usecase"
)

// Server wires the use-cases into gorilla/mux routes.
type Server struct {
	getKlines   *usecase.GetKlines
	health      *usecase.Health
	registry    *registry.SymbolRegistry
	binanceBase string
	quoteAssets []string
	metrics     *metrics.Registry
	log         zerolog.Logger
}

// NewServer builds the Server; metrics may be nil to disable instrumentation.
func NewServer(getKlines *usecase.GetKlines, health *usecase.Health, reg *registry.SymbolRegistry, binanceBase string, quoteAssets []string, m *metrics.Registry, log zerolog.Logger) *Server {
	return &Server{
		getKlines: getKlines, health: health, registry: reg,
		binanceBase: binanceBase, quoteAssets: quoteAssets, metrics: m, log: log,
	}
}

// Router builds the full mux.Router. When metrics are enabled it instruments
// the klines, health and refresh routes and serves /v1/metrics (itself not
// instrumented).
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/fapi/v1/klines", s.withMetrics("klines", s.handleKlines)).Methods(http.MethodGet)
	r.HandleFunc("/v1/health", s.withMetrics("health", s.handleHealth)).Methods(http.MethodGet)
	r.HandleFunc("/v1/admin/symbols/refresh", s.withMetrics("symbols_refresh", s.handleSymbolsRefresh)).Methods(http.MethodPost)
	if s.metrics != nil {
		r.Handle("/v1/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

func (s *Server) withMetrics(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if s.metrics == nil {
			next(w, req)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, req)
		s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		s.metrics.HTTPRequests.WithLabelValues(route, http.StatusText(rec.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
