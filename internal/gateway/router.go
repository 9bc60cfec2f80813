package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"recitation-gateway/internal/config"
	"recitation-gateway/internal/observability/metrics"
)

// NewRouter assembles the gateway's HTTP surface. The CORS middleware sits
// outside the chi mux so preflight requests on any path, known or not, are
// answered with 204 before routing happens.
func NewRouter(cfg *config.Configuration, h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics(metrics.DefaultMetrics))

	r.Post("/api/openai/transcribe", h.TranscribeOpenAI)
	r.Post("/api/openai/tts", h.TTS)
	r.Post("/api/openai/compare", h.Compare)
	r.Post("/api/assemblyai/transcribe", h.TranscribeAssemblyAI)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	policy := newCORSPolicy(cfg.Service.AllowedOrigins)
	return policy.middleware(r)
}

// requestMetrics records per-route counters and latencies.
func requestMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			m.RecordRequest(r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start).Seconds())
		})
	}
}
