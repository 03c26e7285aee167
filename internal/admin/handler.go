// Package admin serves the operator API: live sessions, queue depths,
// liveness, Prometheus metrics and the runtime log level.
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cory-johannsen/retroarcade/internal/arcade"
)

// Views is the read side of the arcade the API exposes.
type Views interface {
	Sessions() []arcade.SessionInfo
	Session(id string) (arcade.SessionInfo, bool)
	QueueSizes() map[string]int
}

type handler struct {
	views  Views
	logger *zap.Logger
}

// NewHandler builds the admin router.
//
// Precondition: views, gatherer and logger must be non-nil.
func NewHandler(views Views, gatherer prometheus.Gatherer, level zap.AtomicLevel, logger *zap.Logger) http.Handler {
	h := &handler{views: views, logger: logger.Named("admin")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", h.healthz)
	r.Get("/sessions", h.listSessions)
	r.Get("/sessions/{id}", h.getSession)
	r.Get("/queues", h.queues)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Method(http.MethodGet, "/loglevel", level)
	r.Method(http.MethodPut, "/loglevel", level)
	return r
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handler) listSessions(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.views.Sessions())
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, ok := h.views.Session(id)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, errorBody{Error: "session not found"})
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

func (h *handler) queues(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.views.QueueSizes())
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encoding response", zap.Error(err))
	}
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
