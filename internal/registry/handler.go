package registry

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/SirClappington/jobstream/internal/domain"
	"github.com/SirClappington/jobstream/internal/logging"
	"github.com/SirClappington/jobstream/internal/observability"
)

type HandlerOptions struct {
	ServerTiming bool
}

// NewHandler exposes r over HTTP:
//
//	GET /status            create a job
//	GET /status/{job_id}   query a job
//	GET /healthz           liveness
func NewHandler(r *Registry, logger *zap.Logger, opts HandlerOptions) http.Handler {
	rtr := chi.NewRouter()
	rtr.Use(middleware.RequestID)
	rtr.Use(logging.RequestLogger(logger))
	rtr.Use(middleware.Recoverer)
	if opts.ServerTiming {
		rtr.Use(observability.ServerTimingMiddleware)
	}

	h := &handler{registry: r, logger: logger}
	rtr.Get("/status", h.createJob)
	rtr.Get("/status/{job_id}", h.queryJob)
	rtr.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return rtr
}

type handler struct {
	registry *Registry
	logger   *zap.Logger
}

func (h *handler) createJob(w http.ResponseWriter, req *http.Request) {
	timing := observability.StartServerTiming(req.Context(), "create")
	rep, err := h.registry.CreateJob(req.Context())
	timing.Stop()
	if err != nil {
		h.writeError(w, "create job", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *handler) queryJob(w http.ResponseWriter, req *http.Request) {
	timing := observability.StartServerTiming(req.Context(), "query")
	rep, err := h.registry.QueryJob(req.Context(), chi.URLParam(req, "job_id"))
	timing.Stop()
	if err != nil {
		h.writeError(w, "query job", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type errorBody struct {
	Detail string `json:"detail"`
}

// writeError maps registry errors to HTTP responses.
func (h *handler) writeError(w http.ResponseWriter, logMsg string, err error) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{"Job ID not found"})
	default:
		h.logger.Error(logMsg, zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{"internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
