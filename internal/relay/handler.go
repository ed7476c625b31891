package relay

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/SirClappington/jobstream/internal/logging"
)

// NewHandler exposes the relay to subscribers:
//
//	GET /client_status   event stream of one job's statuses
//	GET /healthz         liveness
func NewHandler(r *Relay, encode Encoder, logger *zap.Logger) http.Handler {
	rtr := chi.NewRouter()
	rtr.Use(middleware.RequestID)
	rtr.Use(logging.RequestLogger(logger))
	rtr.Use(middleware.Recoverer)

	rtr.Get("/client_status", func(w http.ResponseWriter, req *http.Request) {
		sink, err := NewSSEWriter(w, encode)
		if err != nil {
			logger.Error("open event stream", zap.Error(err))
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		if err := r.StreamStatus(req.Context(), sink); err != nil {
			logger.Debug("event stream closed", zap.Error(err),
				zap.String("request_id", middleware.GetReqID(req.Context())))
		}
	})

	rtr.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	return rtr
}
