package listener

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hdx-tools/pcode-detector/internal/fetcher"
	"github.com/hdx-tools/pcode-detector/internal/model"
)

const maxEventBytes = 64 << 10

// NewRouter exposes the queue over HTTP: POST /events enqueues one event
// and GET /health reports the queue depth.
func NewRouter(q *Queue) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "queued": q.Len()})
	})

	r.Post("/events", func(w http.ResponseWriter, req *http.Request) {
		ev, err := fetcher.DecodeJSONObject[model.Event](http.MaxBytesReader(w, req.Body, maxEventBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		queued, err := q.Enqueue(*ev)
		switch {
		case eris.Is(err, ErrInvalidEvent):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dataset_id and resource_id are required"})
		case eris.Is(err, ErrQueueFull):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "queue full"})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		case !queued:
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "already queued", "resource_id": ev.ResourceID})
		default:
			zap.L().Debug("listener: event accepted", zap.String("resource_id", ev.ResourceID))
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "resource_id": ev.ResourceID})
		}
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
