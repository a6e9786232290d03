package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/TimKotowski/queuectl"
)

// Service is the queue surface the HTTP API exposes.
type Service interface {
	Enqueue(ctx context.Context, req queuectl.EnqueueRequest) (string, error)
	Get(ctx context.Context, id string) (*queuectl.Job, error)
	List(ctx context.Context, filter queuectl.ListFilter) ([]queuectl.Job, error)
	DeadLetters(ctx context.Context, queue string, limit int) ([]queuectl.Job, error)
	Logs(ctx context.Context, id string) ([]queuectl.JobLog, error)
	Requeue(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Queues(ctx context.Context) ([]string, error)
	Purge(ctx context.Context, queue string) (int, error)
	Metrics(ctx context.Context) (queuectl.Snapshot, error)
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	Settings(ctx context.Context) (map[string]string, error)
}

// NewRouter mounts every route. metrics serves the Prometheus exposition at /metrics.
func NewRouter(svc Service, metrics http.Handler, logger *slog.Logger) http.Handler {
	h := NewREST(svc, logger)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(RequestLogger(logger))
	r.Use(MaxBodySize(1 << 20))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", h.ListJobs)
			r.Post("/", h.EnqueueJob)
			r.Get("/{id}", h.GetJob)
			r.Delete("/{id}", h.DeleteJob)
			r.Get("/{id}/logs", h.JobLogs)
			r.Post("/{id}/retry", h.RetryJob)
		})
		r.Get("/queues", h.ListQueues)
		r.Post("/queues/{name}/purge", h.PurgeQueue)
		r.Get("/dlq", h.DeadLetters)
		r.Get("/metrics", h.Metrics)
		r.Get("/config", h.ListSettings)
		r.Get("/config/{key}", h.GetSetting)
		r.Put("/config/{key}", h.SetSetting)
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	return r
}

// NewServer wraps the router in an http.Server with the usual timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
