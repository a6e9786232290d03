package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/TimKotowski/queuectl"
)

// REST handles HTTP requests against a queue.
type REST struct {
	svc    Service
	logger *slog.Logger
}

func NewREST(svc Service, logger *slog.Logger) *REST {
	return &REST{svc: svc, logger: logger}
}

type EnqueueResponse struct {
	ID    string         `json:"id"`
	State queuectl.State `json:"state"`
}

type ActionResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type PurgeResponse struct {
	Deleted int    `json:"deleted"`
	Message string `json:"message"`
}

type SettingRequest struct {
	Value string `json:"value"`
}

type SettingResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Health handles GET /api/health.
func (h *REST) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ListJobs handles GET /api/jobs.
func (h *REST) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	jobs, err := h.svc.List(r.Context(), queuectl.ListFilter{
		State: r.URL.Query().Get("state"),
		Queue: r.URL.Query().Get("queue"),
		Limit: limit,
	})
	if err != nil {
		h.writeQueueError(w, "list jobs", err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(jobs))
}

// EnqueueJob handles POST /api/jobs. The body is always a job descriptor.
func (h *REST) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("queuectl/api").Start(r.Context(), "api.enqueue_job",
		trace.WithSpanKind(trace.SpanKindProducer),
	)
	defer span.End()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := queuectl.ParseEnqueueInput(queuectl.InputDescriptor, string(body), queuectl.EnqueueRequest{})
	if err != nil {
		h.writeQueueError(w, "enqueue", err)
		return
	}

	id, err := h.svc.Enqueue(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue failed")
		h.writeQueueError(w, "enqueue", err)
		return
	}
	span.SetAttributes(attribute.String("job.id", id))

	writeJSON(w, http.StatusCreated, EnqueueResponse{ID: id, State: queuectl.StatePending})
}

// GetJob handles GET /api/jobs/{id}.
func (h *REST) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeQueueError(w, "get job", err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// JobLogs handles GET /api/jobs/{id}/logs.
func (h *REST) JobLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.svc.Logs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeQueueError(w, "job logs", err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(logs))
}

// RetryJob handles POST /api/jobs/{id}/retry.
func (h *REST) RetryJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Requeue(r.Context(), id); err != nil {
		h.writeQueueError(w, "retry job", err)
		return
	}

	writeJSON(w, http.StatusOK, ActionResponse{OK: true, Message: fmt.Sprintf("job %s moved back to pending", id)})
}

// DeleteJob handles DELETE /api/jobs/{id}.
func (h *REST) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeQueueError(w, "delete job", err)
		return
	}

	writeJSON(w, http.StatusOK, ActionResponse{OK: true, Message: fmt.Sprintf("job %s deleted", id)})
}

// ListQueues handles GET /api/queues.
func (h *REST) ListQueues(w http.ResponseWriter, r *http.Request) {
	queues, err := h.svc.Queues(r.Context())
	if err != nil {
		h.writeQueueError(w, "list queues", err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(queues))
}

// PurgeQueue handles POST /api/queues/{name}/purge.
func (h *REST) PurgeQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	n, err := h.svc.Purge(r.Context(), name)
	if err != nil {
		h.writeQueueError(w, "purge queue", err)
		return
	}

	writeJSON(w, http.StatusOK, PurgeResponse{Deleted: n, Message: fmt.Sprintf("purged %d jobs from %s", n, name)})
}

// DeadLetters handles GET /api/dlq.
func (h *REST) DeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	jobs, err := h.svc.DeadLetters(r.Context(), r.URL.Query().Get("queue"), limit)
	if err != nil {
		h.writeQueueError(w, "dead letters", err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(jobs))
}

// Metrics handles GET /api/metrics.
func (h *REST) Metrics(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.svc.Metrics(r.Context())
	if err != nil {
		h.writeQueueError(w, "metrics", err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// ListSettings handles GET /api/config.
func (h *REST) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.Settings(r.Context())
	if err != nil {
		h.writeQueueError(w, "list settings", err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// GetSetting handles GET /api/config/{key}.
func (h *REST) GetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, ok, err := h.svc.GetSetting(r.Context(), key)
	if err != nil {
		h.writeQueueError(w, "get setting", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("setting %s not found", key))
		return
	}

	writeJSON(w, http.StatusOK, SettingResponse{Key: key, Value: value})
}

// SetSetting handles PUT /api/config/{key}.
func (h *REST) SetSetting(w http.ResponseWriter, r *http.Request) {
	var req SettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := chi.URLParam(r, "key")
	if err := h.svc.SetSetting(r.Context(), key, req.Value); err != nil {
		h.writeQueueError(w, "set setting", err)
		return
	}

	writeJSON(w, http.StatusOK, SettingResponse{Key: key, Value: req.Value})
}

// writeQueueError maps queue errors to status codes. Persistence failures are
// logged and reported without their details.
func (h *REST) writeQueueError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, queuectl.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, queuectl.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("request failed", slog.String("op", op), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to %s", op))
	}
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
		return 0, false
	}

	return limit, true
}

// nonNil keeps empty results encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
