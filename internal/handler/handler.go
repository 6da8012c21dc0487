// Package handler contains chi HTTP handlers for push-style message
// delivery and liveness probes. Brokers that push over HTTP retry on any
// non-2xx status, which maps one-to-one onto the dispatcher's outcomes.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/VictoriiaShtyreva/event-registration-consumer/internal/consumer"
	"github.com/VictoriiaShtyreva/event-registration-consumer/internal/model"
)

// Dispatcher processes one raw message payload to a terminal outcome.
// Declared here so this package depends only on what it consumes.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload []byte) consumer.Outcome
}

// DeliveryHandler accepts one pushed message per request and answers with
// the acknowledgment decision.
type DeliveryHandler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewDeliveryHandler constructs a DeliveryHandler. A nil logger falls
// back to slog.Default.
func NewDeliveryHandler(dispatcher Dispatcher, logger *slog.Logger) *DeliveryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeliveryHandler{dispatcher: dispatcher, logger: logger}
}

// NewRouter builds the HTTP surface: the push-delivery endpoint plus a
// health probe.
func NewRouter(h *DeliveryHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Get("/health", HealthCheck)
	r.Post("/deliveries", h.Deliver)

	return r
}

// Deliver handles POST /deliveries.
// 204 acknowledges the message; 503 asks the pushing broker to retry or
// dead-letter it per its own policy. An unreadable or oversized body is
// acknowledged after a log record: redelivering it would poison the
// endpoint the same way a malformed payload would poison the queue.
func (h *DeliveryHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		h.logger.Warn("discarding unreadable delivery body", "error", err)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch h.dispatcher.Dispatch(r.Context(), payload) {
	case consumer.Completed:
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusServiceUnavailable, "message deferred")
	}
}

// HealthCheck handles GET /health.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}
