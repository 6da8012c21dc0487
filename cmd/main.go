// cmd/main.go is the application entry point.
// It wires together all layers and starts the queue consumer and the
// HTTP delivery/health server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VictoriiaShtyreva/event-registration-consumer/internal/consumer"
	"github.com/VictoriiaShtyreva/event-registration-consumer/internal/database"
	"github.com/VictoriiaShtyreva/event-registration-consumer/internal/handler"
	"github.com/VictoriiaShtyreva/event-registration-consumer/internal/ledger"
	"github.com/VictoriiaShtyreva/event-registration-consumer/internal/notify"
	"github.com/VictoriiaShtyreva/event-registration-consumer/internal/queue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, logger)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Error("schema setup failed", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to postgres")

	// ── 2. Wire up layers ────────────────────────────────────────────────
	registrations := ledger.New(pool)

	notifier := notify.New(
		notify.NewHTTPDirectory(getEnv("DIRECTORY_URL", "http://localhost:8081"), nil),
		notify.NewHTTPMailer(getEnv("MAILER_URL", "http://localhost:8082"), nil),
	)

	dispatcher := consumer.New(registrations, notifier, logger)

	// ── 3. Start the AMQP consumer ────────────────────────────────────────
	amqpConsumer := queue.NewConsumer(queue.ConfigFromEnv(), dispatcher, logger)
	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- amqpConsumer.Run(ctx)
	}()

	// ── 4. Start the HTTP server (push deliveries + health) ──────────────
	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      handler.NewRouter(handler.NewDeliveryHandler(dispatcher, logger)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	// ── 5. Block until shutdown ──────────────────────────────────────────
	select {
	case <-ctx.Done():
	case err := <-consumerErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("queue consumer stopped", "error", err)
		}
	}

	logger.Info("shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
