package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const healthTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// PingHandler - liveness probe of the process itself.
func PingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// HealthHandler - readiness probe. Answers 503 while the game store cannot be reached.
func HealthHandler(logger *slog.Logger, storage pinger) http.HandlerFunc {
	log := logger.With("method", "HealthHandler")

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := storage.Ping(ctx).Err(); err != nil {
			log.Warn("game store is unavailable", "error", err)
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
