package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/discoverlab/insight-map/internal/session"
	"github.com/redis/go-redis/v9"
)

// HealthChecker handles health check requests
type HealthChecker struct {
	store *session.Store
	redis *redis.Client
}

// NewHealthChecker creates a new health checker. redisClient may be nil when
// rate limiting is disabled.
func NewHealthChecker(store *session.Store, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{store: store, redis: redisClient}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Sessions  int               `json:"sessions"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Sessions:  h.store.Len(),
	}

	if mode == "extended" {
		checks := make(map[string]string)

		if h.redis != nil {
			if err := h.checkRedis(r.Context()); err != nil {
				response.Status = "unhealthy"
				checks["redis"] = "unhealthy: " + err.Error()
			} else {
				checks["redis"] = "healthy"
			}
		} else {
			checks["redis"] = "disabled"
		}

		response.Checks = checks

		statusCode := http.StatusOK
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(response)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// checkRedis verifies the rate-limit store connection
func (h *HealthChecker) checkRedis(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return h.redis.Ping(ctx).Err()
}
