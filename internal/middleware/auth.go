package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/insider-one/notify-dispatch/internal/domain"
	"github.com/insider-one/notify-dispatch/internal/ratelimit"
)

const apiKeyHeader = "X-API-Key"

type clientContextKey string

const clientKey clientContextKey = "api_client"

// Auth authenticates the X-API-Key header against ApiClientRepository and
// applies the per-client rate limiter, attaching the resolved ApiClient to
// the request context [spec §7].
func Auth(clients domain.ApiClientRepository, limiter *ratelimit.Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get(apiKeyHeader)
			if apiKey == "" {
				writeAuthError(w, http.StatusUnauthorized, "MISSING_API_KEY", "X-API-Key header is required")
				return
			}

			hash := hashAPIKey(apiKey)

			result, err := limiter.Check(r.Context(), hash)
			if err != nil {
				logger.Error("rate limit check failed", slog.String("error", err.Error()))
				writeAuthError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to evaluate rate limit")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetEpochMS, 10))

			if !result.Allowed {
				switch result.Error {
				case "INVALID_API_KEY":
					writeAuthError(w, http.StatusUnauthorized, "INVALID_API_KEY", "api key is invalid")
				case "CLIENT_INACTIVE":
					writeAuthError(w, http.StatusForbidden, "CLIENT_INACTIVE", "api client is inactive")
				default:
					w.Header().Set("Retry-After", "60")
					writeAuthError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "rate limit exceeded")
				}
				return
			}

			client, err := clients.GetByAPIKeyHash(r.Context(), hash)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					writeAuthError(w, http.StatusUnauthorized, "INVALID_API_KEY", "api key is invalid")
					return
				}
				logger.Error("failed to resolve api client", slog.String("error", err.Error()))
				writeAuthError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to resolve api client")
				return
			}

			ctx := context.WithValue(r.Context(), clientKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientFromContext retrieves the ApiClient attached by Auth.
func ClientFromContext(ctx context.Context) (*domain.ApiClient, bool) {
	client, ok := ctx.Value(clientKey).(*domain.ApiClient)
	return client, ok
}

func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// writeAuthError mirrors handler.JSONError's envelope without importing
// the handler package, which imports this one.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}
