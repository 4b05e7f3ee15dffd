package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

const (
	windowSeconds = 60
	keyPrefix     = "ratelimit:client:"
)

// fixedWindowScript atomically increments the per-client counter and, only
// on the first request of a window, sets its 60 s expiry — this is what
// makes the window "fixed" rather than resetting on every hit.
var fixedWindowScript = redis.NewScript(`
	local count = redis.call("INCR", KEYS[1])
	if count == 1 then
		redis.call("EXPIRE", KEYS[1], ARGV[1])
	end
	local ttl = redis.call("TTL", KEYS[1])
	return {count, ttl}
`)

// Result is the outcome of a Check call [spec §4.2].
type Result struct {
	Allowed      bool
	Limit        int
	Remaining    int
	ResetEpochMS int64
	Error        string
}

// Limiter implements the RateLimiter component.
type Limiter struct {
	redis               *Client
	clients             domain.ApiClientRepository
	defaultRatePerMin   int
}

func NewLimiter(redisClient *Client, clients domain.ApiClientRepository, defaultRatePerMin int) *Limiter {
	return &Limiter{redis: redisClient, clients: clients, defaultRatePerMin: defaultRatePerMin}
}

// Check resolves the client owning apiKeyHash and applies the fixed
// 60-second window counter for that client.
func (l *Limiter) Check(ctx context.Context, apiKeyHash string) (*Result, error) {
	client, err := l.clients.GetByAPIKeyHash(ctx, apiKeyHash)
	if err != nil {
		if err == domain.ErrNotFound {
			return &Result{Allowed: false, Error: "INVALID_API_KEY"}, nil
		}
		return nil, fmt.Errorf("failed to resolve api client: %w", err)
	}

	if !client.Active {
		return &Result{Allowed: false, Error: "CLIENT_INACTIVE"}, nil
	}

	limit := client.RateLimit
	if limit <= 0 {
		limit = l.defaultRatePerMin
	}

	key := keyPrefix + client.ID.String()
	res, err := fixedWindowScript.Run(ctx, l.redis.client, []string{key}, windowSeconds).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate rate limit window: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return nil, fmt.Errorf("unexpected rate limit script result: %v", res)
	}
	count := values[0].(int64)
	ttl := values[1].(int64)
	if ttl < 0 {
		ttl = windowSeconds
	}
	resetEpochMS := time.Now().Add(time.Duration(ttl) * time.Second).UnixMilli()

	if count > int64(limit) {
		return &Result{
			Allowed:      false,
			Limit:        limit,
			Remaining:    0,
			ResetEpochMS: resetEpochMS,
			Error:        "RATE_LIMIT_EXCEEDED",
		}, nil
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:      true,
		Limit:        limit,
		Remaining:    remaining,
		ResetEpochMS: resetEpochMS,
	}, nil
}
