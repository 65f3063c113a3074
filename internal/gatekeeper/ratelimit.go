package gatekeeper

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBucket caps analyzer calls per minute across processes. It sits behind
// the per-cycle quota as a global backstop: verdicts stay deterministic, the
// bucket only throttles the outbound call itself.
type TokenBucket struct {
	client       *redis.Client
	key          string
	maxTokens    int
	refillPeriod time.Duration
}

// NewTokenBucket creates a bucket refilled to maxTokens every minute.
func NewTokenBucket(client *redis.Client, maxTokens int) *TokenBucket {
	return &TokenBucket{
		client:       client,
		key:          "gatekeeper:ratelimit:tokens",
		maxTokens:    maxTokens,
		refillPeriod: time.Minute,
	}
}

// Allow consumes a token, returning false when the bucket is empty.
func (tb *TokenBucket) Allow(ctx context.Context) (bool, error) {
	if err := tb.initialize(ctx); err != nil {
		return false, err
	}

	tokens, err := tb.client.Decr(ctx, tb.key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to decrement tokens: %w", err)
	}

	if tokens < 0 {
		tb.client.Incr(ctx, tb.key)
		return false, nil
	}

	return true, nil
}

func (tb *TokenBucket) initialize(ctx context.Context) error {
	exists, err := tb.client.Exists(ctx, tb.key).Result()
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if exists == 0 {
		if err := tb.client.Set(ctx, tb.key, tb.maxTokens, tb.refillPeriod).Err(); err != nil {
			return fmt.Errorf("failed to initialize bucket: %w", err)
		}
	}

	return nil
}

// Tokens returns the current token count, for monitoring.
func (tb *TokenBucket) Tokens(ctx context.Context) (int, error) {
	tokens, err := tb.client.Get(ctx, tb.key).Int()
	if err != nil {
		if err == redis.Nil {
			return tb.maxTokens, nil
		}
		return 0, fmt.Errorf("failed to get tokens: %w", err)
	}
	return tokens, nil
}
