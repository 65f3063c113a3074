// Package publisher hands forwarded candidates to downstream consumers over a
// Redis stream. Alerting and execution live outside the core.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vigorish/oddscore/pkg/models"
)

const forwardedStream = "intel.candidates.forwarded"

// StreamPublisher publishes forwarded candidates to Redis Streams.
type StreamPublisher struct {
	redis *redis.Client
}

// NewStreamPublisher creates a publisher.
func NewStreamPublisher(redisClient *redis.Client) *StreamPublisher {
	return &StreamPublisher{redis: redisClient}
}

// forwardedMessage pairs a candidate with its verdict on the wire.
type forwardedMessage struct {
	Candidate models.Candidate         `json:"candidate"`
	Verdict   models.GatekeeperVerdict `json:"verdict"`
}

// PublishForwarded emits one forwarded candidate with its verdict.
func (p *StreamPublisher) PublishForwarded(ctx context.Context, c models.Candidate, v models.GatekeeperVerdict) error {
	data, err := json.Marshal(forwardedMessage{Candidate: c, Verdict: v})
	if err != nil {
		return fmt.Errorf("error marshaling forwarded candidate: %w", err)
	}

	_, err = p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: forwardedStream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("error publishing to stream %s: %w", forwardedStream, err)
	}

	return nil
}
