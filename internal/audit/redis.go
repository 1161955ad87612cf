package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// auditStreamKey is the Redis stream entries are appended to.
const auditStreamKey = "ocpihub:audit:stream"

// RedisSink appends entries to a Redis stream. Appends run through a circuit
// breaker so a dead Redis fails fast instead of stalling every audited
// operation on connection timeouts.
type RedisSink struct {
	client  redis.UniversalClient
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewRedisSink creates a Redis stream sink.
func NewRedisSink(client redis.UniversalClient, logger *zap.Logger) *RedisSink {
	if client == nil {
		panic("Redis client cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "audit-redis",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("audit sink circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &RedisSink{client: client, breaker: breaker, logger: logger}
}

// Append adds the entry to the audit stream via XADD.
func (s *RedisSink) Append(ctx context.Context, entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return s.client.XAdd(ctx, &redis.XAddArgs{
			Stream: auditStreamKey,
			Values: map[string]interface{}{"entry": string(raw)},
		}).Result()
	})
	if err != nil {
		return fmt.Errorf("failed to append audit entry to stream: %w", err)
	}

	return nil
}

// Close closes the Redis client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
