package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisPublisher struct {
	rdb     redis.UniversalClient
	timeout time.Duration
}

func NewRedisPublisher(rdb redis.UniversalClient, timeout time.Duration) *RedisPublisher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedisPublisher{rdb: rdb, timeout: timeout}
}

func Channel(groupID string) string {
	return fmt.Sprintf("group:%s", groupID)
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if event.GroupID == "" {
		return fmt.Errorf("invalid event: group id is required")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.rdb.Publish(ctx, Channel(event.GroupID), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
