// Package cache pushes card-action records onto the Redis list the historian
// drains.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list card actions are queued on.
const DefaultQueueName = "songdecks_actions"

// Connect returns a client for addr after a successful ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Pusher is the slice of the Redis client the publisher needs.
type Pusher interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
}

// ActionPublisher queues every published card action as JSON.
type ActionPublisher struct {
	rdb   Pusher
	queue string
}

func NewActionPublisher(rdb Pusher, queue string) *ActionPublisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &ActionPublisher{rdb: rdb, queue: queue}
}

// EncodeAction is the wire form of a queued action.
func EncodeAction(a models.CardAction) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal card action: %w", err)
	}
	return data, nil
}

// DecodeAction parses a queued action.
func DecodeAction(data []byte) (models.CardAction, error) {
	var a models.CardAction
	if err := json.Unmarshal(data, &a); err != nil {
		return models.CardAction{}, fmt.Errorf("invalid action record: %w", err)
	}
	if a.GameID == 0 {
		return models.CardAction{}, fmt.Errorf("invalid action record: missing game_id")
	}
	return a, nil
}

func (p *ActionPublisher) PublishCardAction(ctx context.Context, a models.CardAction) error {
	data, err := EncodeAction(a)
	if err != nil {
		return err
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}
