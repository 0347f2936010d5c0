package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"messaging-service/internal/models"
)

// ttl bounds how long a conversation's message list may serve from cache
// even without an invalidating write.
const ttl = 5 * time.Minute

// ErrMiss is returned when the conversation has no cached list.
var ErrMiss = errors.New("cache miss")

// MessageCache caches per-conversation message lists. Any mutation to a
// conversation's messages invalidates the whole list; the read path
// repopulates it.
type MessageCache interface {
	Get(ctx context.Context, conversationID int) ([]models.Message, error)
	Set(ctx context.Context, conversationID int, msgs []models.Message) error
	Invalidate(ctx context.Context, conversationID int) error
}

// Redis provides caching in Redis.
type Redis struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings it to ensure the
// connection works.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{cli: cli}, nil
}

func key(conversationID int) string {
	return fmt.Sprintf("conversation:%d:messages", conversationID)
}

// Get returns the cached message list or ErrMiss.
func (r *Redis) Get(ctx context.Context, conversationID int) ([]models.Message, error) {
	raw, err := r.cli.Get(ctx, key(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var msgs []models.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("decode cached messages: %w", err)
	}
	return msgs, nil
}

// Set stores the message list for a conversation.
func (r *Redis) Set(ctx context.Context, conversationID int, msgs []models.Message) error {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	if err := r.cli.Set(ctx, key(conversationID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate drops the cached list after a send, edit or delete.
func (r *Redis) Invalidate(ctx context.Context, conversationID int) error {
	if err := r.cli.Del(ctx, key(conversationID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Noop is used when Redis is not configured; every read is a miss.
type Noop struct{}

func (Noop) Get(ctx context.Context, conversationID int) ([]models.Message, error) {
	return nil, ErrMiss
}

func (Noop) Set(ctx context.Context, conversationID int, msgs []models.Message) error {
	return nil
}

func (Noop) Invalidate(ctx context.Context, conversationID int) error {
	return nil
}
