package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateCache keeps the latest status snapshot of each session in Redis,
// keyed by PIN with a TTL. It is the reconciliation source for clients
// whose live session is gone - most importantly finished sessions, whose
// final leaderboard stays readable until the key expires.
type StateCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStateCache(client *redis.Client, ttl time.Duration) *StateCache {
	return &StateCache{client: client, ttl: ttl}
}

func (c *StateCache) key(pin string) string {
	return "session:" + strings.ToLower(pin)
}

// Save stores the snapshot, best-effort.
func (c *StateCache) Save(status SessionStatus) {
	data, err := json.Marshal(status)
	if err != nil {
		log.Printf("Failed to marshal snapshot for session %s: %v", status.Pin, err)
		return
	}
	if err := c.client.Set(context.Background(), c.key(status.Pin), data, c.ttl).Err(); err != nil {
		log.Printf("Failed to store snapshot for session %s: %v", status.Pin, err)
	}
}

// Get returns the stored snapshot for a PIN, or ErrNotFound.
func (c *StateCache) Get(ctx context.Context, pin string) (*SessionStatus, error) {
	data, err := c.client.Get(ctx, c.key(pin)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot for %s: %w", pin, err)
	}
	var status SessionStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot for %s: %w", pin, err)
	}
	return &status, nil
}
