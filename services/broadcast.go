package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// Event kinds published on a session's channel. Payloads for
// question-opened never carry correctness flags; those only appear in
// question-closed and show-results.
const (
	EventPlayerJoined    = "player-joined"
	EventGameStarted     = "game-started"
	EventQuestionOpened  = "question-opened"
	EventQuestionClosed  = "question-closed"
	EventShowResults     = "show-results"
	EventShowLeaderboard = "show-leaderboard"
	EventGameFinished    = "game-finished"
)

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Publisher fans an event out to every current subscriber of a session's
// channel. Delivery is fire-and-forget: it never blocks on subscriber
// acknowledgment, and a subscriber disconnected at publish time must
// reconcile by fetching current session status. Implementations must not
// reorder events published for the same session.
type Publisher interface {
	Publish(pin string, eventType string, payload interface{})
}

// RedisPublisher pushes session events onto a Redis pub/sub channel so
// subscribers on other instances receive them.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// EventChannel is the pub/sub channel name for a session.
func EventChannel(pin string) string {
	return "session:" + pin + ":events"
}

func (p *RedisPublisher) Publish(pin string, eventType string, payload interface{}) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		log.Printf("Error marshaling %s event for session %s: %v", eventType, pin, err)
		return
	}
	if err := p.client.Publish(context.Background(), EventChannel(pin), data).Err(); err != nil {
		log.Printf("Error publishing %s event for session %s: %v", eventType, pin, err)
	}
}

// FanoutPublisher delivers each event to several publishers in order,
// typically the in-process websocket hub plus the Redis channel.
type FanoutPublisher []Publisher

func (f FanoutPublisher) Publish(pin string, eventType string, payload interface{}) {
	for _, p := range f {
		p.Publish(pin, eventType, payload)
	}
}
