package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestStateCacheRoundTrip(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewStateCache(client, time.Hour)

	status := SessionStatus{
		ID:             "sess-1",
		Pin:            "123456",
		QuizID:         1,
		Status:         "finished",
		QuestionIndex:  -1,
		TotalQuestions: 3,
		PlayerCount:    2,
		Leaderboard: []LeaderboardEntry{
			{ParticipantID: "p1", Nickname: "Alice", Score: 141, Rank: 1},
			{ParticipantID: "p2", Nickname: "Bob", Score: 0, Rank: 2},
		},
	}
	cache.Save(status)

	got, err := cache.Get(context.Background(), "123456")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "finished" || got.PlayerCount != 2 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if len(got.Leaderboard) != 2 || got.Leaderboard[0].Nickname != "Alice" {
		t.Fatalf("leaderboard not preserved: %+v", got.Leaderboard)
	}
}

func TestStateCacheMiss(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewStateCache(client, time.Hour)

	if _, err := cache.Get(context.Background(), "999999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStateCacheExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewStateCache(client, time.Minute)

	cache.Save(SessionStatus{ID: "sess-1", Pin: "123456", Status: "waiting"})

	if ttl := mr.TTL("session:123456"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := cache.Get(context.Background(), "123456"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestStateCacheOverwrite(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewStateCache(client, time.Hour)

	cache.Save(SessionStatus{ID: "sess-1", Pin: "123456", Status: "waiting"})
	cache.Save(SessionStatus{ID: "sess-1", Pin: "123456", Status: "in_progress", QuestionIndex: 0})

	got, err := cache.Get(context.Background(), "123456")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "in_progress" {
		t.Fatalf("expected latest snapshot to win, got %+v", got)
	}
}
