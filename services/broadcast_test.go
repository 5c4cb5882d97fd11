package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestRedisPublisher(t *testing.T) {
	_, client := newTestRedis(t)

	sub := client.Subscribe(context.Background(), EventChannel("123456"))
	defer sub.Close()
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	pub := NewRedisPublisher(client)
	pub.Publish("123456", EventPlayerJoined, map[string]interface{}{"nickname": "Alice"})

	select {
	case msg := <-sub.Channel():
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if ev.Type != EventPlayerJoined {
			t.Fatalf("expected %s, got %s", EventPlayerJoined, ev.Type)
		}
		payload := ev.Payload.(map[string]interface{})
		if payload["nickname"] != "Alice" {
			t.Fatalf("unexpected payload: %v", ev.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
	}
}

func TestFanoutPublisherOrder(t *testing.T) {
	first := newChanPublisher()
	second := newChanPublisher()
	fanout := FanoutPublisher{first, second}

	fanout.Publish("123456", EventGameStarted, nil)
	fanout.Publish("123456", EventQuestionOpened, nil)

	for _, pub := range []*chanPublisher{first, second} {
		pub.expect(t, EventGameStarted)
		pub.expect(t, EventQuestionOpened)
	}
}
