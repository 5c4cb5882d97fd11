package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"orchidaquiz/models"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type hubEnv struct {
	hub      *Hub
	registry *Registry
	server   *httptest.Server
}

func newHubEnv(t *testing.T) *hubEnv {
	t.Helper()

	hub := NewHub()
	loader := &staticLoader{quizzes: map[uint]*models.Quiz{1: sampleQuiz()}}
	registry := NewRegistry(newMemStore(), loader, RegistryConfig{Publisher: hub})
	hub.BindRegistry(registry)
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		pin := r.URL.Query().Get("pin")
		participantID := r.URL.Query().Get("participant_id")
		var host *Identity
		if r.URL.Query().Get("host") == "1" {
			host = &Identity{UserID: 1, Role: "host"}
		}
		hub.RegisterClient(conn, pin, participantID, host)
	}))
	t.Cleanup(server.Close)

	return &hubEnv{hub: hub, registry: registry, server: server}
}

func (e *hubEnv) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return ev
}

func TestHubStateSyncOnConnect(t *testing.T) {
	env := newHubEnv(t)
	session, err := env.registry.Create(context.Background(), 1, 1, SessionOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := env.dial(t, "pin="+session.PIN())

	ev := readEvent(t, conn)
	if ev.Type != "state-sync" {
		t.Fatalf("expected state-sync first, got %s", ev.Type)
	}
	status := ev.Payload.(map[string]interface{})
	if status["status"] != models.StatusWaiting || status["pin"] != session.PIN() {
		t.Fatalf("unexpected sync payload: %v", status)
	}
}

func TestHubDeliversSessionEvents(t *testing.T) {
	env := newHubEnv(t)
	session, err := env.registry.Create(context.Background(), 1, 1, SessionOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := env.dial(t, "pin="+session.PIN())
	readEvent(t, conn) // state-sync

	if _, err := session.Join(context.Background(), "Alice", nil); err != nil {
		t.Fatalf("join: %v", err)
	}

	ev := readEvent(t, conn)
	if ev.Type != EventPlayerJoined {
		t.Fatalf("expected %s, got %s", EventPlayerJoined, ev.Type)
	}
	payload := ev.Payload.(map[string]interface{})
	if payload["nickname"] != "Alice" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestHubPingPong(t *testing.T) {
	env := newHubEnv(t)
	session, err := env.registry.Create(context.Background(), 1, 1, SessionOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := env.dial(t, "pin="+session.PIN())
	readEvent(t, conn) // state-sync

	if err := conn.WriteJSON(Event{Type: "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != "pong" {
		t.Fatalf("expected pong, got %s", ev.Type)
	}
}

func TestHubRequestState(t *testing.T) {
	env := newHubEnv(t)
	session, err := env.registry.Create(context.Background(), 1, 1, SessionOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := env.dial(t, "pin="+session.PIN())
	readEvent(t, conn) // state-sync

	if err := conn.WriteJSON(Event{Type: "request_state"}); err != nil {
		t.Fatalf("write request_state: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != "state-sync" {
		t.Fatalf("expected state-sync, got %s", ev.Type)
	}
}

func TestHubMarksParticipantDisconnected(t *testing.T) {
	env := newHubEnv(t)
	session, err := env.registry.Create(context.Background(), 1, 1, SessionOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	participant, err := session.Join(context.Background(), "Alice", nil)
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	conn := env.dial(t, "pin="+session.PIN()+"&participant_id="+participant.ID)
	readEvent(t, conn) // state-sync

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		roster := session.Participants()
		if len(roster) == 1 && !roster[0].Connected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("participant never marked disconnected")
}

func TestHubFinishesSessionOnHostDisconnect(t *testing.T) {
	env := newHubEnv(t)
	session, err := env.registry.Create(context.Background(), 1, 1, SessionOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	host := Identity{UserID: 1, Role: "host"}
	if err := session.Command(context.Background(), host, CommandStart); err != nil {
		t.Fatalf("start: %v", err)
	}

	conn := env.dial(t, "pin="+session.PIN()+"&host=1")
	readEvent(t, conn) // state-sync

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if session.Status().Status == models.StatusFinished {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session never finished after host disconnect")
}
