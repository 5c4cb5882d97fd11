package services

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub fans session events out to connected websocket clients. It
// implements Publisher for in-process delivery; cross-instance delivery
// goes through the Redis publisher alongside it.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	registry   *Registry
}

type Client struct {
	hub           *Hub
	id            string
	socket        *websocket.Conn
	send          chan []byte
	pin           string
	participantID string // empty for the host connection
	isHost        bool
	hostIdentity  Identity
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// BindRegistry wires the registry in after construction; the hub is a
// publisher for the registry's sessions, so the two reference each other.
func (h *Hub) BindRegistry(registry *Registry) {
	h.registry = registry
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("Client %s connected to session %s", client.id, client.pin)
			if client.participantID != "" {
				if session, err := h.registry.LookupByPIN(client.pin); err == nil {
					session.MarkReconnected(client.participantID)
				}
			}
			h.sendStateSync(client)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			log.Printf("Client %s disconnected from session %s", client.id, client.pin)

			session, err := h.registry.LookupByPIN(client.pin)
			if err != nil {
				continue
			}
			if client.participantID != "" {
				// Disconnection never removes the participant or resets
				// their score; they reconcile on reconnect.
				session.MarkDisconnected(client.participantID)
				continue
			}
			// The host walking away ends the run for everyone.
			if client.isHost {
				if err := session.Command(context.Background(), client.hostIdentity, CommandFinish); err != nil {
					if err != ErrInvalidState {
						log.Printf("Session %s: finish after host disconnect failed: %v", client.pin, err)
					}
				}
			}
		}
	}
}

// Publish implements Publisher for in-process websocket clients.
func (h *Hub) Publish(pin string, eventType string, payload interface{}) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		log.Printf("Error marshaling %s event for session %s: %v", eventType, pin, err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for client := range h.clients {
		if !strings.EqualFold(client.pin, pin) {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Slow consumer; it will reconcile via state sync on
			// reconnect.
			log.Printf("Client %s send buffer full, dropping %s", client.id, eventType)
		}
	}
}

// sendStateSync pushes the authoritative session status to one client so
// a reconnecting participant catches up on anything it missed.
func (h *Hub) sendStateSync(client *Client) {
	session, err := h.registry.LookupByPIN(client.pin)
	if err != nil {
		return
	}
	data, err := json.Marshal(Event{Type: "state-sync", Payload: session.Status()})
	if err != nil {
		log.Printf("Error marshaling state sync for session %s: %v", client.pin, err)
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// RegisterClient attaches a websocket connection to a session channel.
// participantID is empty for the host connection.
func (h *Hub) RegisterClient(conn *websocket.Conn, pin, participantID string, host *Identity) *Client {
	client := &Client{
		hub:           h,
		id:            uuid.NewString(),
		socket:        conn,
		send:          make(chan []byte, 256),
		pin:           strings.ToLower(pin),
		participantID: participantID,
	}
	if host != nil {
		client.isHost = true
		client.hostIdentity = *host
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.socket.Close()
	}()

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var msg Event
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	defer c.socket.Close()

	for message := range c.send {
		if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.socket.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *Client) handleMessage(msg Event) {
	switch msg.Type {
	case "ping":
		data, _ := json.Marshal(Event{Type: "pong", Payload: "pong"})
		c.send <- data

	case "request_state":
		c.hub.sendStateSync(c)

	default:
		log.Printf("Unknown message type %q from client %s in session %s", msg.Type, c.id, c.pin)
	}
}
