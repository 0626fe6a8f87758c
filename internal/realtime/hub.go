// Package realtime streams one run's ingest progress and reveal steps
// to connected SSE clients: register/unregister over channels,
// broadcast is a non-blocking per-client send so one slow watcher can
// never stall another.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one item pushed down an SSE stream for a run.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Client is a single connected watcher of one run's event stream.
type Client struct {
	ID      string
	Channel chan Event
	Context context.Context
	Cancel  context.CancelFunc
	Writer  http.ResponseWriter
}

// Hub fans a single run's events out to every client currently
// watching it. One Hub is created per run and discarded with it.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	mu         sync.RWMutex
}

// NewHub returns a Hub with no clients yet registered.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 64),
	}
}

// Run services register/unregister/broadcast until ctx is cancelled,
// at which point every client is disconnected.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.ID]; ok {
				delete(h.clients, c.ID)
				close(c.Channel)
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				select {
				case c.Channel <- ev:
				default:
					log.Printf("realtime: client %s backlog full, dropping event %s", c.ID, ev.Type)
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.Channel)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast enqueues an event for every connected client. Non-blocking:
// a full hub-level queue drops the event rather than stall the caller.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	ev := Event{ID: uuid.NewString(), Type: eventType, Data: data, Timestamp: time.Now()}
	select {
	case h.broadcast <- ev:
	default:
		log.Printf("realtime: broadcast queue full, dropping event %s", eventType)
	}
}

// ClientCount reports how many watchers are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client and returns a function to unregister it.
func (h *Hub) Register(c *Client) func() {
	h.register <- c
	return func() { h.unregister <- c }
}

// WriteEvent encodes ev in SSE wire format and flushes it.
func (c *Client) WriteEvent(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data); err != nil {
		return err
	}
	if flusher, ok := c.Writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// Listen writes a "connected" event, then forwards Channel events to
// the SSE response until Context is cancelled or a write fails.
func (c *Client) Listen() {
	if err := c.WriteEvent(Event{ID: uuid.NewString(), Type: "connected", Data: map[string]string{"client_id": c.ID}, Timestamp: time.Now()}); err != nil {
		return
	}
	for {
		select {
		case ev, ok := <-c.Channel:
			if !ok {
				return
			}
			if err := c.WriteEvent(ev); err != nil {
				log.Printf("realtime: client %s write failed: %v", c.ID, err)
				return
			}
		case <-c.Context.Done():
			return
		}
	}
}
