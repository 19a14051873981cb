package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/processor"
)

const (
	// clientBuffer is how many events may queue for a slow client before
	// new ones are dropped for it.
	clientBuffer = 16
	writeTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventSource publishes processed events.
type EventSource interface {
	Subscribe(fn func(processor.Event)) (unsubscribe func())
}

// EventsHandler streams processed events to WebSocket clients as JSON.
type EventsHandler struct {
	clients     map[*websocket.Conn]chan []byte
	mu          sync.RWMutex
	unsubscribe func()
}

// NewEventsHandler creates a handler fed by src.
func NewEventsHandler(src EventSource) *EventsHandler {
	h := &EventsHandler{
		clients: make(map[*websocket.Conn]chan []byte),
	}
	h.unsubscribe = src.Subscribe(h.broadcast)
	return h
}

// Close detaches the handler from its source.
func (h *EventsHandler) Close() {
	h.unsubscribe()
}

// Clients returns the number of connected clients.
func (h *EventsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan []byte, clientBuffer)

	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Reads only detect the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// broadcast runs on the processing goroutine, so it never blocks on a
// client.
func (h *EventsHandler) broadcast(event processor.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to encode event: %v", err)
		return
	}

	for _, send := range h.clients {
		select {
		case send <- msg:
		default:
		}
	}
}
