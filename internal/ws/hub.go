// Package ws streams flow execution errors to connected operator consoles
// over WebSocket.
package ws

import (
	"encoding/json"
	"log/slog"
	"time"
)

// Event represents a WebSocket event sent to operator clients.
type Event struct {
	Type string      `json:"type"` // "pass_error"
	Data interface{} `json:"data"`
}

// PassError is the payload of a pass_error event.
type PassError struct {
	BotID   int64  `json:"bot_id"`
	ChatID  string `json:"chat_id"`
	BlockID int64  `json:"block_id"`
	Error   string `json:"error"`
	Time    string `json:"time"`
}

// Hub maintains the set of active WebSocket clients and broadcasts events.
// The clients map is touched only by Run's loop, so it needs no locking.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	log        *slog.Logger
}

// NewHub creates a new Hub instance.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// Run starts the hub's event loop. Should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// ReportError broadcasts a pass failure to all connected operator clients.
// It backs the engine's error reporter and must never block a pass; the
// broadcast channel is buffered and drops are acceptable here.
func (h *Hub) ReportError(botID int64, chatID string, blockID int64, err error) {
	event := &Event{
		Type: "pass_error",
		Data: PassError{
			BotID:   botID,
			ChatID:  chatID,
			BlockID: blockID,
			Error:   err.Error(),
			Time:    time.Now().UTC().Format(time.RFC3339),
		},
	}

	select {
	case h.broadcast <- event:
	default:
		if h.log != nil {
			h.log.Warn("error feed full, dropping event",
				slog.Int64("bot_id", botID),
				slog.String("chat_id", chatID),
			)
		}
	}
}
