package live

import (
	"context"
	"encoding/json"
	"log"

	"hubly/helpdesk-service/internal/models"
)

// Hub fans ticket events out to the connected clients whose filter accepts
// them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan models.TicketEvent
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.TicketEvent),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled, then drops every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Printf("[LIVE] Client %s connected (%s). Total: %d", client.ID, client.kind, len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("[LIVE] Client %s disconnected. Total: %d", client.ID, len(h.clients))
			}
		case event := <-h.broadcast:
			h.deliver(event)
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			log.Println("[LIVE] Hub stopped")
			return
		}
	}
}

func (h *Hub) deliver(event models.TicketEvent) {
	var data []byte
	for client := range h.clients {
		if !client.accept(event) {
			continue
		}
		if data == nil {
			var err error
			if data, err = json.Marshal(event); err != nil {
				log.Printf("[LIVE] Failed to marshal %s event: %v", event.Type, err)
				return
			}
		}
		select {
		case client.send <- data:
		default:
			// slow consumer; it will catch up by polling
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// Publish hands event to the hub. It returns at once after the hub stopped.
func (h *Hub) Publish(event models.TicketEvent) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
