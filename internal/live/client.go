package live

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"hubly/helpdesk-service/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var newline = []byte{'\n'}

// Filter decides whether a client may learn about an event.
type Filter func(models.TicketEvent) bool

// Client is one websocket subscriber. The channel is push-only: anything the
// peer sends is read and dropped.
type Client struct {
	ID     uuid.UUID
	kind   string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	filter Filter
}

func NewClient(hub *Hub, conn *websocket.Conn, kind string, filter Filter) *Client {
	return &Client{
		ID:     uuid.New(),
		kind:   kind,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		filter: filter,
	}
}

func (c *Client) accept(event models.TicketEvent) bool {
	return c.filter == nil || c.filter(event)
}

// ReadPump keeps the read deadline moving with pongs and notices when the
// peer goes away.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[LIVE] Unexpected close for %s: %v", c.ID, err)
			}
			return
		}
	}
}

// WritePump drains send into the socket and pings on an interval.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
