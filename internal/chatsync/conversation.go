package chatsync

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"hubly/helpdesk-service/internal/models"
)

var ErrAccessLost = errors.New("access to this ticket was lost")

type TicketAPI interface {
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	GetMessages(ctx context.Context, id string) ([]models.Message, error)
	SendMessage(ctx context.Context, id string, input models.MessageInput) (*models.Ticket, error)
}

type pendingMessage struct {
	localID string
	message models.Message
}

// Conversation mirrors one ticket's message log on the client. The server
// copy always wins; local state is replaced, never merged.
type Conversation struct {
	api      TicketAPI
	ticketID string
	viewer   *models.Account
	cache    *Cache

	mu       sync.Mutex
	messages []models.Message
	pending  []pendingMessage
	synced   bool
	closed   bool

	// OnChange receives the full list to render after every change.
	OnChange func([]models.Message)
	// OnAccessLost fires once when a staff viewer can no longer see the ticket.
	OnAccessLost func()
}

// NewConversation opens ticketID for viewer, or for the visitor when viewer is
// nil. cache may be nil; cached messages are shown until the first poll.
func NewConversation(api TicketAPI, ticketID string, viewer *models.Account, cache *Cache) *Conversation {
	c := &Conversation{api: api, ticketID: ticketID, viewer: viewer, cache: cache}
	if cache != nil {
		c.messages = cache.Messages(ticketID)
		if err := cache.SetLastTicket(ticketID); err != nil {
			log.Printf("[SYNC] Cache write failed: %v", err)
		}
	}
	return c
}

func (c *Conversation) sender() models.Sender {
	if c.viewer == nil {
		return models.SenderUser
	}
	return models.Sender(c.viewer.Role)
}

// Messages returns the confirmed log followed by unconfirmed sends.
func (c *Conversation) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Conversation) snapshot() []models.Message {
	out := make([]models.Message, 0, len(c.messages)+len(c.pending))
	out = append(out, c.messages...)
	for _, p := range c.pending {
		out = append(out, p.message)
	}
	return out
}

func (c *Conversation) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func messageKey(m models.Message) string {
	if !m.ID.IsZero() {
		return m.ID.Hex()
	}
	return m.Timestamp.UTC().Format(time.RFC3339Nano)
}

// Poll fetches the log once. Transient failures are logged and swallowed so
// the next tick simply tries again.
func (c *Conversation) Poll(ctx context.Context) error {
	if c.Closed() {
		return ErrAccessLost
	}

	fetched, err := c.api.GetMessages(ctx, c.ticketID)
	if err != nil {
		return c.pollFailed(err)
	}

	if c.viewer != nil {
		ticket, err := c.api.GetTicket(ctx, c.ticketID)
		if err != nil {
			return c.pollFailed(err)
		}
		if !c.viewer.IsAdmin() && !ticket.IsAssignedTo(c.viewer.ID) {
			c.loseAccess()
			return ErrAccessLost
		}
	}

	c.reconcile(fetched)
	return nil
}

func (c *Conversation) pollFailed(err error) error {
	if isStatus(err, http.StatusForbidden) {
		c.loseAccess()
		return ErrAccessLost
	}
	if IsTransient(err) {
		log.Printf("[SYNC] Poll of ticket %s failed, will retry: %v", c.ticketID, err)
		return nil
	}
	return err
}

// reconcile replaces the local log when the server holds any message the
// client has not seen.
func (c *Conversation) reconcile(fetched []models.Message) {
	c.mu.Lock()
	known := make(map[string]struct{}, len(c.messages))
	for _, m := range c.messages {
		known[messageKey(m)] = struct{}{}
	}
	changed := !c.synced
	for _, m := range fetched {
		if _, ok := known[messageKey(m)]; !ok {
			changed = true
			break
		}
	}
	if changed {
		c.messages = append([]models.Message(nil), fetched...)
		c.synced = true
	}
	view := c.snapshot()
	c.mu.Unlock()

	if changed {
		c.persist(fetched)
		c.notify(view)
	}
}

// Send shows text at once and confirms it with the server. On failure the
// optimistic copy is removed again and the error is returned.
func (c *Conversation) Send(ctx context.Context, text string) error {
	if c.Closed() {
		return ErrAccessLost
	}

	p := pendingMessage{
		localID: uuid.NewString(),
		message: models.Message{Sender: c.sender(), Text: text, Timestamp: time.Now()},
	}
	c.mu.Lock()
	c.pending = append(c.pending, p)
	view := c.snapshot()
	c.mu.Unlock()
	c.notify(view)

	ticket, err := c.api.SendMessage(ctx, c.ticketID, models.MessageInput{Sender: p.message.Sender, Message: text})

	c.mu.Lock()
	c.dropPending(p.localID)
	if err == nil {
		c.messages = append([]models.Message(nil), ticket.Messages...)
		c.synced = true
	}
	view = c.snapshot()
	c.mu.Unlock()
	c.notify(view)

	if err != nil {
		if isStatus(err, http.StatusForbidden) {
			c.loseAccess()
		}
		return err
	}
	c.persist(ticket.Messages)
	return nil
}

func (c *Conversation) dropPending(localID string) {
	for i, p := range c.pending {
		if p.localID == localID {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// Run polls every interval until ctx is done or access is lost.
func (c *Conversation) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.Poll(ctx); err != nil {
			if errors.Is(err, ErrAccessLost) {
				return err
			}
			log.Printf("[SYNC] Poll of ticket %s: %v", c.ticketID, err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *Conversation) loseAccess() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.messages = nil
	c.pending = nil
	c.mu.Unlock()

	if c.cache != nil {
		if err := c.cache.Forget(c.ticketID); err != nil {
			log.Printf("[SYNC] Cache write failed: %v", err)
		}
	}
	if c.OnAccessLost != nil {
		c.OnAccessLost()
	}
}

func (c *Conversation) persist(messages []models.Message) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetMessages(c.ticketID, messages); err != nil {
		log.Printf("[SYNC] Cache write failed: %v", err)
	}
}

func (c *Conversation) notify(view []models.Message) {
	if c.OnChange != nil {
		c.OnChange(view)
	}
}
