package chatsync

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"

	"hubly/helpdesk-service/internal/models"
)

type cacheState struct {
	LastTicket string                      `json:"lastTicket"`
	Messages   map[string][]models.Message `json:"messages"`
	Drafts     map[string]string           `json:"drafts"`
}

// Cache is a convenience copy of client state kept in a JSON file. Everything
// in it can be thrown away and re-read from the server.
type Cache struct {
	path  string
	mu    sync.Mutex
	state cacheState
}

// OpenCache loads path if it exists. An unreadable file starts an empty cache.
func OpenCache(path string) (*Cache, error) {
	c := &Cache{path: path, state: cacheState{
		Messages: map[string][]models.Message{},
		Drafts:   map[string]string{},
	}}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &c.state); err != nil {
		log.Printf("[SYNC] Discarding corrupt cache %s: %v", path, err)
		c.state = cacheState{}
	}
	if c.state.Messages == nil {
		c.state.Messages = map[string][]models.Message{}
	}
	if c.state.Drafts == nil {
		c.state.Drafts = map[string]string{}
	}
	return c, nil
}

func (c *Cache) LastTicket() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.LastTicket
}

func (c *Cache) SetLastTicket(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.LastTicket = id
	return c.save()
}

func (c *Cache) Messages(ticketID string) []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Message(nil), c.state.Messages[ticketID]...)
}

func (c *Cache) SetMessages(ticketID string, messages []models.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Messages[ticketID] = append([]models.Message(nil), messages...)
	return c.save()
}

func (c *Cache) Draft(ticketID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Drafts[ticketID]
}

// SetDraft stores an unsent message; an empty text removes it.
func (c *Cache) SetDraft(ticketID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if text == "" {
		delete(c.state.Drafts, ticketID)
	} else {
		c.state.Drafts[ticketID] = text
	}
	return c.save()
}

// Forget drops everything held for a ticket.
func (c *Cache) Forget(ticketID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.state.Messages, ticketID)
	delete(c.state.Drafts, ticketID)
	if c.state.LastTicket == ticketID {
		c.state.LastTicket = ""
	}
	return c.save()
}

// save writes a temp file and renames it over the cache.
func (c *Cache) save() error {
	data, err := json.Marshal(c.state)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
