package chatsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"hubly/helpdesk-service/internal/models"
)

const requestTimeout = 30 * time.Second

// APIError is a non-2xx answer from the helpdesk API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsTransient reports whether trying again later may succeed: network
// failures, timeouts and server errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to the helpdesk HTTP API. An empty token makes anonymous
// widget calls.
type Client struct {
	BaseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) Authenticated() bool {
	return c.token != ""
}

func (c *Client) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := c.do(ctx, http.MethodGet, "/api/tickets/"+id, nil, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (c *Client) GetMessages(ctx context.Context, id string) ([]models.Message, error) {
	var resp struct {
		Data []models.Message `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tickets/"+id+"/messages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) SendMessage(ctx context.Context, id string, input models.MessageInput) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := c.do(ctx, http.MethodPost, "/api/tickets/"+id+"/message", input, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (c *Client) ListMembers(ctx context.Context) ([]models.Account, error) {
	var members []models.Account
	if err := c.do(ctx, http.MethodGet, "/api/users/members", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
