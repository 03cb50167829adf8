package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"hubly/helpdesk-service/internal/models"
)

func receive(t *testing.T, c *Client) (models.TicketEvent, bool) {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			return models.TicketEvent{}, false
		}
		var e models.TicketEvent
		if err := json.Unmarshal(data, &e); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return e, true
	case <-time.After(100 * time.Millisecond):
		return models.TicketEvent{}, false
	}
}

func TestHub_FiltersEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	admin := &models.Account{ID: primitive.NewObjectID(), Role: models.RoleAdmin, Workspace: "acme", IsActive: true}
	member := &models.Account{ID: primitive.NewObjectID(), Role: models.RoleMember, Workspace: "acme", IsActive: true}
	ticketID := primitive.NewObjectID()

	widget := NewClient(hub, nil, "widget", TicketFilter(ticketID))
	adminClient := NewClient(hub, nil, "admin", StaffFilter(admin))
	memberClient := NewClient(hub, nil, "member", StaffFilter(member))
	for _, c := range []*Client{widget, adminClient, memberClient} {
		hub.Register(c)
	}

	hub.Publish(models.TicketEvent{Type: models.EventMessageAdded, TicketID: ticketID, Workspace: "acme"})

	if e, ok := receive(t, widget); !ok || e.TicketID != ticketID {
		t.Errorf("widget got %+v, %v", e, ok)
	}
	if _, ok := receive(t, adminClient); !ok {
		t.Error("admin missed an event of their workspace")
	}
	if e, ok := receive(t, memberClient); ok {
		t.Errorf("member saw an unassigned ticket: %+v", e)
	}

	hub.Publish(models.TicketEvent{Type: models.EventTicketAssigned, TicketID: primitive.NewObjectID(), Workspace: "acme", AssignedTo: &member.ID})
	if _, ok := receive(t, memberClient); !ok {
		t.Error("member missed the assignment event")
	}
	if e, ok := receive(t, widget); ok {
		t.Errorf("widget saw another ticket: %+v", e)
	}

	hub.Publish(models.TicketEvent{Type: models.EventTicketCreated, TicketID: primitive.NewObjectID(), Workspace: "other"})
	if e, ok := receive(t, adminClient); ok {
		t.Errorf("admin saw another workspace: %+v", e)
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	client := NewClient(hub, nil, "widget", nil)
	hub.Register(client)
	cancel()

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("unexpected message")
		}
	case <-time.After(time.Second):
		t.Fatal("client channel not closed")
	}

	done := make(chan struct{})
	go func() {
		hub.Publish(models.TicketEvent{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after the hub stopped")
	}
}

type stubTickets struct {
	known primitive.ObjectID
}

func (s stubTickets) GetTicket(_ context.Context, id primitive.ObjectID, _ *models.Account) (*models.Ticket, error) {
	if id != s.known {
		return nil, models.NotFound("ticket not found")
	}
	return &models.Ticket{ID: id}, nil
}

func TestHandler_ServeTicket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	known := primitive.NewObjectID()
	h := NewHandler(hub, stubTickets{known: known}, nil, nil, []string{"http://widget.local"})

	r := gin.New()
	r.GET("/live/tickets/:id", h.ServeTicket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	for _, path := range []string{"/live/tickets/nope", "/live/tickets/" + primitive.NewObjectID().Hex()} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, resp.StatusCode)
		}
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live/tickets/" + known.Hex()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://widget.local"}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// give the hub a moment to register the client
	time.Sleep(50 * time.Millisecond)
	hub.Publish(models.TicketEvent{Type: models.EventMessageAdded, TicketID: known, MessageCount: 2})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.TicketEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.TicketID != known || got.MessageCount != 2 {
		t.Errorf("event = %+v", got)
	}

	if _, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://evil.example"}}); err == nil {
		t.Error("foreign origin was accepted")
	}
}
