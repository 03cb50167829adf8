package live

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"hubly/helpdesk-service/internal/models"
	"hubly/helpdesk-service/internal/services"
	"hubly/helpdesk-service/internal/utils"
)

type TicketReader interface {
	GetTicket(ctx context.Context, id primitive.ObjectID, viewer *models.Account) (*models.Ticket, error)
}

// Handler upgrades live-channel requests. Events only tell clients that
// something changed; they re-read over HTTP.
type Handler struct {
	hub      *Hub
	tickets  TicketReader
	tokens   utils.TokenValidator
	accounts utils.AccountResolver
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, tickets TicketReader, tokens utils.TokenValidator, accounts utils.AccountResolver, allowedOrigins []string) *Handler {
	return &Handler{
		hub:      hub,
		tickets:  tickets,
		tokens:   tokens,
		accounts: accounts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		log.Printf("[LIVE] Rejected origin %s", origin)
		return false
	}
}

// GET /live/tickets/:id
func (h *Handler) ServeTicket(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
		return
	}
	if _, err := h.tickets.GetTicket(c.Request.Context(), id, nil); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		log.Printf("[LIVE] Lookup ticket %s: %v", id.Hex(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.serve(c, "widget", TicketFilter(id))
}

// GET /live/staff?token=
func (h *Handler) ServeStaff(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	account, err := utils.ResolveToken(c.Request.Context(), h.tokens, h.accounts, token)
	if err != nil {
		if errors.Is(err, models.ErrAuth) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": models.ErrorMessage(err)})
			return
		}
		log.Printf("[LIVE] Resolve token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.serve(c, string(account.Role), StaffFilter(account))
}

func (h *Handler) serve(c *gin.Context, kind string, filter Filter) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[LIVE] Upgrade failed: %v", err)
		return
	}

	client := NewClient(h.hub, conn, kind, filter)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// TicketFilter passes the events of one ticket.
func TicketFilter(id primitive.ObjectID) Filter {
	return func(e models.TicketEvent) bool {
		return e.TicketID == id
	}
}

// StaffFilter passes what account may view.
func StaffFilter(account *models.Account) Filter {
	return func(e models.TicketEvent) bool {
		return services.CanView(account, e.Ticket())
	}
}
