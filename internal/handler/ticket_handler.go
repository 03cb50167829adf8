package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"hubly/helpdesk-service/internal/models"
	"hubly/helpdesk-service/internal/utils"
)

type TicketService interface {
	CreateTicket(ctx context.Context, input models.NewTicket) (*models.Ticket, error)
	GetTicket(ctx context.Context, id primitive.ObjectID, viewer *models.Account) (*models.Ticket, error)
	GetMessages(ctx context.Context, id primitive.ObjectID, viewer *models.Account) ([]models.Message, error)
	AppendMessage(ctx context.Context, id primitive.ObjectID, input models.MessageInput, author *models.Account) (*models.Ticket, error)
	UpdateContactInfo(ctx context.Context, id primitive.ObjectID, info models.ContactInfo) (*models.Ticket, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.TicketStatus, actor *models.Account) (*models.Ticket, error)
	Assign(ctx context.Context, id, assignee primitive.ObjectID, actor *models.Account) (*models.Ticket, error)
	ListTickets(ctx context.Context, requester *models.Account, query models.TicketQuery) (*models.TicketPage, error)
}

type TicketHandler struct {
	service TicketService
}

func NewTicketHandler(service TicketService) *TicketHandler {
	return &TicketHandler{service: service}
}

// POST /api/tickets/create
func (h *TicketHandler) CreateTicket(c *gin.Context) {
	var req struct {
		FirstMessage string              `json:"firstMessage"`
		UserInfo     *models.ContactInfo `json:"userInfo"`
		ContactInfo  *models.ContactInfo `json:"contactInfo"`
		WorkspaceID  string              `json:"workspaceId"`
	}
	if !bindJSON(c, &req) {
		return
	}

	input := models.NewTicket{
		FirstMessage:  req.FirstMessage,
		UserInfo:      req.UserInfo,
		Workspace:     req.WorkspaceID,
		BindWorkspace: req.WorkspaceID != "",
	}
	if input.UserInfo == nil {
		input.UserInfo = req.ContactInfo
	}

	ticket, err := h.service.CreateTicket(c.Request.Context(), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// GET /api/tickets/:id
func (h *TicketHandler) GetTicket(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}

	ticket, err := h.service.GetTicket(c.Request.Context(), id, utils.CurrentAccount(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// GET /api/tickets/:id/messages
func (h *TicketHandler) GetMessages(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}

	messages, err := h.service.GetMessages(c.Request.Context(), id, utils.CurrentAccount(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messages})
}

// POST /api/tickets/:id/message
func (h *TicketHandler) AppendMessage(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var input models.MessageInput
	if !bindJSON(c, &input) {
		return
	}

	ticket, err := h.service.AppendMessage(c.Request.Context(), id, input, utils.CurrentAccount(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// PUT /api/tickets/:id/update
func (h *TicketHandler) UpdateContactInfo(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req struct {
		UserInfo models.ContactInfo `json:"userInfo"`
	}
	if !bindJSON(c, &req) {
		return
	}

	ticket, err := h.service.UpdateContactInfo(c.Request.Context(), id, req.UserInfo)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// PUT /api/tickets/:id/status
func (h *TicketHandler) SetStatus(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req struct {
		Status models.TicketStatus `json:"status"`
	}
	if !bindJSON(c, &req) {
		return
	}

	ticket, err := h.service.SetStatus(c.Request.Context(), id, req.Status, utils.CurrentAccount(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// PUT /api/tickets/:id/assign
func (h *TicketHandler) Assign(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req struct {
		AssignedTo string `json:"assignedTo"`
	}
	if !bindJSON(c, &req) {
		return
	}
	assignee, err := primitive.ObjectIDFromHex(req.AssignedTo)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "assignedTo must be a user ID")
		return
	}

	ticket, err := h.service.Assign(c.Request.Context(), id, assignee, utils.CurrentAccount(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// GET /api/tickets?status=&page=&itemsPerPage=&pinned=
func (h *TicketHandler) ListTickets(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "page must be a number")
		return
	}
	perPage, err := queryInt(c, "itemsPerPage")
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "itemsPerPage must be a number")
		return
	}

	query := models.TicketQuery{
		Status: models.TicketStatus(c.Query("status")),
		Page:   models.Pagination{Page: page, ItemsPerPage: perPage},
	}
	// an unknown pin is just not shown
	if pinned, err := primitive.ObjectIDFromHex(c.Query("pinned")); err == nil {
		query.Pinned = &pinned
	}

	result, err := h.service.ListTickets(c.Request.Context(), utils.CurrentAccount(c), query)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
