package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"hubly/helpdesk-service/internal/models"
	"hubly/helpdesk-service/internal/utils"
)

type MemberService interface {
	ListMembers(ctx context.Context, requester *models.Account) ([]models.Account, error)
	CreateMember(ctx context.Context, admin *models.Account, input models.MemberInput) (*models.Account, error)
	UpdateMember(ctx context.Context, admin *models.Account, id primitive.ObjectID, patch models.MemberUpdate) (*models.Account, error)
	DeleteMember(ctx context.Context, admin *models.Account, id primitive.ObjectID) (int64, error)
}

type UserHandler struct {
	service MemberService
}

func NewUserHandler(service MemberService) *UserHandler {
	return &UserHandler{service: service}
}

// GET /api/users/members
func (h *UserHandler) ListMembers(c *gin.Context) {
	members, err := h.service.ListMembers(c.Request.Context(), utils.CurrentAccount(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// POST /api/users/members (admin only)
func (h *UserHandler) CreateMember(c *gin.Context) {
	var input models.MemberInput
	if !bindJSON(c, &input) {
		return
	}

	member, err := h.service.CreateMember(c.Request.Context(), utils.CurrentAccount(c), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

// PUT /api/users/members/:id (admin only)
func (h *UserHandler) UpdateMember(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var patch models.MemberUpdate
	if !bindJSON(c, &patch) {
		return
	}

	member, err := h.service.UpdateMember(c.Request.Context(), utils.CurrentAccount(c), id, patch)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// DELETE /api/users/members/:id (admin only). All tickets of the member, whatever
// their status, move to the deleting admin.
func (h *UserHandler) DeleteMember(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	moved, err := h.service.DeleteMember(c.Request.Context(), utils.CurrentAccount(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully", "reassignedTickets": moved})
}
