package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"hubly/helpdesk-service/internal/models"
	"hubly/helpdesk-service/internal/utils"
)

type AuthService interface {
	Register(ctx context.Context, input models.RegisterInput) (*models.Session, error)
	Login(ctx context.Context, email, password string) (*models.Session, error)
	ChangePassword(ctx context.Context, id primitive.ObjectID, change models.PasswordChange) error
	GetProfile(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, patch models.ProfileUpdate) (*models.Account, error)
	UploadAvatar(ctx context.Context, id primitive.ObjectID, upload models.AvatarUpload) (*models.Account, error)
}

type AuthHandler struct {
	service AuthService
}

func NewAuthHandler(service AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var input models.RegisterInput
	if !bindJSON(c, &input) {
		return
	}

	session, err := h.service.Register(c.Request.Context(), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &credentials) {
		return
	}

	session, err := h.service.Login(c.Request.Context(), credentials.Email, credentials.Password)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// GET /api/users/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	account, err := h.service.GetProfile(c.Request.Context(), utils.CurrentAccount(c).ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// PUT /api/users/me
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var patch models.ProfileUpdate
	if !bindJSON(c, &patch) {
		return
	}

	account, err := h.service.UpdateProfile(c.Request.Context(), utils.CurrentAccount(c).ID, patch)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// PUT /api/users/me/avatar
func (h *AuthHandler) UploadAvatar(c *gin.Context) {
	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	account, err := h.service.UploadAvatar(c.Request.Context(), utils.CurrentAccount(c).ID, models.AvatarUpload{
		Reader:      file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// POST /api/users/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var change models.PasswordChange
	if !bindJSON(c, &change) {
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), utils.CurrentAccount(c).ID, change); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}
