package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"hubly/helpdesk-service/internal/models"
	"hubly/helpdesk-service/internal/utils"
)

type SettingsService interface {
	GetSettings(ctx context.Context, workspace string) (*models.ChatbotSettings, error)
	UpdateSettings(ctx context.Context, admin *models.Account, workspace string, patch models.SettingsPatch) (*models.ChatbotSettings, error)
	WidgetQRCode(workspace string) ([]byte, error)
}

type ChatbotHandler struct {
	service SettingsService
}

func NewChatbotHandler(service SettingsService) *ChatbotHandler {
	return &ChatbotHandler{service: service}
}

// GET /api/chatbot/settings?workspace=
func (h *ChatbotHandler) GetSettings(c *gin.Context) {
	settings, err := h.service.GetSettings(c.Request.Context(), c.Query("workspace"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// PUT /api/chatbot/settings?workspace= (admin only)
func (h *ChatbotHandler) UpdateSettings(c *gin.Context) {
	var patch models.SettingsPatch
	if !bindJSON(c, &patch) {
		return
	}

	settings, err := h.service.UpdateSettings(c.Request.Context(), utils.CurrentAccount(c), c.Query("workspace"), patch)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// GET /api/chatbot/qr?workspace=
func (h *ChatbotHandler) WidgetQRCode(c *gin.Context) {
	png, err := h.service.WidgetQRCode(c.Query("workspace"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
