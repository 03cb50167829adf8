package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"hubly/helpdesk-service/internal/models"
	"hubly/helpdesk-service/internal/utils"
)

const qrCodeSize = 256

type SettingsRepository interface {
	GetOrCreate(ctx context.Context, defaults models.ChatbotSettings) (*models.ChatbotSettings, error)
	Patch(ctx context.Context, workspace string, fields map[string]interface{}) (*models.ChatbotSettings, error)
}

type SettingsService struct {
	settings      SettingsRepository
	widgetBaseURL string
	now           func() time.Time
}

func NewSettingsService(settings SettingsRepository, widgetBaseURL string) *SettingsService {
	return &SettingsService{settings: settings, widgetBaseURL: widgetBaseURL, now: time.Now}
}

func workspaceOrDefault(workspace string) string {
	workspace = strings.TrimSpace(workspace)
	if workspace == "" {
		return models.DefaultWorkspace
	}
	return workspace
}

// GetSettings materializes the defaults on first read.
func (s *SettingsService) GetSettings(ctx context.Context, workspace string) (*models.ChatbotSettings, error) {
	workspace = workspaceOrDefault(workspace)
	return s.settings.GetOrCreate(ctx, models.DefaultChatbotSettings(workspace, s.now()))
}

// UpdateSettings merges the present fields of patch into the admin's own
// workspace document.
func (s *SettingsService) UpdateSettings(ctx context.Context, admin *models.Account, workspace string, patch models.SettingsPatch) (*models.ChatbotSettings, error) {
	if !admin.IsAdmin() {
		return nil, models.Forbidden("admin privileges required")
	}
	workspace = strings.TrimSpace(workspace)
	if workspace == "" {
		workspace = admin.Workspace
	}
	if workspace != admin.Workspace {
		return nil, models.Forbidden("you can only change settings of your own workspace")
	}
	if err := utils.ValidateStruct(patch); err != nil {
		return nil, err
	}

	current, err := s.GetSettings(ctx, workspace)
	if err != nil {
		return nil, err
	}

	fields := patch.Fields()
	if len(fields) == 0 {
		return current, nil
	}
	return s.settings.Patch(ctx, workspace, fields)
}

// WidgetURL is the address visitors open to chat with the workspace.
func (s *SettingsService) WidgetURL(workspace string) string {
	return s.widgetBaseURL + "?workspace=" + url.QueryEscape(workspaceOrDefault(workspace))
}

// WidgetQRCode renders the widget URL as a PNG.
func (s *SettingsService) WidgetQRCode(workspace string) ([]byte, error) {
	return qrcode.Encode(s.WidgetURL(workspace), qrcode.Medium, qrCodeSize)
}
