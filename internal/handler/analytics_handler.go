package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"hubly/helpdesk-service/internal/models"
	"hubly/helpdesk-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AnalyticsService interface {
	Dashboard(ctx context.Context, workspace string) (*models.DashboardStats, error)
	Detailed(ctx context.Context, workspace string) (*models.DetailedAnalytics, error)
	Member(ctx context.Context, workspace string, memberID primitive.ObjectID) (*models.MemberAnalytics, error)
	ExportXLSX(ctx context.Context, workspace string) (*bytes.Buffer, error)
}

// AnalyticsHandler serves admins; every report is scoped to the caller's workspace.
type AnalyticsHandler struct {
	service AnalyticsService
}

func NewAnalyticsHandler(service AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// GET /api/analytics/dashboard
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	stats, err := h.service.Dashboard(c.Request.Context(), utils.CurrentAccount(c).Workspace)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GET /api/analytics/detailed
func (h *AnalyticsHandler) Detailed(c *gin.Context) {
	report, err := h.service.Detailed(c.Request.Context(), utils.CurrentAccount(c).Workspace)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GET /api/analytics/members/:id
func (h *AnalyticsHandler) Member(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}

	report, err := h.service.Member(c.Request.Context(), utils.CurrentAccount(c).Workspace, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GET /api/analytics/export
func (h *AnalyticsHandler) Export(c *gin.Context) {
	buf, err := h.service.ExportXLSX(c.Request.Context(), utils.CurrentAccount(c).Workspace)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("tickets_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
