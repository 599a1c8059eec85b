package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/research-library-api/internal/dto"
	"github.com/noah-isme/research-library-api/internal/middleware"
	"github.com/noah-isme/research-library-api/internal/models"
	"github.com/noah-isme/research-library-api/internal/service"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
	"github.com/noah-isme/research-library-api/pkg/response"
)

type activityLogService interface {
	List(ctx context.Context, caller *models.SessionUser) ([]models.ActivityLog, error)
	Delete(ctx context.Context, caller *models.SessionUser, ids []string) (int64, error)
	Export(ctx context.Context, caller *models.SessionUser, format string) (*service.ExportedFile, error)
}

// ActivityLogHandler exposes the audit trail to administrators.
type ActivityLogHandler struct {
	service activityLogService
}

// NewActivityLogHandler constructs an ActivityLogHandler.
func NewActivityLogHandler(svc activityLogService) *ActivityLogHandler {
	return &ActivityLogHandler{service: svc}
}

// List godoc
// @Summary List recent activity
// @Tags Activity Logs
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /activity-logs [get]
func (h *ActivityLogHandler) List(c *gin.Context) {
	logs, err := h.service.List(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// Delete godoc
// @Summary Delete activity entries
// @Tags Activity Logs
// @Accept json
// @Produce json
// @Param payload body dto.DeleteLogsRequest true "Entry ids"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /activity-logs [delete]
func (h *ActivityLogHandler) Delete(c *gin.Context) {
	var req dto.DeleteLogsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "no log IDs provided"))
		return
	}
	deleted, err := h.service.Delete(c.Request.Context(), middleware.CurrentUser(c), req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DeleteLogsResponse{DeletedCount: deleted}, nil)
}

// Export godoc
// @Summary Export activity trail
// @Tags Activity Logs
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /activity-logs/export [get]
func (h *ActivityLogHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), middleware.CurrentUser(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+file.FileName+"\"")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
