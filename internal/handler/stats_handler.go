package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/research-library-api/internal/middleware"
	"github.com/noah-isme/research-library-api/internal/models"
	"github.com/noah-isme/research-library-api/pkg/response"
)

type statsService interface {
	Public(ctx context.Context) (*models.PublicStats, bool, error)
	Dashboard(ctx context.Context, caller *models.SessionUser) (*models.DashboardStats, error)
}

// StatsHandler serves landing page and dashboard statistics.
type StatsHandler struct {
	service statsService
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(svc statsService) *StatsHandler {
	return &StatsHandler{service: svc}
}

// Public godoc
// @Summary Library totals
// @Tags Stats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stats [get]
func (h *StatsHandler) Public(c *gin.Context) {
	stats, cacheHit, err := h.service.Public(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// Dashboard godoc
// @Summary Dashboard aggregates
// @Tags Stats
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *StatsHandler) Dashboard(c *gin.Context) {
	stats, err := h.service.Dashboard(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
