package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/research-library-api/internal/dto"
	"github.com/noah-isme/research-library-api/internal/middleware"
	"github.com/noah-isme/research-library-api/internal/models"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
	"github.com/noah-isme/research-library-api/pkg/response"
)

type strandService interface {
	List(ctx context.Context) ([]models.StrandSummary, error)
	Create(ctx context.Context, caller *models.SessionUser, req dto.StrandRequest) (*models.Strand, error)
	Update(ctx context.Context, caller *models.SessionUser, id string, req dto.StrandRequest) (*models.Strand, error)
	Delete(ctx context.Context, caller *models.SessionUser, id string) error
}

// StrandHandler exposes the strand catalogue.
type StrandHandler struct {
	service strandService
}

// NewStrandHandler constructs a StrandHandler.
func NewStrandHandler(svc strandService) *StrandHandler {
	return &StrandHandler{service: svc}
}

// List godoc
// @Summary List strands
// @Tags Strands
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /strands [get]
func (h *StrandHandler) List(c *gin.Context) {
	strands, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, strands, nil)
}

// Create godoc
// @Summary Create strand
// @Tags Strands
// @Accept json
// @Produce json
// @Param payload body dto.StrandRequest true "Strand payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /strands [post]
func (h *StrandHandler) Create(c *gin.Context) {
	var req dto.StrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid strand payload"))
		return
	}
	strand, err := h.service.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, strand)
}

// Update godoc
// @Summary Update strand
// @Tags Strands
// @Accept json
// @Produce json
// @Param id path string true "Strand ID"
// @Param payload body dto.StrandRequest true "Strand payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /strands/{id} [put]
func (h *StrandHandler) Update(c *gin.Context) {
	var req dto.StrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid strand payload"))
		return
	}
	strand, err := h.service.Update(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, strand, nil)
}

// Delete godoc
// @Summary Delete strand
// @Description Refused while papers still reference the strand.
// @Tags Strands
// @Param id path string true "Strand ID"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /strands/{id} [delete]
func (h *StrandHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
