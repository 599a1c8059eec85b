package handler

import (
	"context"
	"errors"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/research-library-api/internal/dto"
	"github.com/noah-isme/research-library-api/internal/middleware"
	"github.com/noah-isme/research-library-api/internal/models"
	"github.com/noah-isme/research-library-api/internal/service"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
	"github.com/noah-isme/research-library-api/pkg/response"
)

const paperFileField = "pdf"

type paperService interface {
	List(ctx context.Context, query dto.PaperListQuery) ([]models.PaperView, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.PaperView, error)
	Create(ctx context.Context, caller *models.SessionUser, req dto.CreatePaperRequest) (*models.PaperView, error)
	Update(ctx context.Context, caller *models.SessionUser, id string, req dto.UpdatePaperRequest) (*models.PaperView, error)
	Delete(ctx context.Context, caller *models.SessionUser, id string) error
	OpenPDF(ctx context.Context, id string, download bool) (*service.PaperFile, error)
}

// PaperHandler serves the research paper library.
type PaperHandler struct {
	service paperService
}

// NewPaperHandler constructs a PaperHandler.
func NewPaperHandler(svc paperService) *PaperHandler {
	return &PaperHandler{service: svc}
}

// List godoc
// @Summary List papers
// @Tags Papers
// @Produce json
// @Param search query string false "Title, abstract, keyword or adviser search"
// @Param strand query string false "Strand acronym"
// @Param school_year query string false "School year"
// @Param featured query bool false "Featured only"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /papers [get]
func (h *PaperHandler) List(c *gin.Context) {
	var query dto.PaperListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	papers, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, papers, pagination)
}

// Get godoc
// @Summary Get paper
// @Tags Papers
// @Produce json
// @Param id path string true "Paper ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /papers/{id} [get]
func (h *PaperHandler) Get(c *gin.Context) {
	paper, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, paper, nil)
}

// Create godoc
// @Summary Upload paper
// @Tags Papers
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param authors formData string true "JSON encoded author list"
// @Param strand formData string true "Strand acronym"
// @Param pdf formData file true "PDF file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /papers [post]
func (h *PaperHandler) Create(c *gin.Context) {
	var req dto.CreatePaperRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid paper payload"))
		return
	}

	upload, closeFn, err := formUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if upload == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "pdf file is required"))
		return
	}
	defer closeFn()
	req.File = upload

	paper, err := h.service.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, paper)
}

// Update godoc
// @Summary Update paper
// @Description Only submitted fields are changed. A new pdf replaces the stored file.
// @Tags Papers
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Paper ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /papers/{id} [put]
func (h *PaperHandler) Update(c *gin.Context) {
	upload, closeFn, err := formUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if upload != nil {
		defer closeFn()
	}

	req := dto.UpdatePaperRequest{
		Title:        postForm(c, "title"),
		Authors:      postForm(c, "authors"),
		Abstract:     postForm(c, "abstract"),
		Keywords:     postForm(c, "keywords"),
		Adviser:      postForm(c, "adviser"),
		SchoolYear:   postForm(c, "school_year"),
		GradeSection: postForm(c, "grade_section"),
		Strand:       postForm(c, "strand"),
		IsFeatured:   postForm(c, "is_featured"),
		File:         upload,
	}

	paper, err := h.service.Update(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, paper, nil)
}

// Delete godoc
// @Summary Delete paper
// @Tags Papers
// @Param id path string true "Paper ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /papers/{id} [delete]
func (h *PaperHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// View godoc
// @Summary Stream paper PDF inline
// @Tags Papers
// @Produce application/pdf
// @Param id path string true "Paper ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /papers/view/{id} [get]
func (h *PaperHandler) View(c *gin.Context) {
	h.stream(c, false)
}

// Download godoc
// @Summary Download paper PDF
// @Description Increments the download counter.
// @Tags Papers
// @Produce application/pdf
// @Param id path string true "Paper ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /papers/download/{id} [get]
func (h *PaperHandler) Download(c *gin.Context) {
	h.stream(c, true)
}

func (h *PaperHandler) stream(c *gin.Context, download bool) {
	file, err := h.service.OpenPDF(c.Request.Context(), c.Param("id"), download)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Reader.Close()

	disposition := "inline"
	if download {
		disposition = "attachment"
	}
	headers := map[string]string{
		"Content-Disposition": mime.FormatMediaType(disposition, map[string]string{"filename": file.FileName}),
	}
	c.DataFromReader(http.StatusOK, file.Size, "application/pdf", file.Reader, headers)
}

// formUpload returns the attached pdf, or nil when the request carries none.
func formUpload(c *gin.Context) (*dto.PaperUpload, func(), error) {
	header, err := c.FormFile(paperFileField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, func() {}, nil
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload")
	}
	f, err := header.Open()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload")
	}
	upload := &dto.PaperUpload{Reader: f, Size: header.Size, ContentType: header.Header.Get("Content-Type")}
	return upload, func() { _ = f.Close() }, nil
}

func postForm(c *gin.Context, key string) *string {
	if value, ok := c.GetPostForm(key); ok {
		return &value
	}
	return nil
}
