package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/research-library-api/internal/dto"
	"github.com/noah-isme/research-library-api/internal/models"
	"github.com/noah-isme/research-library-api/internal/service"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
)

type fakePaperSrv struct {
	created      dto.CreatePaperRequest
	createdBody  string
	updated      dto.UpdatePaperRequest
	openDownload bool
	openErr      error
	listQuery    dto.PaperListQuery
}

func (f *fakePaperSrv) List(_ context.Context, query dto.PaperListQuery) ([]models.PaperView, *models.Pagination, error) {
	f.listQuery = query
	return []models.PaperView{{Paper: models.Paper{ID: "p1", Title: "Solar"}}}, &models.Pagination{Page: 1, PageSize: 50, TotalCount: 1}, nil
}

func (f *fakePaperSrv) Get(_ context.Context, id string) (*models.PaperView, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
}

func (f *fakePaperSrv) Create(_ context.Context, _ *models.SessionUser, req dto.CreatePaperRequest) (*models.PaperView, error) {
	f.created = req
	body, err := io.ReadAll(req.File.Reader)
	if err != nil {
		return nil, err
	}
	f.createdBody = string(body)
	return &models.PaperView{Paper: models.Paper{ID: "p1", Title: req.Title}}, nil
}

func (f *fakePaperSrv) Update(_ context.Context, _ *models.SessionUser, id string, req dto.UpdatePaperRequest) (*models.PaperView, error) {
	f.updated = req
	return &models.PaperView{Paper: models.Paper{ID: id}}, nil
}

func (f *fakePaperSrv) Delete(context.Context, *models.SessionUser, string) error {
	return appErrors.Clone(appErrors.ErrForbidden, "admin access required")
}

func (f *fakePaperSrv) OpenPDF(_ context.Context, id string, download bool) (*service.PaperFile, error) {
	f.openDownload = download
	if f.openErr != nil {
		return nil, f.openErr
	}
	content := "%PDF-1.4 body"
	return &service.PaperFile{Reader: io.NopCloser(strings.NewReader(content)), Size: int64(len(content)), FileName: "Solar Panels.pdf"}, nil
}

func multipartBody(t *testing.T, fields map[string]string, fileContentType, fileContent string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileContentType != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="pdf"; filename="paper.pdf"`)
		header.Set("Content-Type", fileContentType)
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(fileContent))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestPaperHandlerCreateMultipart(t *testing.T) {
	srv := &fakePaperSrv{}
	handler := NewPaperHandler(srv)

	body, contentType := multipartBody(t, map[string]string{
		"title":         "Solar Panels",
		"authors":       `[{"firstName":"Ana","lastName":"Cruz"}]`,
		"abstract":      "Abstract",
		"adviser":       "Dr. Santos",
		"school_year":   "2023-2024",
		"grade_section": "12-A",
		"strand":        "STEM",
	}, "application/pdf", "%PDF-1.4 upload")

	c, rec := newTestContext(http.MethodPost, "/papers", nil)
	c.Request, _ = http.NewRequest(http.MethodPost, "/papers", body)
	c.Request.Header.Set("Content-Type", contentType)
	withCaller(c, testViewer, "tok")
	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Solar Panels", srv.created.Title)
	assert.Equal(t, "STEM", srv.created.Strand)
	assert.Equal(t, "application/pdf", srv.created.File.ContentType)
	assert.Equal(t, "%PDF-1.4 upload", srv.createdBody)
}

func TestPaperHandlerCreateRequiresFile(t *testing.T) {
	handler := NewPaperHandler(&fakePaperSrv{})

	body, contentType := multipartBody(t, map[string]string{"title": "Solar"}, "", "")
	c, rec := newTestContext(http.MethodPost, "/papers", nil)
	c.Request, _ = http.NewRequest(http.MethodPost, "/papers", body)
	c.Request.Header.Set("Content-Type", contentType)
	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaperHandlerUpdateOnlySubmittedFields(t *testing.T) {
	srv := &fakePaperSrv{}
	handler := NewPaperHandler(srv)

	body, contentType := multipartBody(t, map[string]string{"title": "Wind", "keywords": ""}, "", "")
	c, rec := newTestContext(http.MethodPut, "/papers/p1", nil)
	c.Request, _ = http.NewRequest(http.MethodPut, "/papers/p1", body)
	c.Request.Header.Set("Content-Type", contentType)
	c.Params = append(c.Params, gin.Param{Key: "id", Value: "p1"})
	handler.Update(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.updated.Title)
	assert.Equal(t, "Wind", *srv.updated.Title)
	require.NotNil(t, srv.updated.Keywords)
	assert.Equal(t, "", *srv.updated.Keywords)
	assert.Nil(t, srv.updated.Abstract)
	assert.Nil(t, srv.updated.File)
}

func TestPaperHandlerDownloadStreamsAttachment(t *testing.T) {
	srv := &fakePaperSrv{}
	handler := NewPaperHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/papers/download/p1", nil)
	c.Params = append(c.Params, gin.Param{Key: "id", Value: "p1"})
	handler.Download(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, srv.openDownload)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Solar Panels.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4 body", rec.Body.String())
}

func TestPaperHandlerViewIsInline(t *testing.T) {
	srv := &fakePaperSrv{}
	handler := NewPaperHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/papers/view/p1", nil)
	handler.View(c)

	assert.False(t, srv.openDownload)
	assert.Equal(t, `inline; filename="Solar Panels.pdf"`, rec.Header().Get("Content-Disposition"))
}

func TestPaperHandlerViewMissingFile(t *testing.T) {
	handler := NewPaperHandler(&fakePaperSrv{openErr: appErrors.Clone(appErrors.ErrNotFound, "file missing on server")})

	c, rec := newTestContext(http.MethodGet, "/papers/view/p1", nil)
	handler.View(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "file missing on server", decodeEnvelope(t, rec).Error.Message)
}

func TestPaperHandlerListPassesFilters(t *testing.T) {
	srv := &fakePaperSrv{}
	handler := NewPaperHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/papers?strand=STEM&featured=true&page=2", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "STEM", srv.listQuery.Strand)
	assert.Equal(t, "true", srv.listQuery.Featured)
	assert.Equal(t, 2, srv.listQuery.Page)
	assert.Equal(t, 1, decodeEnvelope(t, rec).Pagination.TotalCount)
}

func TestPaperHandlerDeleteForbidden(t *testing.T) {
	handler := NewPaperHandler(&fakePaperSrv{})

	c, rec := newTestContext(http.MethodDelete, "/papers/p1", nil)
	withCaller(c, testViewer, "tok")
	handler.Delete(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
