package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/research-library-api/internal/dto"
	"github.com/noah-isme/research-library-api/internal/models"
	"github.com/noah-isme/research-library-api/internal/service"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
)

type fakeUserSrv struct {
	updateToken    string
	updateReq      dto.UpdateUserRequest
	deletePassword string
	deleteSelf     bool
	deleteErr      error
	kickCount      int
	kickedID       string
}

func (f *fakeUserSrv) List(context.Context, *models.SessionUser) ([]dto.UserResponse, error) {
	return []dto.UserResponse{{ID: "u1", Username: "vic"}}, nil
}

func (f *fakeUserSrv) Create(_ context.Context, caller *models.SessionUser, req dto.CreateUserRequest) (*dto.UserResponse, error) {
	if !caller.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin access required")
	}
	return &dto.UserResponse{ID: "u2", Username: req.Username, Role: models.RoleViewer}, nil
}

func (f *fakeUserSrv) Update(_ context.Context, _ *models.SessionUser, token, id string, req dto.UpdateUserRequest) (*dto.UserResponse, error) {
	f.updateToken = token
	f.updateReq = req
	return &dto.UserResponse{ID: id}, nil
}

func (f *fakeUserSrv) Delete(_ context.Context, _ *models.SessionUser, _ string, currentPassword string) (bool, error) {
	f.deletePassword = currentPassword
	return f.deleteSelf, f.deleteErr
}

func (f *fakeUserSrv) ActiveSessions(context.Context, *models.SessionUser) ([]string, error) {
	return []string{"u1"}, nil
}

func (f *fakeUserSrv) Kick(_ context.Context, _ *models.SessionUser, id string) (int, error) {
	f.kickedID = id
	return f.kickCount, nil
}

func TestUserHandlerCreateForbiddenForViewer(t *testing.T) {
	handler := NewUserHandler(&fakeUserSrv{}, CookieSettings{})

	c, rec := newTestContext(http.MethodPost, "/users", []byte(`{"username":"newbie","password":"secret1","full_name":"New"}`))
	withCaller(c, testViewer, "tok")
	handler.Create(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = newTestContext(http.MethodPost, "/users", []byte(`{"username":"newbie","password":"secret1","full_name":"New"}`))
	withCaller(c, testAdmin, "tok")
	handler.Create(c)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUserHandlerUpdatePassesCallerToken(t *testing.T) {
	srv := &fakeUserSrv{}
	handler := NewUserHandler(srv, CookieSettings{})

	c, rec := newTestContext(http.MethodPut, "/users/viewer-1", []byte(`{"password":"newpass","currentPassword":"old"}`))
	c.Params = gin.Params{{Key: "id", Value: "viewer-1"}}
	withCaller(c, testViewer, "tok-9")
	handler.Update(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-9", srv.updateToken)
	require.NotNil(t, srv.updateReq.Password)
	assert.Equal(t, "newpass", *srv.updateReq.Password)
	assert.Equal(t, "old", srv.updateReq.CurrentPassword)
}

func TestUserHandlerSelfDeleteClearsCookie(t *testing.T) {
	srv := &fakeUserSrv{deleteSelf: true}
	handler := NewUserHandler(srv, CookieSettings{Name: "sid"})

	c, rec := newTestContext(http.MethodDelete, "/users/viewer-1", []byte(`{"currentPassword":"viewer-pw"}`))
	c.Params = gin.Params{{Key: "id", Value: "viewer-1"}}
	withCaller(c, testViewer, "tok")
	handler.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "viewer-pw", srv.deletePassword)
	require.Len(t, rec.Result().Cookies(), 1)
}

func TestUserHandlerDeleteWithoutBody(t *testing.T) {
	srv := &fakeUserSrv{deleteErr: appErrors.Clone(appErrors.ErrValidation, "password verification required")}
	handler := NewUserHandler(srv, CookieSettings{})

	c, rec := newTestContext(http.MethodDelete, "/users/viewer-1", nil)
	withCaller(c, testAdmin, "tok")
	handler.Delete(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "", srv.deletePassword)
}

func TestUserHandlerKick(t *testing.T) {
	srv := &fakeUserSrv{kickCount: 2}
	handler := NewUserHandler(srv, CookieSettings{})

	c, rec := newTestContext(http.MethodDelete, "/users/u7/sessions", nil)
	c.Params = gin.Params{{Key: "id", Value: "u7"}}
	withCaller(c, testAdmin, "tok")
	handler.Kick(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u7", srv.kickedID)
	var resp dto.KickResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &resp))
	assert.Equal(t, 2, resp.DeletedCount)
}

type fakeActivityLogSrv struct {
	ids    []string
	format string
}

func (f *fakeActivityLogSrv) List(context.Context, *models.SessionUser) ([]models.ActivityLog, error) {
	return []models.ActivityLog{{ID: "l1", Timestamp: time.Now(), ActionType: models.ActionLogin}}, nil
}

func (f *fakeActivityLogSrv) Delete(_ context.Context, _ *models.SessionUser, ids []string) (int64, error) {
	f.ids = ids
	if len(ids) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "no log IDs provided")
	}
	return int64(len(ids)), nil
}

func (f *fakeActivityLogSrv) Export(_ context.Context, _ *models.SessionUser, format string) (*service.ExportedFile, error) {
	f.format = format
	return &service.ExportedFile{Content: []byte("Timestamp\n"), ContentType: "text/csv", FileName: "activity-logs.csv"}, nil
}

func TestActivityLogHandlerDelete(t *testing.T) {
	srv := &fakeActivityLogSrv{}
	handler := NewActivityLogHandler(srv)

	c, rec := newTestContext(http.MethodDelete, "/activity-logs", []byte(`{"ids":["a","b"]}`))
	withCaller(c, testAdmin, "tok")
	handler.Delete(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.DeleteLogsResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &resp))
	assert.Equal(t, int64(2), resp.DeletedCount)

	c, rec = newTestContext(http.MethodDelete, "/activity-logs", []byte(`{"ids":[]}`))
	withCaller(c, testAdmin, "tok")
	handler.Delete(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivityLogHandlerExport(t *testing.T) {
	srv := &fakeActivityLogSrv{}
	handler := NewActivityLogHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/activity-logs/export?format=csv", nil)
	withCaller(c, testAdmin, "tok")
	handler.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", srv.format)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="activity-logs.csv"`, rec.Header().Get("Content-Disposition"))
}
