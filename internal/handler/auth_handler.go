package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/research-library-api/internal/middleware"
	"github.com/noah-isme/research-library-api/internal/models"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
	"github.com/noah-isme/research-library-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Logout(ctx context.Context, caller *models.SessionUser, token string) error
	ReportExpiry(ctx context.Context, report models.ExpiryReport)
}

// CookieSettings describes the session cookie written on login.
type CookieSettings = middleware.SessionCookie

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
	cookie  CookieSettings
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, cookie CookieSettings) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "sid"
	}
	return &AuthHandler{service: svc, cookie: cookie}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by username and password from a device. Repeated failures lock the device out.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookie.Set(c, res.Token, time.Duration(res.ExpiresIn)*time.Second)
	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Logout current session
// @Description Records the logout and destroys the session
// @Tags Authentication
// @Produce json
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Logout(c.Request.Context(), user, c.GetString(middleware.ContextTokenKey)); err != nil {
		response.Error(c, err)
		return
	}

	h.clearCookie(c)
	response.NoContent(c)
}

// Me godoc
// @Summary Get current user
// @Description Returns the session snapshot of the caller
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// ReportExpiry godoc
// @Summary Report an idle timeout
// @Description Records a Logout entry for a session the client saw expire
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ExpiryReport false "Client hints"
// @Success 204 {object} response.Envelope
// @Router /auth/report-expiry [post]
func (h *AuthHandler) ReportExpiry(c *gin.Context) {
	var report models.ExpiryReport
	// Hints are optional; a malformed body is recorded as an anonymous expiry.
	_ = c.ShouldBindJSON(&report)

	h.service.ReportExpiry(c.Request.Context(), report)
	h.clearCookie(c)
	response.NoContent(c)
}

func (h *AuthHandler) clearCookie(c *gin.Context) {
	h.cookie.Clear(c)
}
