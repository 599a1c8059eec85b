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

type userService interface {
	List(ctx context.Context, caller *models.SessionUser) ([]dto.UserResponse, error)
	Create(ctx context.Context, caller *models.SessionUser, req dto.CreateUserRequest) (*dto.UserResponse, error)
	Update(ctx context.Context, caller *models.SessionUser, callerToken, id string, req dto.UpdateUserRequest) (*dto.UserResponse, error)
	Delete(ctx context.Context, caller *models.SessionUser, id, currentPassword string) (bool, error)
	ActiveSessions(ctx context.Context, caller *models.SessionUser) ([]string, error)
	Kick(ctx context.Context, caller *models.SessionUser, id string) (int, error)
}

// UserHandler manages user accounts and their sessions.
type UserHandler struct {
	service userService
	cookie  CookieSettings
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(svc userService, cookie CookieSettings) *UserHandler {
	if cookie.Name == "" {
		cookie.Name = "sid"
	}
	return &UserHandler{service: svc, cookie: cookie}
}

// List godoc
// @Summary List users
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.service.List(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// Create godoc
// @Summary Create user
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body dto.CreateUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid user payload"))
		return
	}

	user, err := h.service.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Update godoc
// @Summary Update user
// @Description Self edits require currentPassword; admins editing others may only change full_name.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.UpdateUserRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid user payload"))
		return
	}

	user, err := h.service.Update(c.Request.Context(), middleware.CurrentUser(c), c.GetString(middleware.ContextTokenKey), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Delete godoc
// @Summary Delete user
// @Description Requires the caller's current password. Deleting the last administrator is refused.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.DeleteUserRequest true "Re-authentication"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	var req dto.DeleteUserRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}

	self, err := h.service.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), req.CurrentPassword)
	if err != nil {
		response.Error(c, err)
		return
	}
	if self {
		h.cookie.Clear(c)
	}
	response.NoContent(c)
}

// ActiveSessions godoc
// @Summary List users with live sessions
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/sessions [get]
func (h *UserHandler) ActiveSessions(c *gin.Context) {
	ids, err := h.service.ActiveSessions(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ids, nil)
}

// Kick godoc
// @Summary Terminate every session of a user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id}/sessions [delete]
func (h *UserHandler) Kick(c *gin.Context) {
	count, err := h.service.Kick(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.KickResponse{DeletedCount: count}, nil)
}
