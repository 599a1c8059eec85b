package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/research-library-api/internal/models"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
	"github.com/noah-isme/research-library-api/pkg/logger"
	"github.com/noah-isme/research-library-api/pkg/response"
)

// Context keys populated by the session middleware.
const (
	ContextUserKey  = "currentUser"
	ContextTokenKey = "sessionToken"
)

// SessionResolver resolves a token to the session snapshot, refreshing its idle timer.
type SessionResolver interface {
	Current(ctx context.Context, token string) (*models.SessionUser, error)
}

// SessionCookie describes the HttpOnly cookie carrying the session token. MaxAge is the
// idle timeout; the cookie is re-issued with it on every authenticated request.
type SessionCookie struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// Set writes token with the given lifetime.
func (sc SessionCookie) Set(c *gin.Context, token string, maxAge time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sc.Name, token, int(maxAge/time.Second), "/", "", sc.Secure, true)
}

// Clear expires the cookie in the browser.
func (sc SessionCookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sc.Name, "", -1, "/", "", sc.Secure, true)
}

// refresh re-issues the cookie when the request authenticated with it, so the browser
// expiry rolls together with the server-side idle timer.
func (sc SessionCookie) refresh(c *gin.Context, token string) {
	if sc.Name == "" || sc.MaxAge <= 0 {
		return
	}
	if value, err := c.Cookie(sc.Name); err != nil || value != token {
		return
	}
	sc.Set(c, token, sc.MaxAge)
}

// RequireSession rejects requests without a live session.
func RequireSession(sessions SessionResolver, cookie SessionCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c, cookie.Name)
		if token == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}

		user, err := sessions.Current(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			return
		}

		attach(c, user, token)
		cookie.refresh(c, token)
		c.Next()
	}
}

// OptionalSession attaches the session when present but never blocks.
func OptionalSession(sessions SessionResolver, cookie SessionCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := SessionToken(c, cookie.Name); token != "" {
			if user, err := sessions.Current(c.Request.Context(), token); err == nil {
				attach(c, user, token)
				cookie.refresh(c, token)
			}
		}
		c.Next()
	}
}

// SessionToken reads the session cookie, falling back to a Bearer header.
func SessionToken(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// CurrentUser returns the snapshot attached by the session middleware.
func CurrentUser(c *gin.Context) *models.SessionUser {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.SessionUser)
	if !ok {
		return nil
	}
	return user
}

func attach(c *gin.Context, user *models.SessionUser, token string) {
	c.Set(ContextUserKey, user)
	c.Set(ContextTokenKey, token)
	c.Set(logger.ContextUserIDKey, user.ID)
}
