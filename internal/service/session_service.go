package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/research-library-api/internal/models"
	"github.com/noah-isme/research-library-api/internal/repository"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
)

// SessionStore persists opaque session blobs keyed by token with an idle TTL.
type SessionStore interface {
	Get(ctx context.Context, token string) ([]byte, error)
	Set(ctx context.Context, token string, blob []byte, ttl time.Duration) error
	Touch(ctx context.Context, token string, blob []byte, ttl time.Duration) error
	Delete(ctx context.Context, token string) error
	Scan(ctx context.Context, fn func(token string, blob []byte) error) error
}

const sessionTokenBytes = 32

// SessionService manages server-side sessions. Each session embeds a snapshot of the
// user taken at login; later profile edits do not touch live sessions.
type SessionService struct {
	store       SessionStore
	idleTimeout time.Duration
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewSessionService constructs the session manager.
func NewSessionService(store SessionStore, idleTimeout time.Duration, metrics *MetricsService, logger *zap.Logger) *SessionService {
	if idleTimeout <= 0 {
		idleTimeout = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{store: store, idleTimeout: idleTimeout, metrics: metrics, logger: logger, now: time.Now}
}

// IdleTimeout reports the rolling expiry applied to every session.
func (s *SessionService) IdleTimeout() time.Duration {
	return s.idleTimeout
}

// Create opens a session for user and returns its token.
func (s *SessionService) Create(ctx context.Context, user models.SessionUser) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	now := s.now().UTC()
	blob, err := json.Marshal(models.Session{User: user, CreatedAt: now, LastActivity: now})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode session")
	}
	if err := s.store.Set(ctx, token, blob, s.idleTimeout); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store session")
	}
	return token, nil
}

// Current resolves token to its user snapshot, stamps the activity time and extends the idle expiry.
func (s *SessionService) Current(ctx context.Context, token string) (*models.SessionUser, error) {
	if token == "" {
		return nil, appErrors.ErrUnauthorized
	}
	blob, err := s.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, appErrors.ErrUnauthorized
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load session")
	}

	var session models.Session
	if err := json.Unmarshal(blob, &session); err != nil || session.User.ID == "" {
		s.logger.Warn("dropping corrupt session", zap.Error(err))
		_ = s.store.Delete(ctx, token)
		return nil, appErrors.ErrUnauthorized
	}

	session.LastActivity = s.now().UTC()
	refreshed, err := json.Marshal(session)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode session")
	}
	if err := s.store.Touch(ctx, token, refreshed, s.idleTimeout); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, appErrors.ErrUnauthorized
		}
		s.logger.Warn("failed to refresh session expiry", zap.Error(err))
	}
	return &session.User, nil
}

// Destroy ends the session. Unknown tokens are ignored.
func (s *SessionService) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.Delete(ctx, token); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to destroy session")
	}
	return nil
}

// ListActiveUserIDs returns the distinct ids of users holding at least one live session.
func (s *SessionService) ListActiveUserIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	live := 0
	err := s.store.Scan(ctx, func(token string, blob []byte) error {
		user, ok := s.decode(blob)
		if !ok {
			return nil
		}
		live++
		if _, dup := seen[user.ID]; !dup {
			seen[user.ID] = struct{}{}
			ids = append(ids, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list sessions")
	}
	s.metrics.SetActiveSessions(live)
	return ids, nil
}

// DestroyAllForUser removes every session owned by userID except the listed tokens and
// returns how many were removed.
func (s *SessionService) DestroyAllForUser(ctx context.Context, userID string, except ...string) (int, error) {
	keep := make(map[string]struct{}, len(except))
	for _, token := range except {
		keep[token] = struct{}{}
	}

	userID = models.NormalizeUserID(userID)
	var victims []string
	err := s.store.Scan(ctx, func(token string, blob []byte) error {
		if _, skip := keep[token]; skip {
			return nil
		}
		if user, ok := s.decode(blob); ok && models.NormalizeUserID(user.ID) == userID {
			victims = append(victims, token)
		}
		return nil
	})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to scan sessions")
	}

	removed := 0
	for _, token := range victims {
		if err := s.store.Delete(ctx, token); err != nil {
			return removed, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to destroy session")
		}
		removed++
	}
	return removed, nil
}

func (s *SessionService) decode(blob []byte) (models.SessionUser, bool) {
	var session models.Session
	if err := json.Unmarshal(blob, &session); err != nil || session.User.ID == "" {
		return models.SessionUser{}, false
	}
	return session.User, true
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
