package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/research-library-api/internal/models"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
	"github.com/noah-isme/research-library-api/pkg/password"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminFullName = "System Admin"
)

type authUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
	Create(ctx context.Context, user *models.User) error
}

type passwordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Compare(ctx context.Context, hash, plain string) error
}

// AuthService implements login, logout and session expiry reporting.
type AuthService struct {
	users     authUserRepository
	throttle  *LoginThrottle
	sessions  *SessionService
	audit     *AuditService
	hasher    passwordHasher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService.
func NewAuthService(users authUserRepository, throttle *LoginThrottle, sessions *SessionService, audit *AuditService, hasher passwordHasher, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		users:     users,
		throttle:  throttle,
		sessions:  sessions,
		audit:     audit,
		hasher:    hasher,
		validator: validate,
		logger:    logger,
	}
}

// Login verifies credentials behind the login throttle and opens a session.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if strings.TrimSpace(req.DeviceID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "deviceId is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "username and password are required")
	}

	if err := s.throttle.Check(ctx, req.DeviceID, req.Username); err != nil {
		s.logger.Info("login locked out", zap.String("username", req.Username), zap.String("ip", req.IP))
		return nil, err
	}

	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.fail(ctx, req)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := s.hasher.Compare(ctx, user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, s.fail(ctx, req)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify password")
	}

	if err := s.throttle.Reset(ctx, req.DeviceID, req.Username); err != nil {
		s.logger.Warn("failed to clear login attempts", zap.String("username", user.Username), zap.Error(err))
	}

	snapshot := user.Snapshot()
	token, err := s.sessions.Create(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &snapshot, models.ActionLogin, user.DisplayName(), "Successful login")
	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("ip", req.IP), zap.String("user_agent", req.UserAgent))

	return &models.LoginResponse{
		Token:     token,
		ExpiresIn: int64(s.sessions.IdleTimeout().Seconds()),
		User:      snapshot,
	}, nil
}

func (s *AuthService) fail(ctx context.Context, req models.LoginRequest) error {
	if _, err := s.throttle.RecordFailure(ctx, req.DeviceID, req.Username); err != nil {
		s.logger.Warn("failed to record login failure", zap.String("username", req.Username), zap.Error(err))
	}
	return appErrors.ErrInvalidCredentials
}

// Logout records the logout and then destroys the session.
func (s *AuthService) Logout(ctx context.Context, caller *models.SessionUser, token string) error {
	if IsAuthenticated(caller) {
		name := performedBy(caller)
		s.audit.Record(ctx, caller, models.ActionLogout, name, "Manual session termination")
	}
	return s.sessions.Destroy(ctx, token)
}

// ReportExpiry logs a timed-out session using identity hints sent by the client.
func (s *AuthService) ReportExpiry(ctx context.Context, report models.ExpiryReport) {
	actor := firstNonEmpty(report.FullName, report.Username, systemActor)
	target := firstNonEmpty(report.FullName, report.Username, "Self")
	s.audit.RecordAs(ctx, actor, models.ActionLogout, target, "Session expired due to inactivity")
}

// SeedAdmin creates the default administrator when no admin account exists.
func (s *AuthService) SeedAdmin(ctx context.Context, defaultPassword string) (bool, error) {
	admins, err := s.users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count admins")
	}
	if admins > 0 {
		return false, nil
	}
	if defaultPassword == "" {
		defaultPassword = defaultAdminUsername
	}

	hash, err := s.hasher.Hash(ctx, defaultPassword)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	admin := &models.User{
		ID:           uuid.NewString(),
		Username:     defaultAdminUsername,
		PasswordHash: hash,
		FullName:     defaultAdminFullName,
		Role:         models.RoleAdmin,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create default admin")
	}
	s.logger.Warn("default admin account created, change its password immediately", zap.String("username", admin.Username))
	return true, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
