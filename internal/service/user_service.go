package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/research-library-api/internal/dto"
	"github.com/noah-isme/research-library-api/internal/models"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
	"github.com/noah-isme/research-library-api/pkg/password"
)

type userRepository interface {
	List(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UsernameTaken(ctx context.Context, username, excludeID string) (bool, error)
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// UserService handles account management, including the self/admin rules and the
// cascades that follow a delete or a credential change.
type UserService struct {
	repo      userRepository
	sessions  *SessionService
	audit     *AuditService
	hasher    passwordHasher
	validator *validator.Validate
	logger    *zap.Logger

	// kickTimeout bounds the background session cleanup after a credential change.
	kickTimeout time.Duration
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, sessions *SessionService, audit *AuditService, hasher passwordHasher, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{
		repo:        repo,
		sessions:    sessions,
		audit:       audit,
		hasher:      hasher,
		validator:   validate,
		logger:      logger,
		kickTimeout: 10 * time.Second,
	}
}

// List returns every account without credentials.
func (s *UserService) List(ctx context.Context, caller *models.SessionUser) ([]dto.UserResponse, error) {
	if err := Authorize(caller, ActionListUsers); err != nil {
		return nil, err
	}
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	out := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, dto.NewUserResponse(&users[i]))
	}
	return out, nil
}

// Create adds an account. Only admins may create users.
func (s *UserService) Create(ctx context.Context, caller *models.SessionUser, req dto.CreateUserRequest) (*dto.UserResponse, error) {
	if err := Authorize(caller, ActionCreateUser); err != nil {
		return nil, err
	}
	req.Username = strings.TrimSpace(req.Username)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}
	if req.Role == "" {
		req.Role = models.RoleViewer
	}

	taken, err := s.repo.UsernameTaken(ctx, req.Username, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username uniqueness")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         req.Role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.audit.Record(ctx, caller, models.ActionAddedUser, user.FullName, fmt.Sprintf("Account created with '%s' role", user.Role))
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

// Update applies a profile edit. A self edit must be confirmed with the current password;
// an admin editing another account only changes the full name.
func (s *UserService) Update(ctx context.Context, caller *models.SessionUser, callerToken, id string, req dto.UpdateUserRequest) (*dto.UserResponse, error) {
	id = models.NormalizeUserID(id)
	if err := CanMutateUser(caller, id); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update user payload")
	}

	isSelf := models.SameUserID(caller.ID, id)
	if isSelf && req.CurrentPassword == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "current password is required")
	}
	if req.CurrentPassword != "" {
		if err := s.verifyActor(ctx, caller, req.CurrentPassword, "incorrect current password"); err != nil {
			return nil, err
		}
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	originalName := user.DisplayName()
	grant := EditableUserFields(caller, id)

	var changes []string
	credentialsChanged := false

	if grant.FullName && req.FullName != nil {
		if name := strings.TrimSpace(*req.FullName); name != "" && name != user.FullName {
			user.FullName = name
			changes = append(changes, "Full Name")
		}
	}
	if grant.Username && req.Username != nil {
		if username := strings.TrimSpace(*req.Username); username != "" && username != user.Username {
			taken, err := s.repo.UsernameTaken(ctx, username, user.ID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username uniqueness")
			}
			if taken {
				return nil, appErrors.Clone(appErrors.ErrConflict, "username taken")
			}
			user.Username = username
			changes = append(changes, "Username")
			credentialsChanged = true
		}
	}
	if grant.Role && req.Role != nil && *req.Role != "" && *req.Role != user.Role {
		user.Role = *req.Role
		changes = append(changes, "Role")
	}
	if grant.Password && req.Password != nil && *req.Password != "" {
		hash, err := s.hasher.Hash(ctx, *req.Password)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		user.PasswordHash = hash
		changes = append(changes, "Password")
		credentialsChanged = true
	}

	if len(changes) > 0 {
		if err := s.repo.Update(ctx, user); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
		}

		action, target := models.ActionEditedUserAccount, originalName
		if isSelf {
			action, target = models.ActionUpdatedProfile, "Self"
		}
		s.audit.Record(ctx, caller, action, target, "Modified: "+strings.Join(changes, ", "))

		if isSelf && credentialsChanged {
			s.kickOtherSessions(ctx, user.ID, callerToken)
		}
	}

	resp := dto.NewUserResponse(user)
	return &resp, nil
}

// Delete removes an account after re-authenticating the actor, then destroys every
// session of the deleted user. It reports whether the caller deleted themself.
func (s *UserService) Delete(ctx context.Context, caller *models.SessionUser, id, currentPassword string) (bool, error) {
	id = models.NormalizeUserID(id)
	if err := CanMutateUser(caller, id); err != nil {
		return false, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}
	if currentPassword == "" {
		return false, appErrors.Clone(appErrors.ErrValidation, "password verification required")
	}
	if err := s.verifyActor(ctx, caller, currentPassword, "incorrect password"); err != nil {
		return false, err
	}

	if user.Role == models.RoleAdmin {
		admins, err := s.repo.CountByRole(ctx, models.RoleAdmin)
		if err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count admins")
		}
		if admins <= 1 {
			return false, appErrors.Clone(appErrors.ErrForbidden, "cannot delete the only administrator account")
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	if _, err := s.sessions.DestroyAllForUser(ctx, id); err != nil {
		s.logger.Warn("failed to destroy sessions of deleted user", zap.String("user_id", id), zap.Error(err))
	}

	isSelf := models.SameUserID(caller.ID, id)
	details := "Administrative deletion"
	if isSelf {
		details = "Self-deletion"
	}
	s.audit.Record(ctx, caller, models.ActionDeletedUser, user.DisplayName(), details)
	return isSelf, nil
}

// ActiveSessions lists the ids of users that currently hold a session.
func (s *UserService) ActiveSessions(ctx context.Context, caller *models.SessionUser) ([]string, error) {
	if err := Authorize(caller, ActionListSessions); err != nil {
		return nil, err
	}
	return s.sessions.ListActiveUserIDs(ctx)
}

// Kick terminates every session of the target user.
func (s *UserService) Kick(ctx context.Context, caller *models.SessionUser, id string) (int, error) {
	id = models.NormalizeUserID(id)
	if err := CanMutateUser(caller, id); err != nil {
		return 0, err
	}
	removed, err := s.sessions.DestroyAllForUser(ctx, id)
	if err != nil {
		return 0, err
	}

	target := "User ID: " + id
	if user, err := s.repo.FindByID(ctx, id); err == nil {
		target = user.DisplayName()
	}
	s.audit.Record(ctx, caller, models.ActionKickedUser, target, "Administrative session termination")
	return removed, nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// verifyActor re-authenticates the caller against their stored password.
func (s *UserService) verifyActor(ctx context.Context, caller *models.SessionUser, plain, mismatch string) error {
	actor, err := s.repo.FindByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrUnauthorized
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if err := s.hasher.Compare(ctx, actor.PasswordHash, plain); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return appErrors.Clone(appErrors.ErrForbidden, mismatch)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify password")
	}
	return nil
}

func (s *UserService) kickOtherSessions(ctx context.Context, userID, keepToken string) {
	base := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(base, s.kickTimeout)
		defer cancel()
		removed, err := s.sessions.DestroyAllForUser(ctx, userID, keepToken)
		if err != nil {
			s.logger.Warn("failed to end other sessions after credential change", zap.String("user_id", userID), zap.Error(err))
			return
		}
		if removed > 0 {
			s.logger.Info("ended other sessions after credential change", zap.String("user_id", userID), zap.Int("count", removed))
		}
	}()
}
