package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/research-library-api/internal/models"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
)

type loginAttemptRepository interface {
	Find(ctx context.Context, deviceID, username string) (*models.LoginAttempt, error)
	RecordFailure(ctx context.Context, deviceID, username string, now, graceCutoff time.Time) (*models.LoginAttempt, error)
	Delete(ctx context.Context, deviceID, username string) error
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// ThrottleConfig holds the lockout thresholds.
type ThrottleConfig struct {
	MaxAttempts   int
	LockoutWindow time.Duration
	GracePeriod   time.Duration
}

// LoginThrottle limits failed logins per (device, username) pair.
//
// Lockout and grace are evaluated independently: a pair with MaxAttempts or more
// failures whose last failure is younger than LockoutWindow is rejected. A failure
// arriving more than GracePeriod after the previous one restarts the counter at 1.
type LoginThrottle struct {
	repo    loginAttemptRepository
	cfg     ThrottleConfig
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewLoginThrottle constructs a throttle. Zero thresholds fall back to 3 tries, 60s and 10m.
func NewLoginThrottle(repo loginAttemptRepository, cfg ThrottleConfig, metrics *MetricsService, logger *zap.Logger) *LoginThrottle {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.LockoutWindow <= 0 {
		cfg.LockoutWindow = time.Minute
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginThrottle{repo: repo, cfg: cfg, metrics: metrics, logger: logger, now: time.Now}
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Check rejects the attempt with a rate limit error while the pair is locked out.
func (t *LoginThrottle) Check(ctx context.Context, deviceID, username string) error {
	record, err := t.repo.Find(ctx, deviceID, normalizeUsername(username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load login attempts")
	}

	elapsed := t.now().Sub(record.LastAttempt)
	if record.Attempts < t.cfg.MaxAttempts || elapsed >= t.cfg.LockoutWindow {
		return nil
	}

	remaining := (t.cfg.LockoutWindow - elapsed).Milliseconds()
	retryAfter := int((remaining + 999) / 1000)
	if retryAfter < 1 {
		retryAfter = 1
	}
	t.metrics.RecordLoginAttempt(LoginOutcomeLocked)
	return appErrors.RateLimited(retryAfter, fmt.Sprintf("too many failed attempts, try again in %d seconds", retryAfter))
}

// RecordFailure bumps the failure counter, restarting it when the grace period has elapsed.
func (t *LoginThrottle) RecordFailure(ctx context.Context, deviceID, username string) (int, error) {
	now := t.now()
	record, err := t.repo.RecordFailure(ctx, deviceID, normalizeUsername(username), now, now.Add(-t.cfg.GracePeriod))
	t.metrics.RecordLoginAttempt(LoginOutcomeFailure)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record login attempt")
	}
	return record.Attempts, nil
}

// Reset clears the pair after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, deviceID, username string) error {
	t.metrics.RecordLoginAttempt(LoginOutcomeSuccess)
	if err := t.repo.Delete(ctx, deviceID, normalizeUsername(username)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset login attempts")
	}
	return nil
}

// PurgeStale removes records older than the grace period; they can no longer lock anyone out.
func (t *LoginThrottle) PurgeStale(ctx context.Context) (int64, error) {
	cutoff := t.now().Add(-t.cfg.GracePeriod)
	if lockCutoff := t.now().Add(-t.cfg.LockoutWindow); lockCutoff.Before(cutoff) {
		cutoff = lockCutoff
	}
	removed, err := t.repo.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		t.logger.Debug("purged stale login attempts", zap.Int64("count", removed))
	}
	return removed, nil
}
