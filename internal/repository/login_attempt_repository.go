package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/research-library-api/internal/models"
)

// LoginAttemptRepository persists failed login counters keyed by (device_id, username).
type LoginAttemptRepository struct {
	db *sqlx.DB
}

// NewLoginAttemptRepository constructs the repository.
func NewLoginAttemptRepository(db *sqlx.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// Find returns the counter for the pair or sql.ErrNoRows.
func (r *LoginAttemptRepository) Find(ctx context.Context, deviceID, username string) (*models.LoginAttempt, error) {
	const query = `SELECT device_id, username, attempts, last_attempt FROM login_attempts WHERE device_id = $1 AND username = $2`
	var attempt models.LoginAttempt
	if err := r.db.GetContext(ctx, &attempt, query, deviceID, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find login attempt: %w", err)
	}
	return &attempt, nil
}

// RecordFailure atomically increments the counter. When the previous failure is
// older than graceCutoff the counter restarts at 1.
func (r *LoginAttemptRepository) RecordFailure(ctx context.Context, deviceID, username string, now, graceCutoff time.Time) (*models.LoginAttempt, error) {
	const query = `INSERT INTO login_attempts (device_id, username, attempts, last_attempt)
VALUES ($1, $2, 1, $3)
ON CONFLICT (device_id, username) DO UPDATE SET
	attempts = CASE WHEN login_attempts.last_attempt < $4 THEN 1 ELSE login_attempts.attempts + 1 END,
	last_attempt = EXCLUDED.last_attempt
RETURNING device_id, username, attempts, last_attempt`
	var attempt models.LoginAttempt
	if err := r.db.GetContext(ctx, &attempt, query, deviceID, username, now, graceCutoff); err != nil {
		return nil, fmt.Errorf("record login failure: %w", err)
	}
	return &attempt, nil
}

// Delete clears the counter for the pair. Missing rows are not an error.
func (r *LoginAttemptRepository) Delete(ctx context.Context, deviceID, username string) error {
	const query = `DELETE FROM login_attempts WHERE device_id = $1 AND username = $2`
	if _, err := r.db.ExecContext(ctx, query, deviceID, username); err != nil {
		return fmt.Errorf("delete login attempt: %w", err)
	}
	return nil
}

// DeleteStale drops counters whose last failure predates cutoff.
func (r *LoginAttemptRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE last_attempt < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale login attempts: %w", err)
	}
	return res.RowsAffected()
}
