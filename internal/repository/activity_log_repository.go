package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/research-library-api/internal/models"
)

// ActivityLogRepository stores the append-only audit trail.
type ActivityLogRepository struct {
	db *sqlx.DB
}

// NewActivityLogRepository constructs the repository.
func NewActivityLogRepository(db *sqlx.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// Insert appends one entry.
func (r *ActivityLogRepository) Insert(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	const query = `INSERT INTO activity_logs (id, "timestamp", performed_by, action_type, target_item, change_details) VALUES (:id, :timestamp, :performed_by, :action_type, :target_item, :change_details)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

// ListSince returns up to limit entries newer than since, newest first.
func (r *ActivityLogRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]models.ActivityLog, error) {
	const query = `SELECT id, "timestamp", performed_by, action_type, target_item, change_details FROM activity_logs WHERE "timestamp" >= $1 ORDER BY "timestamp" DESC LIMIT $2`
	var logs []models.ActivityLog
	if err := r.db.SelectContext(ctx, &logs, query, since, limit); err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	return logs, nil
}

// DeleteByIDs removes the given entries and reports how many existed.
func (r *ActivityLogRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM activity_logs WHERE id::text = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete activity logs: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOlderThan enforces the retention window.
func (r *ActivityLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM activity_logs WHERE "timestamp" < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge activity logs: %w", err)
	}
	return res.RowsAffected()
}
