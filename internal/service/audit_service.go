package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/research-library-api/internal/models"
	"github.com/noah-isme/research-library-api/pkg/jobs"
)

const (
	activityLogJobType = "activity_log"
	systemActor        = "System"
)

type activityLogWriter interface {
	Insert(ctx context.Context, entry *models.ActivityLog) error
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

// AuditService appends activity log entries. Writes are best-effort: failures reach the
// operator log and metrics but never the caller.
type AuditService struct {
	repo    activityLogWriter
	queue   jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuditService constructs the writer. Without a queue every entry is written inline.
func NewAuditService(repo activityLogWriter, metrics *MetricsService, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, metrics: metrics, logger: logger, now: time.Now}
}

// UseQueue routes subsequent writes through q.
func (s *AuditService) UseQueue(q jobEnqueuer) {
	s.queue = q
}

// Record writes an entry attributed to caller's current display name.
func (s *AuditService) Record(ctx context.Context, caller *models.SessionUser, actionType, target, details string) {
	s.RecordAs(ctx, performedBy(caller), actionType, target, details)
}

// RecordAs writes an entry with an explicit actor label.
func (s *AuditService) RecordAs(ctx context.Context, actor, actionType, target, details string) {
	if actor == "" {
		actor = systemActor
	}
	entry := &models.ActivityLog{
		ID:            uuid.NewString(),
		Timestamp:     s.now().UTC(),
		PerformedBy:   actor,
		ActionType:    actionType,
		TargetItem:    target,
		ChangeDetails: details,
	}

	if s.queue != nil {
		err := s.queue.TryEnqueue(jobs.Job{ID: entry.ID, Type: activityLogJobType, Payload: entry})
		if err == nil {
			return
		}
		s.logger.Debug("activity log queue unavailable, writing inline", zap.Error(err))
	}

	if err := s.Handle(context.WithoutCancel(ctx), jobs.Job{ID: entry.ID, Type: activityLogJobType, Payload: entry}); err != nil {
		s.metrics.RecordAuditWrite(false)
		s.logger.Warn("activity log write failed",
			zap.String("action", actionType),
			zap.String("target", target),
			zap.Error(err),
		)
	}
}

// Handle persists one queued entry. It is the worker handler for the activity log queue.
func (s *AuditService) Handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.ActivityLog)
	if !ok {
		s.metrics.RecordAuditWrite(false)
		s.logger.Error("unexpected activity log payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return err
	}
	s.metrics.RecordAuditWrite(true)
	return nil
}

// Dropped is the queue failure hook for entries that exhausted their retries.
func (s *AuditService) Dropped(job jobs.Job, err error) {
	s.metrics.RecordAuditWrite(false)
	if entry, ok := job.Payload.(*models.ActivityLog); ok {
		s.logger.Warn("activity log entry dropped",
			zap.String("action", entry.ActionType),
			zap.String("target", entry.TargetItem),
			zap.Error(err),
		)
	}
}

func performedBy(caller *models.SessionUser) string {
	if caller == nil {
		return systemActor
	}
	if caller.FullName != "" {
		return caller.FullName
	}
	if caller.Username != "" {
		return caller.Username
	}
	return systemActor
}
