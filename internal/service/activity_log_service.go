package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/research-library-api/internal/models"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
	"github.com/noah-isme/research-library-api/pkg/export"
)

const (
	activityLogListLimit   = 100
	activityLogExportLimit = 10000
	defaultLogRetention    = 365 * 24 * time.Hour
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type activityLogRepository interface {
	ListSince(ctx context.Context, since time.Time, limit int) ([]models.ActivityLog, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportedFile is a rendered activity log export.
type ExportedFile struct {
	Content     []byte
	ContentType string
	FileName    string
}

// ActivityLogService exposes the audit trail to administrators.
type ActivityLogService struct {
	repo      activityLogRepository
	audit     *AuditService
	csv       csvRenderer
	pdf       pdfRenderer
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewActivityLogService constructs an ActivityLogService.
func NewActivityLogService(repo activityLogRepository, audit *AuditService, retention time.Duration, logger *zap.Logger) *ActivityLogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention <= 0 {
		retention = defaultLogRetention
	}
	return &ActivityLogService{
		repo:      repo,
		audit:     audit,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns the newest entries still inside the retention window.
func (s *ActivityLogService) List(ctx context.Context, caller *models.SessionUser) ([]models.ActivityLog, error) {
	if err := Authorize(caller, ActionReadActivityLogs); err != nil {
		return nil, err
	}
	return s.listSince(ctx, activityLogListLimit)
}

// Delete removes the listed entries and records the deletion itself.
func (s *ActivityLogService) Delete(ctx context.Context, caller *models.SessionUser, ids []string) (int64, error) {
	if err := Authorize(caller, ActionDeleteActivityLogs); err != nil {
		return 0, err
	}
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "no log IDs provided")
	}

	deleted, err := s.repo.DeleteByIDs(ctx, cleaned)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete activity logs")
	}
	s.audit.Record(ctx, caller, models.ActionDeletedLogs, systemActor, fmt.Sprintf("Permanently removed %d activity logs", deleted))
	return deleted, nil
}

// Purge drops entries older than the retention window.
func (s *ActivityLogService) Purge(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	removed, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge activity logs")
	}
	if removed > 0 {
		s.logger.Info("purged expired activity logs", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}

// Export renders the retained trail as CSV or PDF.
func (s *ActivityLogService) Export(ctx context.Context, caller *models.SessionUser, format string) (*ExportedFile, error) {
	if err := Authorize(caller, ActionExportActivityLogs); err != nil {
		return nil, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	logs, err := s.listSince(ctx, activityLogExportLimit)
	if err != nil {
		return nil, err
	}
	dataset := activityLogDataset(logs)
	stamp := s.now().UTC().Format("20060102-150405")

	var (
		content     []byte
		contentType string
	)
	switch format {
	case ExportFormatPDF:
		content, err = s.pdf.Render(dataset, "Activity Logs")
		contentType = "application/pdf"
	default:
		content, err = s.csv.Render(dataset)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportedFile{
		Content:     content,
		ContentType: contentType,
		FileName:    fmt.Sprintf("activity-logs-%s.%s", stamp, format),
	}, nil
}

func (s *ActivityLogService) listSince(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	logs, err := s.repo.ListSince(ctx, s.now().Add(-s.retention), limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activity logs")
	}
	if logs == nil {
		logs = []models.ActivityLog{}
	}
	return logs, nil
}

func activityLogDataset(logs []models.ActivityLog) export.Dataset {
	rows := make([]map[string]string, 0, len(logs))
	for _, entry := range logs {
		rows = append(rows, map[string]string{
			"timestamp": entry.Timestamp.UTC().Format(time.RFC3339),
			"by":        entry.PerformedBy,
			"action":    entry.ActionType,
			"target":    entry.TargetItem,
			"details":   entry.ChangeDetails,
		})
	}
	return export.Dataset{
		Columns: []export.Column{
			{Key: "timestamp", Title: "Timestamp", Width: 2},
			{Key: "by", Title: "Performed By", Width: 1.5},
			{Key: "action", Title: "Action", Width: 1.5},
			{Key: "target", Title: "Target", Width: 2},
			{Key: "details", Title: "Details", Width: 4},
		},
		Rows: rows,
	}
}
