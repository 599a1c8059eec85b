package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/research-library-api/internal/models"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
)

const (
	statsCachePattern   = "stats:*"
	publicStatsCacheKey = "stats:public"
	recentUploadsLimit  = 5
	defaultLibrarySince = 2020
)

type statsRepository interface {
	Totals(ctx context.Context) (models.DashboardTotals, error)
	RecentUploads(ctx context.Context, limit int) ([]models.RecentUpload, error)
	SchoolYearDistribution(ctx context.Context) ([]models.SchoolYearCount, error)
	DownloadsByStrand(ctx context.Context) ([]models.StrandDownloads, error)
}

// StatsService computes the landing page and dashboard statistics.
type StatsService struct {
	repo    statsRepository
	cache   *CacheService
	metrics *MetricsService
	since   int
	ttl     time.Duration
	logger  *zap.Logger
}

// NewStatsService constructs a StatsService.
func NewStatsService(repo statsRepository, cache *CacheService, metrics *MetricsService, since int, ttl time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if since <= 0 {
		since = defaultLibrarySince
	}
	return &StatsService{repo: repo, cache: cache, metrics: metrics, since: since, ttl: ttl, logger: logger}
}

// Public returns the landing page counters, served from cache when possible.
func (s *StatsService) Public(ctx context.Context) (*models.PublicStats, bool, error) {
	var cached models.PublicStats
	if s.cache.Get(ctx, publicStatsCacheKey, &cached) {
		return &cached, true, nil
	}

	totals, err := s.totals(ctx)
	if err != nil {
		return nil, false, err
	}
	stats := &models.PublicStats{
		Papers:    totals.TotalPapers,
		Downloads: totals.TotalDownloads,
		Strands:   totals.ActiveStrands,
		Since:     s.since,
	}
	s.cache.Set(ctx, publicStatsCacheKey, stats, s.ttl)
	return stats, false, nil
}

// Dashboard aggregates every dashboard widget. Trends are reported as zero.
func (s *StatsService) Dashboard(ctx context.Context, caller *models.SessionUser) (*models.DashboardStats, error) {
	if err := Authorize(caller, ActionReadDashboard); err != nil {
		return nil, err
	}

	totals, err := s.totals(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	recent, err := s.repo.RecentUploads(ctx, recentUploadsLimit)
	s.metrics.ObserveDBQuery("stats_recent_uploads", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent uploads")
	}

	start = time.Now()
	years, err := s.repo.SchoolYearDistribution(ctx)
	s.metrics.ObserveDBQuery("stats_school_years", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school year distribution")
	}

	start = time.Now()
	downloads, err := s.repo.DownloadsByStrand(ctx)
	s.metrics.ObserveDBQuery("stats_downloads_by_strand", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load downloads by strand")
	}

	if recent == nil {
		recent = []models.RecentUpload{}
	}
	if years == nil {
		years = []models.SchoolYearCount{}
	}
	if downloads == nil {
		downloads = []models.StrandDownloads{}
	}
	return &models.DashboardStats{
		Stats:                  totals,
		RecentUploads:          recent,
		SchoolYearDistribution: years,
		DownloadsByStrand:      downloads,
	}, nil
}

func (s *StatsService) totals(ctx context.Context) (models.DashboardTotals, error) {
	start := time.Now()
	totals, err := s.repo.Totals(ctx)
	s.metrics.ObserveDBQuery("stats_totals", time.Since(start))
	if err != nil {
		return models.DashboardTotals{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load statistics")
	}
	return totals, nil
}
