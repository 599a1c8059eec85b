package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/research-library-api/internal/models"
)

// StatsRepository runs the aggregate queries behind public and dashboard statistics.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

type totalsRow struct {
	Papers    int   `db:"papers"`
	Downloads int64 `db:"downloads"`
	Strands   int   `db:"strands"`
	Users     int   `db:"users"`
}

// Totals returns the headline counters in one round trip.
func (r *StatsRepository) Totals(ctx context.Context) (models.DashboardTotals, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM papers) AS papers,
	(SELECT COALESCE(SUM(download_count), 0) FROM papers) AS downloads,
	(SELECT COUNT(*) FROM strands) AS strands,
	(SELECT COUNT(*) FROM users) AS users`
	var row totalsRow
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return models.DashboardTotals{}, fmt.Errorf("stats totals: %w", err)
	}
	return models.DashboardTotals{
		TotalPapers:     row.Papers,
		TotalDownloads:  row.Downloads,
		ActiveStrands:   row.Strands,
		RegisteredUsers: row.Users,
	}, nil
}

// RecentUploads returns the newest papers.
func (r *StatsRepository) RecentUploads(ctx context.Context, limit int) ([]models.RecentUpload, error) {
	const query = `SELECT p.id, p.title, COALESCE(s.short, 'N/A') AS strand, p.download_count, p.created_at
FROM papers p LEFT JOIN strands s ON s.id = p.strand_id
ORDER BY p.created_at DESC LIMIT $1`
	var rows []models.RecentUpload
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("stats recent uploads: %w", err)
	}
	return rows, nil
}

// SchoolYearDistribution counts papers per school year.
func (r *StatsRepository) SchoolYearDistribution(ctx context.Context) ([]models.SchoolYearCount, error) {
	const query = `SELECT COALESCE(NULLIF(school_year, ''), 'Unknown') AS year, COUNT(*) AS count
FROM papers GROUP BY 1 ORDER BY 1 ASC`
	var rows []models.SchoolYearCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("stats school years: %w", err)
	}
	return rows, nil
}

// DownloadsByStrand sums downloads per strand, highest first.
func (r *StatsRepository) DownloadsByStrand(ctx context.Context) ([]models.StrandDownloads, error) {
	const query = `SELECT s.short AS strand, COALESCE(SUM(p.download_count), 0) AS downloads
FROM papers p JOIN strands s ON s.id = p.strand_id
GROUP BY s.short ORDER BY downloads DESC`
	var rows []models.StrandDownloads
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("stats downloads by strand: %w", err)
	}
	return rows, nil
}
