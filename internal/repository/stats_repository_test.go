package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsTotals(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM papers").
		WillReturnRows(sqlmock.NewRows([]string{"papers", "downloads", "strands", "users"}).AddRow(12, 340, 4, 3))

	totals, err := repo.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, totals.TotalPapers)
	assert.Equal(t, int64(340), totals.TotalDownloads)
	assert.Equal(t, 4, totals.ActiveStrands)
	assert.Equal(t, 3, totals.RegisteredUsers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRecentUploads(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	now := time.Now()
	mock.ExpectQuery("ORDER BY p.created_at DESC LIMIT \\$1").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "strand", "download_count", "created_at"}).
			AddRow("p1", "Solar", "STEM", 3, now))

	rows, err := repo.RecentUploads(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "STEM", rows[0].Strand)
	assert.Equal(t, now, rows[0].PublishedDate)
}

func TestStatsDownloadsByStrand(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	mock.ExpectQuery("GROUP BY s.short ORDER BY downloads DESC").
		WillReturnRows(sqlmock.NewRows([]string{"strand", "downloads"}).AddRow("STEM", 30).AddRow("ABM", 10))

	rows, err := repo.DownloadsByStrand(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(30), rows[0].Downloads)
}
