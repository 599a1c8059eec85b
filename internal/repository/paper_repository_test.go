package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/research-library-api/internal/models"
)

var paperRowColumns = []string{"id", "title", "authors", "abstract", "keywords", "adviser", "school_year", "grade_section",
	"strand_id", "is_featured", "download_count", "pdf_path", "created_at", "updated_at"}

func TestPaperFindByIDDecorates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(append(append([]string{}, paperRowColumns...), "strand", "strand_name")).
		AddRow("p1", "Solar Cells", []byte(`[{"firstName":"Ana","lastName":"Cruz"},{"firstName":"Ben","lastName":"Reyes"}]`),
			"abs", "{solar,energy}", "Dr. X", "2024-2025", "12-A", "s1", true, 4, "Solar Cells.pdf", now, now, "STEM", "Science")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.id = $1")).WithArgs("p1").WillReturnRows(rows)

	paper, err := repo.FindByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "STEM", paper.Strand)
	assert.Equal(t, "Cruz, A. & Reyes, B.", paper.AuthorDisplay)
	assert.Equal(t, pq.StringArray{"solar", "energy"}, paper.Keywords)
	assert.Equal(t, now, paper.PublishedDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaperListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	featured := true
	mock.ExpectQuery(`ORDER BY p.created_at DESC LIMIT 50 OFFSET 0`).
		WithArgs("%solar%", "stem", true).
		WillReturnRows(sqlmock.NewRows(append(append([]string{}, paperRowColumns...), "strand", "strand_name")))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM papers p`).
		WithArgs("%solar%", "stem", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	papers, total, err := repo.List(context.Background(), models.PaperFilter{Search: "Solar", Strand: "stem", Featured: &featured})
	require.NoError(t, err)
	assert.Empty(t, papers)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaperIncrementDownloadsIsSingleStatement(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SET download_count = p.download_count + 1 WHERE p.id = $1 RETURNING")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(paperRowColumns).
			AddRow("p1", "Solar", []byte(`[]`), "abs", "{}", "adv", "2024", "12-A", "s1", false, 8, "Solar.pdf", now, now))

	paper, err := repo.IncrementDownloads(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), paper.DownloadCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaperIncrementDownloadsMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectQuery("SET download_count").WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.IncrementDownloads(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPaperCountByStrand(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaperRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM papers WHERE strand_id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountByStrand(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
