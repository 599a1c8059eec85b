package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/research-library-api/internal/models"
)

const strandColumns = `id, short, name, description, icon, created_at, updated_at`

// StrandRepository manages strand persistence.
type StrandRepository struct {
	db *sqlx.DB
}

// NewStrandRepository constructs the repository.
func NewStrandRepository(db *sqlx.DB) *StrandRepository {
	return &StrandRepository{db: db}
}

// ListSummaries returns strands with paper counts and downloads, ordered by acronym.
func (r *StrandRepository) ListSummaries(ctx context.Context) ([]models.StrandSummary, error) {
	const query = `SELECT s.id, s.short, s.name, s.description, s.icon, s.created_at, s.updated_at,
	COUNT(p.id) AS paper_count,
	COALESCE(SUM(p.download_count), 0) AS total_downloads
FROM strands s
LEFT JOIN papers p ON p.strand_id = s.id
GROUP BY s.id
ORDER BY s.short ASC`
	var strands []models.StrandSummary
	if err := r.db.SelectContext(ctx, &strands, query); err != nil {
		return nil, fmt.Errorf("list strands: %w", err)
	}
	return strands, nil
}

// FindByID returns a strand by identifier.
func (r *StrandRepository) FindByID(ctx context.Context, id string) (*models.Strand, error) {
	const query = `SELECT ` + strandColumns + ` FROM strands WHERE id = $1`
	var strand models.Strand
	if err := r.db.GetContext(ctx, &strand, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find strand: %w", err)
	}
	return &strand, nil
}

// FindByShort resolves a strand by acronym, ignoring case.
func (r *StrandRepository) FindByShort(ctx context.Context, short string) (*models.Strand, error) {
	const query = `SELECT ` + strandColumns + ` FROM strands WHERE UPPER(short) = UPPER($1)`
	var strand models.Strand
	if err := r.db.GetContext(ctx, &strand, query, short); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find strand by short: %w", err)
	}
	return &strand, nil
}

// ShortTaken reports whether another strand uses the acronym. excludeID may be empty.
func (r *StrandRepository) ShortTaken(ctx context.Context, short, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM strands WHERE UPPER(short) = UPPER($1) AND ($2 = '' OR id::text <> $2))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, short, excludeID); err != nil {
		return false, fmt.Errorf("check strand short: %w", err)
	}
	return exists, nil
}

// Count returns the number of strands.
func (r *StrandRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM strands`); err != nil {
		return 0, fmt.Errorf("count strands: %w", err)
	}
	return total, nil
}

// Create inserts a strand.
func (r *StrandRepository) Create(ctx context.Context, strand *models.Strand) error {
	if strand.ID == "" {
		strand.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	strand.CreatedAt = now
	strand.UpdatedAt = now

	const query = `INSERT INTO strands (id, short, name, description, icon, created_at, updated_at) VALUES (:id, :short, :name, :description, :icon, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, strand); err != nil {
		return fmt.Errorf("create strand: %w", err)
	}
	return nil
}

// Update persists mutable strand fields.
func (r *StrandRepository) Update(ctx context.Context, strand *models.Strand) error {
	strand.UpdatedAt = time.Now().UTC()
	const query = `UPDATE strands SET short = :short, name = :name, description = :description, icon = :icon, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, strand)
	if err != nil {
		return fmt.Errorf("update strand: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a strand row.
func (r *StrandRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM strands WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete strand: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
