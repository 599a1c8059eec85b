package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/research-library-api/internal/models"
)

const paperColumns = `p.id, p.title, p.authors, p.abstract, p.keywords, p.adviser, p.school_year, p.grade_section,
	p.strand_id, p.is_featured, p.download_count, p.pdf_path, p.created_at, p.updated_at`

const paperViewSelect = `SELECT ` + paperColumns + `, COALESCE(s.short, '') AS strand, COALESCE(s.name, '') AS strand_name
FROM papers p
LEFT JOIN strands s ON s.id = p.strand_id`

// PaperRepository manages research paper rows.
type PaperRepository struct {
	db *sqlx.DB
}

// NewPaperRepository constructs the repository.
func NewPaperRepository(db *sqlx.DB) *PaperRepository {
	return &PaperRepository{db: db}
}

// List returns papers matching filter, newest first, with the total count.
func (r *PaperRepository) List(ctx context.Context, filter models.PaperFilter) ([]models.PaperView, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(`(LOWER(p.title) LIKE $%d OR LOWER(p.abstract) LIKE $%d OR LOWER(p.adviser) LIKE $%d OR LOWER(array_to_string(p.keywords, ' ')) LIKE $%d OR LOWER(p.authors::text) LIKE $%d)`, n, n, n, n, n))
	}
	if filter.Strand != "" {
		args = append(args, filter.Strand)
		conditions = append(conditions, fmt.Sprintf("UPPER(s.short) = UPPER($%d)", len(args)))
	}
	if filter.SchoolYear != "" {
		args = append(args, filter.SchoolYear)
		conditions = append(conditions, fmt.Sprintf("p.school_year = $%d", len(args)))
	}
	if filter.Featured != nil {
		args = append(args, *filter.Featured)
		conditions = append(conditions, fmt.Sprintf("p.is_featured = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("%s%s ORDER BY p.created_at DESC LIMIT %d OFFSET %d", paperViewSelect, where, pageSize, offset)
	var papers []models.PaperView
	if err := r.db.SelectContext(ctx, &papers, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list papers: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM papers p LEFT JOIN strands s ON s.id = p.strand_id" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count papers: %w", err)
	}

	for i := range papers {
		papers[i].Decorate()
	}
	return papers, total, nil
}

// FindByID returns a paper joined with its strand.
func (r *PaperRepository) FindByID(ctx context.Context, id string) (*models.PaperView, error) {
	query := paperViewSelect + ` WHERE p.id = $1`
	var paper models.PaperView
	if err := r.db.GetContext(ctx, &paper, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find paper: %w", err)
	}
	paper.Decorate()
	return &paper, nil
}

// PDFPathTaken reports whether any paper other than excludeID stores name.
func (r *PaperRepository) PDFPathTaken(ctx context.Context, name, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM papers WHERE pdf_path = $1 AND ($2 = '' OR id::text <> $2))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check pdf path: %w", err)
	}
	return exists, nil
}

// CountByStrand returns how many papers reference strandID.
func (r *PaperRepository) CountByStrand(ctx context.Context, strandID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM papers WHERE strand_id = $1`, strandID); err != nil {
		return 0, fmt.Errorf("count papers by strand: %w", err)
	}
	return total, nil
}

// Create inserts a paper.
func (r *PaperRepository) Create(ctx context.Context, paper *models.Paper) error {
	if paper.ID == "" {
		paper.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	paper.CreatedAt = now
	paper.UpdatedAt = now

	const query = `INSERT INTO papers (id, title, authors, abstract, keywords, adviser, school_year, grade_section, strand_id, is_featured, download_count, pdf_path, created_at, updated_at)
VALUES (:id, :title, :authors, :abstract, :keywords, :adviser, :school_year, :grade_section, :strand_id, :is_featured, :download_count, :pdf_path, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, paper); err != nil {
		return fmt.Errorf("create paper: %w", err)
	}
	return nil
}

// Update persists editable fields. The download counter is never written here.
func (r *PaperRepository) Update(ctx context.Context, paper *models.Paper) error {
	paper.UpdatedAt = time.Now().UTC()
	const query = `UPDATE papers SET title = :title, authors = :authors, abstract = :abstract, keywords = :keywords,
	adviser = :adviser, school_year = :school_year, grade_section = :grade_section, strand_id = :strand_id,
	is_featured = :is_featured, pdf_path = :pdf_path, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, paper)
	if err != nil {
		return fmt.Errorf("update paper: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementDownloads bumps the counter atomically and returns the updated row.
func (r *PaperRepository) IncrementDownloads(ctx context.Context, id string) (*models.Paper, error) {
	const query = `UPDATE papers p SET download_count = p.download_count + 1 WHERE p.id = $1 RETURNING ` + paperColumns
	var paper models.Paper
	if err := r.db.GetContext(ctx, &paper, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("increment downloads: %w", err)
	}
	return &paper, nil
}

// Delete removes a paper row.
func (r *PaperRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM papers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete paper: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
