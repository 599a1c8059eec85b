package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/research-library-api/internal/dto"
	"github.com/noah-isme/research-library-api/internal/models"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
	"github.com/noah-isme/research-library-api/pkg/storage"
)

const pdfContentType = "application/pdf"

type paperRepository interface {
	List(ctx context.Context, filter models.PaperFilter) ([]models.PaperView, int, error)
	FindByID(ctx context.Context, id string) (*models.PaperView, error)
	PDFPathTaken(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, paper *models.Paper) error
	Update(ctx context.Context, paper *models.Paper) error
	IncrementDownloads(ctx context.Context, id string) (*models.Paper, error)
	Delete(ctx context.Context, id string) error
}

type strandLookup interface {
	FindByShort(ctx context.Context, short string) (*models.Strand, error)
}

// PaperFile is an opened PDF ready to be streamed.
type PaperFile struct {
	Reader   io.ReadCloser
	Size     int64
	FileName string
}

// PaperService manages research papers and their PDFs.
type PaperService struct {
	repo        paperRepository
	strands     strandLookup
	files       storage.FileStore
	audit       *AuditService
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	maxFileSize int64
}

// NewPaperService constructs a PaperService. maxFileSize <= 0 disables the size check.
func NewPaperService(repo paperRepository, strands strandLookup, files storage.FileStore, audit *AuditService, cache *CacheService, maxFileSize int64, validate *validator.Validate, logger *zap.Logger) *PaperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PaperService{
		repo:        repo,
		strands:     strands,
		files:       files,
		audit:       audit,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		maxFileSize: maxFileSize,
	}
}

// List returns a page of papers with pagination metadata.
func (s *PaperService) List(ctx context.Context, query dto.PaperListQuery) ([]models.PaperView, *models.Pagination, error) {
	filter := models.PaperFilter{
		Search:     strings.TrimSpace(query.Search),
		Strand:     strings.TrimSpace(query.Strand),
		SchoolYear: strings.TrimSpace(query.SchoolYear),
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	if query.Featured != "" {
		featured, err := strconv.ParseBool(query.Featured)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "featured must be true or false")
		}
		filter.Featured = &featured
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 200 {
		filter.PageSize = 50
	}

	papers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list papers")
	}
	if papers == nil {
		papers = []models.PaperView{}
	}
	return papers, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one paper.
func (s *PaperService) Get(ctx context.Context, id string) (*models.PaperView, error) {
	return s.load(ctx, id)
}

// Create stores the PDF under a name derived from the title and inserts the paper.
func (s *PaperService) Create(ctx context.Context, caller *models.SessionUser, req dto.CreatePaperRequest) (*models.PaperView, error) {
	if err := Authorize(caller, ActionCreatePaper); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid paper payload")
	}
	if err := s.checkUpload(req.File); err != nil {
		return nil, err
	}

	authors, err := models.ParseAuthors(req.Authors)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid authors format")
	}
	strand, err := s.resolveStrand(ctx, req.Strand)
	if err != nil {
		return nil, err
	}

	name, err := s.freeFileName(ctx, storage.FileNameForTitle(req.Title), "", "")
	if err != nil {
		return nil, err
	}
	if err := s.files.Put(ctx, name, req.File.Reader, req.File.Size, pdfContentType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store pdf")
	}

	paper := &models.Paper{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Authors:      authors,
		Abstract:     req.Abstract,
		Keywords:     splitKeywords(req.Keywords),
		Adviser:      req.Adviser,
		SchoolYear:   req.SchoolYear,
		GradeSection: req.GradeSection,
		StrandID:     strand.ID,
		IsFeatured:   req.IsFeatured == "true",
		PDFPath:      name,
	}
	if err := s.repo.Create(ctx, paper); err != nil {
		s.removeFile(ctx, name)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create paper")
	}

	s.audit.Record(ctx, caller, models.ActionAddedPaper, paper.Title, "New research paper added to library")
	s.cache.Invalidate(ctx, statsCachePattern)
	return newPaperView(paper, strand), nil
}

// Update applies submitted fields and logs the diff against the stored paper.
func (s *PaperService) Update(ctx context.Context, caller *models.SessionUser, id string, req dto.UpdatePaperRequest) (*models.PaperView, error) {
	if err := Authorize(caller, ActionUpdatePaper); err != nil {
		return nil, err
	}
	if req.File != nil {
		if err := s.checkUpload(req.File); err != nil {
			return nil, err
		}
	}

	view, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	paper := view.Paper
	strandShort, strandName := view.Strand, view.StrandName
	originalTitle := paper.Title
	originalPath := paper.PDFPath

	var changes []string
	titleChanged := false

	if req.Title != nil {
		if title := strings.TrimSpace(*req.Title); title != "" && title != paper.Title {
			paper.Title = title
			titleChanged = true
			changes = append(changes, fmt.Sprintf("Title (changed to '%s')", title))
		}
	}
	if req.Abstract != nil && *req.Abstract != paper.Abstract {
		paper.Abstract = *req.Abstract
		changes = append(changes, "Abstract")
	}
	if req.Keywords != nil {
		keywords := splitKeywords(*req.Keywords)
		if sortedJoin(keywords) != sortedJoin(paper.Keywords) {
			paper.Keywords = keywords
			changes = append(changes, "Keywords")
		}
	}
	if req.Adviser != nil && *req.Adviser != paper.Adviser {
		paper.Adviser = *req.Adviser
		changes = append(changes, "Adviser")
	}
	if req.SchoolYear != nil && *req.SchoolYear != paper.SchoolYear {
		paper.SchoolYear = *req.SchoolYear
		changes = append(changes, "School Year")
	}
	if req.GradeSection != nil && *req.GradeSection != paper.GradeSection {
		paper.GradeSection = *req.GradeSection
		changes = append(changes, "Grade Section")
	}
	if req.IsFeatured != nil {
		if featured := *req.IsFeatured == "true"; featured != paper.IsFeatured {
			paper.IsFeatured = featured
			changes = append(changes, "Featured Status")
		}
	}
	if req.Strand != nil && strings.TrimSpace(*req.Strand) != "" {
		strand, err := s.resolveStrand(ctx, *req.Strand)
		if err != nil {
			return nil, err
		}
		if strand.ID != paper.StrandID {
			paper.StrandID = strand.ID
			strandShort, strandName = strand.Short, strand.Name
			changes = append(changes, "Strand")
		}
	}
	if req.Authors != nil && strings.TrimSpace(*req.Authors) != "" {
		authors, err := models.ParseAuthors(*req.Authors)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid authors format")
		}
		if !authors.Equal(paper.Authors) {
			paper.Authors = authors
			changes = append(changes, "Authors")
		}
	}

	var uploaded, renamedFrom string
	switch {
	case req.File != nil:
		name, err := s.freeFileName(ctx, storage.FileNameForTitle(paper.Title), paper.ID, originalPath)
		if err != nil {
			return nil, err
		}
		if err := s.files.Put(ctx, name, req.File.Reader, req.File.Size, pdfContentType); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store pdf")
		}
		uploaded = name
		paper.PDFPath = name
		changes = append(changes, "Pdf")
	case titleChanged && originalPath != "":
		if dest, ok := s.renameTarget(ctx, originalPath, paper.Title, paper.ID); ok {
			if err := s.files.Rename(ctx, originalPath, dest); err != nil {
				s.logger.Warn("failed to rename pdf after title change", zap.String("from", originalPath), zap.String("to", dest), zap.Error(err))
			} else {
				renamedFrom = originalPath
				paper.PDFPath = dest
			}
		}
	}

	if err := s.repo.Update(ctx, &paper); err != nil {
		switch {
		case uploaded != "" && uploaded != originalPath:
			s.removeFile(ctx, uploaded)
		case renamedFrom != "":
			if rerr := s.files.Rename(ctx, paper.PDFPath, renamedFrom); rerr != nil {
				s.logger.Warn("failed to restore pdf name", zap.String("name", paper.PDFPath), zap.Error(rerr))
			}
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update paper")
	}

	if uploaded != "" && originalPath != "" && originalPath != uploaded {
		s.removeFile(ctx, originalPath)
	}

	details := "Updated details"
	if len(changes) > 0 {
		details = "Edited: " + strings.Join(changes, ", ")
	}
	s.audit.Record(ctx, caller, models.ActionEditedPaper, originalTitle, details)
	s.cache.Invalidate(ctx, statsCachePattern)

	out := &models.PaperView{Paper: paper, Strand: strandShort, StrandName: strandName}
	out.Decorate()
	return out, nil
}

// Delete removes the PDF, tolerating a missing file, and then the paper row.
func (s *PaperService) Delete(ctx context.Context, caller *models.SessionUser, id string) error {
	if err := Authorize(caller, ActionDeletePaper); err != nil {
		return err
	}
	view, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if view.PDFPath != "" {
		s.removeFile(ctx, view.PDFPath)
	}
	if err := s.repo.Delete(ctx, view.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "paper not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete paper")
	}

	s.audit.Record(ctx, caller, models.ActionDeletedPaper, view.Title, "Paper permanently removed from library")
	s.cache.Invalidate(ctx, statsCachePattern)
	return nil
}

// OpenPDF opens the stored file. Downloads bump the counter before the file is read;
// inline views do not count.
func (s *PaperService) OpenPDF(ctx context.Context, id string, download bool) (*PaperFile, error) {
	var paper *models.Paper
	if download {
		updated, err := s.repo.IncrementDownloads(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record download")
		}
		paper = updated
	} else {
		view, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load paper")
		}
		paper = &view.Paper
	}

	if paper.PDFPath == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	reader, size, err := s.files.Open(ctx, paper.PDFPath)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file missing on server")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to open pdf")
	}
	return &PaperFile{Reader: reader, Size: size, FileName: paper.Title + ".pdf"}, nil
}

func (s *PaperService) load(ctx context.Context, id string) (*models.PaperView, error) {
	view, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "paper not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load paper")
	}
	return view, nil
}

func (s *PaperService) resolveStrand(ctx context.Context, short string) (*models.Strand, error) {
	strand, err := s.strands.FindByShort(ctx, strings.ToUpper(strings.TrimSpace(short)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid strand")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load strand")
	}
	return strand, nil
}

func (s *PaperService) checkUpload(file *dto.PaperUpload) error {
	if file == nil || file.Reader == nil {
		return appErrors.Clone(appErrors.ErrValidation, "pdf file is required")
	}
	if contentType := strings.ToLower(strings.TrimSpace(strings.Split(file.ContentType, ";")[0])); contentType != pdfContentType {
		return appErrors.Clone(appErrors.ErrValidation, "only PDF files are allowed")
	}
	if s.maxFileSize > 0 && file.Size > s.maxFileSize {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("pdf exceeds the %d MB limit", s.maxFileSize/(1024*1024)))
	}
	return nil
}

// freeFileName returns name, or name with a short random suffix when another paper or
// an unrelated file already uses it. own is the caller's current file, which may be overwritten.
func (s *PaperService) freeFileName(ctx context.Context, name, excludeID, own string) (string, error) {
	if name == own {
		return name, nil
	}
	free, err := s.nameFree(ctx, name, excludeID)
	if err != nil {
		return "", err
	}
	if free {
		return name, nil
	}
	return strings.TrimSuffix(name, ".pdf") + "-" + uuid.NewString()[:8] + ".pdf", nil
}

func (s *PaperService) nameFree(ctx context.Context, name, excludeID string) (bool, error) {
	taken, err := s.repo.PDFPathTaken(ctx, name, excludeID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pdf name")
	}
	if taken {
		return false, nil
	}
	exists, err := s.files.Exists(ctx, name)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to check pdf name")
	}
	return !exists, nil
}

// renameTarget reports the file name matching title when the current file exists and the
// destination is unoccupied. Existing files are never overwritten.
func (s *PaperService) renameTarget(ctx context.Context, current, title, paperID string) (string, bool) {
	dest := storage.FileNameForTitle(title)
	if dest == current {
		return "", false
	}
	exists, err := s.files.Exists(ctx, current)
	if err != nil || !exists {
		return "", false
	}
	free, err := s.nameFree(ctx, dest, paperID)
	if err != nil || !free {
		return "", false
	}
	return dest, true
}

func (s *PaperService) removeFile(ctx context.Context, name string) {
	if err := s.files.Delete(ctx, name); err != nil && !errors.Is(err, storage.ErrFileNotFound) {
		s.logger.Warn("failed to delete pdf", zap.String("name", name), zap.Error(err))
	}
}

func newPaperView(paper *models.Paper, strand *models.Strand) *models.PaperView {
	view := &models.PaperView{Paper: *paper, Strand: strand.Short, StrandName: strand.Name}
	view.Decorate()
	return view
}

func splitKeywords(raw string) []string {
	keywords := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if kw := strings.TrimSpace(part); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

func sortedJoin(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
