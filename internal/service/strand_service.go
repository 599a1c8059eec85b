package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/research-library-api/internal/dto"
	"github.com/noah-isme/research-library-api/internal/models"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
)

type strandRepository interface {
	ListSummaries(ctx context.Context) ([]models.StrandSummary, error)
	FindByID(ctx context.Context, id string) (*models.Strand, error)
	FindByShort(ctx context.Context, short string) (*models.Strand, error)
	ShortTaken(ctx context.Context, short, excludeID string) (bool, error)
	Create(ctx context.Context, strand *models.Strand) error
	Update(ctx context.Context, strand *models.Strand) error
	Delete(ctx context.Context, id string) error
}

type strandPaperCounter interface {
	CountByStrand(ctx context.Context, strandID string) (int, error)
}

// StrandService manages the strand catalogue.
type StrandService struct {
	repo      strandRepository
	papers    strandPaperCounter
	audit     *AuditService
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStrandService constructs a StrandService.
func NewStrandService(repo strandRepository, papers strandPaperCounter, audit *AuditService, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StrandService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StrandService{repo: repo, papers: papers, audit: audit, cache: cache, validator: validate, logger: logger}
}

// List returns every strand ordered by acronym with paper figures.
func (s *StrandService) List(ctx context.Context) ([]models.StrandSummary, error) {
	strands, err := s.repo.ListSummaries(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list strands")
	}
	return strands, nil
}

// Create adds a strand. Acronyms are unique regardless of case.
func (s *StrandService) Create(ctx context.Context, caller *models.SessionUser, req dto.StrandRequest) (*models.Strand, error) {
	if err := Authorize(caller, ActionCreateStrand); err != nil {
		return nil, err
	}
	req = normalizeStrandRequest(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid strand payload")
	}
	if err := s.ensureShortAvailable(ctx, req.Short, ""); err != nil {
		return nil, err
	}

	strand := &models.Strand{
		ID:    uuid.NewString(),
		Short: req.Short,
		Name:  req.Name,
		Icon:  req.Icon,
	}
	if req.Description != nil {
		strand.Description = *req.Description
	}
	if strand.Icon == "" {
		strand.Icon = models.DefaultStrandIcon
	}
	if err := s.repo.Create(ctx, strand); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create strand")
	}

	s.audit.Record(ctx, caller, models.ActionAddedStrand, strand.Short, fmt.Sprintf("New strand '%s' added to strand list", strand.Short))
	s.cache.Invalidate(ctx, statsCachePattern)
	return strand, nil
}

// Update edits a strand and logs the changed fields. A request that changes nothing is
// not logged.
func (s *StrandService) Update(ctx context.Context, caller *models.SessionUser, id string, req dto.StrandRequest) (*models.Strand, error) {
	if err := Authorize(caller, ActionUpdateStrand); err != nil {
		return nil, err
	}
	req = normalizeStrandRequest(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid strand payload")
	}

	strand, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureShortAvailable(ctx, req.Short, strand.ID); err != nil {
		return nil, err
	}

	originalShort := strand.Short
	var changes []string
	if req.Short != strand.Short {
		strand.Short = req.Short
		changes = append(changes, fmt.Sprintf("Acronym (changed to '%s')", req.Short))
	}
	if req.Name != strand.Name {
		strand.Name = req.Name
		changes = append(changes, "Full Name")
	}
	if req.Description != nil && *req.Description != strand.Description {
		strand.Description = *req.Description
		changes = append(changes, "Description")
	}
	currentIcon := strand.Icon
	if currentIcon == "" {
		currentIcon = models.DefaultStrandIcon
	}
	if req.Icon != "" && req.Icon != currentIcon {
		strand.Icon = req.Icon
		changes = append(changes, "Icon")
	}

	if len(changes) == 0 {
		return strand, nil
	}
	if err := s.repo.Update(ctx, strand); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "strand not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update strand")
	}

	s.audit.Record(ctx, caller, models.ActionEditedStrand, originalShort, "Edited: "+strings.Join(changes, ", "))
	s.cache.Invalidate(ctx, statsCachePattern)
	return strand, nil
}

// Delete removes a strand that no paper references.
func (s *StrandService) Delete(ctx context.Context, caller *models.SessionUser, id string) error {
	if err := Authorize(caller, ActionDeleteStrand); err != nil {
		return err
	}
	strand, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	papers, err := s.papers.CountByStrand(ctx, strand.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count strand papers")
	}
	if papers > 0 {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("strand '%s' is still referenced by %d paper(s)", strand.Short, papers))
	}

	if err := s.repo.Delete(ctx, strand.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "strand not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete strand")
	}

	s.audit.Record(ctx, caller, models.ActionDeletedStrand, strand.Short, fmt.Sprintf("Strand '%s' removed from strands collection", strand.Short))
	s.cache.Invalidate(ctx, statsCachePattern)
	return nil
}

// Resolve finds a strand by acronym, case-insensitively.
func (s *StrandService) Resolve(ctx context.Context, short string) (*models.Strand, error) {
	strand, err := s.repo.FindByShort(ctx, strings.ToUpper(strings.TrimSpace(short)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid strand")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load strand")
	}
	return strand, nil
}

func (s *StrandService) load(ctx context.Context, id string) (*models.Strand, error) {
	strand, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "strand not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load strand")
	}
	return strand, nil
}

func (s *StrandService) ensureShortAvailable(ctx context.Context, short, excludeID string) error {
	taken, err := s.repo.ShortTaken(ctx, short, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check strand acronym")
	}
	if taken {
		return appErrors.Clone(appErrors.ErrConflict, "strand with this acronym already exists")
	}
	return nil
}

func normalizeStrandRequest(req dto.StrandRequest) dto.StrandRequest {
	req.Short = strings.ToUpper(strings.TrimSpace(req.Short))
	req.Name = strings.TrimSpace(req.Name)
	req.Icon = strings.TrimSpace(req.Icon)
	return req
}
