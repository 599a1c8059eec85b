package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/research-library-api/internal/dto"
	"github.com/noah-isme/research-library-api/internal/models"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
)

type memoryStrandRepo struct {
	strands map[string]*models.Strand
	papers  map[string]int
}

func newMemoryStrandRepo(strands ...models.Strand) *memoryStrandRepo {
	repo := &memoryStrandRepo{strands: map[string]*models.Strand{}, papers: map[string]int{}}
	for i := range strands {
		s := strands[i]
		repo.strands[s.ID] = &s
	}
	return repo
}

func (m *memoryStrandRepo) ListSummaries(ctx context.Context) ([]models.StrandSummary, error) {
	out := make([]models.StrandSummary, 0, len(m.strands))
	for _, s := range m.strands {
		out = append(out, models.StrandSummary{Strand: *s, PaperCount: m.papers[s.ID]})
	}
	return out, nil
}

func (m *memoryStrandRepo) FindByID(ctx context.Context, id string) (*models.Strand, error) {
	s, ok := m.strands[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *s
	return &out, nil
}

func (m *memoryStrandRepo) FindByShort(ctx context.Context, short string) (*models.Strand, error) {
	for _, s := range m.strands {
		if strings.EqualFold(s.Short, short) {
			out := *s
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryStrandRepo) ShortTaken(ctx context.Context, short, excludeID string) (bool, error) {
	for _, s := range m.strands {
		if strings.EqualFold(s.Short, short) && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStrandRepo) Create(ctx context.Context, strand *models.Strand) error {
	s := *strand
	m.strands[s.ID] = &s
	return nil
}

func (m *memoryStrandRepo) Update(ctx context.Context, strand *models.Strand) error {
	if _, ok := m.strands[strand.ID]; !ok {
		return sql.ErrNoRows
	}
	s := *strand
	m.strands[s.ID] = &s
	return nil
}

func (m *memoryStrandRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.strands[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.strands, id)
	return nil
}

func (m *memoryStrandRepo) CountByStrand(ctx context.Context, strandID string) (int, error) {
	return m.papers[strandID], nil
}

var (
	stemStrand = models.Strand{ID: "s-stem", Short: "STEM", Name: "Science, Technology, Engineering and Mathematics", Icon: "Atom"}
	abmStrand  = models.Strand{ID: "s-abm", Short: "ABM", Name: "Accountancy, Business and Management", Icon: models.DefaultStrandIcon}
)

func newStrandFixture(strands ...models.Strand) (*StrandService, *memoryStrandRepo, *memoryActivityLog) {
	repo := newMemoryStrandRepo(strands...)
	logs := &memoryActivityLog{}
	svc := NewStrandService(repo, repo, NewAuditService(logs, nil, nil), nil, nil, nil)
	return svc, repo, logs
}

func TestStrandServiceCreate(t *testing.T) {
	svc, _, logs := newStrandFixture()
	desc := "Humanities"

	strand, err := svc.Create(context.Background(), snapshot(adminUser), dto.StrandRequest{Short: " humss ", Name: "Humanities and Social Sciences", Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "HUMSS", strand.Short)
	assert.Equal(t, models.DefaultStrandIcon, strand.Icon)
	assert.Equal(t, "Humanities", strand.Description)

	entry := logs.last()
	assert.Equal(t, models.ActionAddedStrand, entry.ActionType)
	assert.Equal(t, "HUMSS", entry.TargetItem)
	assert.Equal(t, "New strand 'HUMSS' added to strand list", entry.ChangeDetails)
}

func TestStrandServiceCreateDuplicateAcronymAnyCase(t *testing.T) {
	svc, _, logs := newStrandFixture()

	_, err := svc.Create(context.Background(), snapshot(adminUser), dto.StrandRequest{Short: "STEM", Name: "Science..."})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), snapshot(viewerUser), dto.StrandRequest{Short: "stem", Name: "Another"})
	assertAppError(t, err, appErrors.ErrConflict)
	assert.Contains(t, err.Error(), "already exists")
	assert.Len(t, logs.all(), 1)
}

func TestStrandServiceCreateRequiresSession(t *testing.T) {
	svc, _, _ := newStrandFixture()

	_, err := svc.Create(context.Background(), nil, dto.StrandRequest{Short: "GAS", Name: "General Academic"})
	assertAppError(t, err, appErrors.ErrUnauthorized)
}

func TestStrandServiceUpdateLogsChangedFields(t *testing.T) {
	svc, _, logs := newStrandFixture(stemStrand, abmStrand)
	desc := "New description"

	strand, err := svc.Update(context.Background(), snapshot(viewerUser), stemStrand.ID, dto.StrandRequest{
		Short:       "stem2",
		Name:        stemStrand.Name,
		Description: &desc,
		Icon:        "Atom",
	})
	require.NoError(t, err)
	assert.Equal(t, "STEM2", strand.Short)

	entry := logs.last()
	assert.Equal(t, models.ActionEditedStrand, entry.ActionType)
	assert.Equal(t, "STEM", entry.TargetItem)
	assert.Equal(t, "Edited: Acronym (changed to 'STEM2'), Description", entry.ChangeDetails)
}

func TestStrandServiceUpdateWithoutChangesIsSilent(t *testing.T) {
	svc, _, logs := newStrandFixture(stemStrand)

	_, err := svc.Update(context.Background(), snapshot(viewerUser), stemStrand.ID, dto.StrandRequest{Short: "stem", Name: stemStrand.Name})
	require.NoError(t, err)
	assert.Empty(t, logs.all())
}

func TestStrandServiceUpdateConflictsAndMissing(t *testing.T) {
	svc, _, _ := newStrandFixture(stemStrand, abmStrand)

	_, err := svc.Update(context.Background(), snapshot(viewerUser), stemStrand.ID, dto.StrandRequest{Short: "abm", Name: "x"})
	assertAppError(t, err, appErrors.ErrConflict)

	_, err = svc.Update(context.Background(), snapshot(viewerUser), "missing", dto.StrandRequest{Short: "NEW", Name: "x"})
	assertAppError(t, err, appErrors.ErrNotFound)
}

func TestStrandServiceDeleteRejectsReferencedStrand(t *testing.T) {
	svc, repo, logs := newStrandFixture(abmStrand)
	repo.papers[abmStrand.ID] = 1

	err := svc.Delete(context.Background(), snapshot(adminUser), abmStrand.ID)
	assertAppError(t, err, appErrors.ErrConflict)
	assert.Contains(t, repo.strands, abmStrand.ID)
	assert.Empty(t, logs.all())
}

func TestStrandServiceDelete(t *testing.T) {
	svc, repo, logs := newStrandFixture(abmStrand)

	require.NoError(t, svc.Delete(context.Background(), snapshot(viewerUser), abmStrand.ID))
	assert.NotContains(t, repo.strands, abmStrand.ID)
	assert.Equal(t, "Strand 'ABM' removed from strands collection", logs.last().ChangeDetails)

	err := svc.Delete(context.Background(), snapshot(viewerUser), abmStrand.ID)
	assertAppError(t, err, appErrors.ErrNotFound)
}

func TestStrandServiceResolve(t *testing.T) {
	svc, _, _ := newStrandFixture(abmStrand)

	strand, err := svc.Resolve(context.Background(), "abm")
	require.NoError(t, err)
	assert.Equal(t, abmStrand.ID, strand.ID)

	_, err = svc.Resolve(context.Background(), "nope")
	assertAppError(t, err, appErrors.ErrValidation)
}
