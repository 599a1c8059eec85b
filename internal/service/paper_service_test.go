package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/research-library-api/internal/dto"
	"github.com/noah-isme/research-library-api/internal/models"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
	"github.com/noah-isme/research-library-api/pkg/storage"
)

type memoryFileStore struct {
	mu        sync.Mutex
	files     map[string][]byte
	putErr    error
	renameErr error
}

func newMemoryFileStore() *memoryFileStore {
	return &memoryFileStore{files: map[string][]byte{}}
}

func (m *memoryFileStore) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
	return nil
}

func (m *memoryFileStore) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	if !ok {
		return nil, 0, storage.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *memoryFileStore) Exists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[name]
	return ok, nil
}

func (m *memoryFileStore) Rename(ctx context.Context, from, to string) error {
	if m.renameErr != nil {
		return m.renameErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[from]
	if !ok {
		return storage.ErrFileNotFound
	}
	delete(m.files, from)
	m.files[to] = data
	return nil
}

func (m *memoryFileStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		return storage.ErrFileNotFound
	}
	delete(m.files, name)
	return nil
}

func (m *memoryFileStore) has(name string) bool {
	ok, _ := m.Exists(context.Background(), name)
	return ok
}

type memoryPaperRepo struct {
	mu        sync.Mutex
	papers    map[string]*models.Paper
	strands   *memoryStrandRepo
	updateErr error
}

func newMemoryPaperRepo(strands *memoryStrandRepo) *memoryPaperRepo {
	return &memoryPaperRepo{papers: map[string]*models.Paper{}, strands: strands}
}

func (m *memoryPaperRepo) view(p models.Paper) models.PaperView {
	v := models.PaperView{Paper: p}
	if s, ok := m.strands.strands[p.StrandID]; ok {
		v.Strand, v.StrandName = s.Short, s.Name
	}
	v.Decorate()
	return v
}

func (m *memoryPaperRepo) List(ctx context.Context, filter models.PaperFilter) ([]models.PaperView, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PaperView, 0, len(m.papers))
	for _, p := range m.papers {
		if filter.Featured != nil && p.IsFeatured != *filter.Featured {
			continue
		}
		out = append(out, m.view(*p))
	}
	return out, len(out), nil
}

func (m *memoryPaperRepo) FindByID(ctx context.Context, id string) (*models.PaperView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.papers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	v := m.view(*p)
	return &v, nil
}

func (m *memoryPaperRepo) PDFPathTaken(ctx context.Context, name, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.papers {
		if p.PDFPath == name && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryPaperRepo) Create(ctx context.Context, paper *models.Paper) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	paper.CreatedAt = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	paper.UpdatedAt = paper.CreatedAt
	p := *paper
	m.papers[p.ID] = &p
	return nil
}

func (m *memoryPaperRepo) Update(ctx context.Context, paper *models.Paper) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.papers[paper.ID]; !ok {
		return sql.ErrNoRows
	}
	p := *paper
	m.papers[p.ID] = &p
	return nil
}

func (m *memoryPaperRepo) IncrementDownloads(ctx context.Context, id string) (*models.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.papers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	p.DownloadCount++
	out := *p
	return &out, nil
}

func (m *memoryPaperRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.papers[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.papers, id)
	return nil
}

func (m *memoryPaperRepo) get(id string) models.Paper {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.papers[id]
}

type paperFixture struct {
	svc   *PaperService
	repo  *memoryPaperRepo
	files *memoryFileStore
	logs  *memoryActivityLog
}

func newPaperFixture() *paperFixture {
	strands := newMemoryStrandRepo(stemStrand, abmStrand)
	repo := newMemoryPaperRepo(strands)
	files := newMemoryFileStore()
	logs := &memoryActivityLog{}
	svc := NewPaperService(repo, strands, files, NewAuditService(logs, nil, nil), nil, 10*1024*1024, nil, nil)
	return &paperFixture{svc: svc, repo: repo, files: files, logs: logs}
}

const twoAuthors = `[{"firstName":"Ana","lastName":"Cruz"},{"firstName":"Ben","lastName":"Reyes"}]`

func pdfUpload(content string) *dto.PaperUpload {
	return &dto.PaperUpload{Reader: strings.NewReader(content), Size: int64(len(content)), ContentType: "application/pdf"}
}

func createPaperRequest(title string) dto.CreatePaperRequest {
	return dto.CreatePaperRequest{
		Title:        title,
		Authors:      twoAuthors,
		Abstract:     "Abstract",
		Keywords:     "solar, energy, ,panels",
		Adviser:      "Dr. Santos",
		SchoolYear:   "2023-2024",
		GradeSection: "12-A",
		Strand:       "stem",
		IsFeatured:   "true",
		File:         pdfUpload("%PDF-1.4 original"),
	}
}

func (f *paperFixture) create(t *testing.T, title string) *models.PaperView {
	t.Helper()
	paper, err := f.svc.Create(context.Background(), snapshot(viewerUser), createPaperRequest(title))
	require.NoError(t, err)
	return paper
}

func TestPaperServiceCreate(t *testing.T) {
	f := newPaperFixture()

	paper := f.create(t, "Solar: Panels!")
	assert.Equal(t, "Solar Panels.pdf", paper.PDFPath)
	assert.Equal(t, "STEM", paper.Strand)
	assert.Equal(t, []string{"solar", "energy", "panels"}, []string(paper.Keywords))
	assert.True(t, paper.IsFeatured)
	assert.Equal(t, "Cruz, A. & Reyes, B.", paper.AuthorDisplay)
	assert.True(t, f.files.has("Solar Panels.pdf"))

	entry := f.logs.last()
	assert.Equal(t, models.ActionAddedPaper, entry.ActionType)
	assert.Equal(t, "Solar: Panels!", entry.TargetItem)
	assert.Equal(t, "New research paper added to library", entry.ChangeDetails)
}

func TestPaperServiceCreateAvoidsNameCollisions(t *testing.T) {
	f := newPaperFixture()

	first := f.create(t, "Solar Panels")
	second := f.create(t, "Solar Panels")
	assert.NotEqual(t, first.PDFPath, second.PDFPath)
	assert.True(t, strings.HasPrefix(second.PDFPath, "Solar Panels-"))
	assert.True(t, f.files.has(first.PDFPath))
	assert.True(t, f.files.has(second.PDFPath))
}

func TestPaperServiceCreateRejectsBadInput(t *testing.T) {
	f := newPaperFixture()
	ctx := context.Background()

	req := createPaperRequest("Doc")
	req.File.ContentType = "image/png"
	_, err := f.svc.Create(ctx, snapshot(viewerUser), req)
	assertAppError(t, err, appErrors.ErrValidation)

	req = createPaperRequest("Doc")
	req.File.Size = 11 * 1024 * 1024
	_, err = f.svc.Create(ctx, snapshot(viewerUser), req)
	assertAppError(t, err, appErrors.ErrValidation)

	req = createPaperRequest("Doc")
	req.Authors = "not json"
	_, err = f.svc.Create(ctx, snapshot(viewerUser), req)
	assertAppError(t, err, appErrors.ErrValidation)
	assert.Contains(t, err.Error(), "invalid authors format")

	req = createPaperRequest("Doc")
	req.Strand = "XYZ"
	_, err = f.svc.Create(ctx, snapshot(viewerUser), req)
	assertAppError(t, err, appErrors.ErrValidation)
	assert.Contains(t, err.Error(), "invalid strand")

	_, err = f.svc.Create(ctx, nil, createPaperRequest("Doc"))
	assertAppError(t, err, appErrors.ErrUnauthorized)

	assert.Empty(t, f.files.files)
	assert.Empty(t, f.logs.all())
}

func TestPaperServiceCreateStorageFailure(t *testing.T) {
	f := newPaperFixture()
	f.files.putErr = errors.New("disk full")

	_, err := f.svc.Create(context.Background(), snapshot(viewerUser), createPaperRequest("Doc"))
	assertAppError(t, err, appErrors.ErrStorage)
	assert.Empty(t, f.repo.papers)
}

func TestPaperServiceUpdateRenamesFileWithTitle(t *testing.T) {
	f := newPaperFixture()
	paper := f.create(t, "Solar Panels")

	updated, err := f.svc.Update(context.Background(), snapshot(viewerUser), paper.ID, dto.UpdatePaperRequest{
		Title:    strPtr("Wind Turbines"),
		Keywords: strPtr("panels,solar ,energy"),
		Strand:   strPtr("ABM"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Wind Turbines.pdf", updated.PDFPath)
	assert.Equal(t, "ABM", updated.Strand)
	assert.False(t, f.files.has("Solar Panels.pdf"))
	assert.True(t, f.files.has("Wind Turbines.pdf"))

	entry := f.logs.last()
	assert.Equal(t, models.ActionEditedPaper, entry.ActionType)
	assert.Equal(t, "Solar Panels", entry.TargetItem)
	assert.Equal(t, "Edited: Title (changed to 'Wind Turbines'), Strand", entry.ChangeDetails)
}

func TestPaperServiceUpdateKeepsNameWhenDestinationOccupied(t *testing.T) {
	f := newPaperFixture()
	paper := f.create(t, "Solar Panels")
	f.files.files["Wind Turbines.pdf"] = []byte("someone else")

	updated, err := f.svc.Update(context.Background(), snapshot(viewerUser), paper.ID, dto.UpdatePaperRequest{Title: strPtr("Wind Turbines")})
	require.NoError(t, err)
	assert.Equal(t, "Solar Panels.pdf", updated.PDFPath)
	assert.Equal(t, []byte("someone else"), f.files.files["Wind Turbines.pdf"])
}

func TestPaperServiceUpdateWithoutChangesStillLogs(t *testing.T) {
	f := newPaperFixture()
	paper := f.create(t, "Solar Panels")

	_, err := f.svc.Update(context.Background(), snapshot(viewerUser), paper.ID, dto.UpdatePaperRequest{
		Title:   strPtr("Solar Panels"),
		Authors: strPtr(`[{"firstName":" Ana ","lastName":"Cruz"},{"firstName":"Ben","lastName":"Reyes"}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Updated details", f.logs.last().ChangeDetails)
}

func TestPaperServiceUpdateReplacesPDF(t *testing.T) {
	f := newPaperFixture()
	paper := f.create(t, "Solar Panels")

	updated, err := f.svc.Update(context.Background(), snapshot(viewerUser), paper.ID, dto.UpdatePaperRequest{
		Title: strPtr("Wind Turbines"),
		File:  pdfUpload("%PDF-1.4 replacement"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Wind Turbines.pdf", updated.PDFPath)
	assert.False(t, f.files.has("Solar Panels.pdf"))
	assert.Equal(t, []byte("%PDF-1.4 replacement"), f.files.files["Wind Turbines.pdf"])
	assert.Equal(t, "Edited: Title (changed to 'Wind Turbines'), Pdf", f.logs.last().ChangeDetails)
}

func TestPaperServiceUpdateRollsBackRenameOnFailure(t *testing.T) {
	f := newPaperFixture()
	paper := f.create(t, "Solar Panels")
	f.repo.updateErr = errors.New("db down")

	_, err := f.svc.Update(context.Background(), snapshot(viewerUser), paper.ID, dto.UpdatePaperRequest{Title: strPtr("Wind Turbines")})
	assertAppError(t, err, appErrors.ErrInternal)
	assert.True(t, f.files.has("Solar Panels.pdf"))
	assert.False(t, f.files.has("Wind Turbines.pdf"))
	assert.Len(t, f.logs.all(), 1)
}

func TestPaperServiceUpdateKeepsOldPDFWhenRowUpdateFails(t *testing.T) {
	f := newPaperFixture()
	paper := f.create(t, "Solar Panels")
	f.repo.updateErr = errors.New("db down")

	_, err := f.svc.Update(context.Background(), snapshot(viewerUser), paper.ID, dto.UpdatePaperRequest{
		Title: strPtr("Wind Turbines"),
		File:  pdfUpload("%PDF-1.4 replacement"),
	})
	assertAppError(t, err, appErrors.ErrInternal)
	assert.Equal(t, []byte("%PDF-1.4 original"), f.files.files["Solar Panels.pdf"])
	assert.False(t, f.files.has("Wind Turbines.pdf"))
}

func TestPaperServiceUpdateValidation(t *testing.T) {
	f := newPaperFixture()
	paper := f.create(t, "Solar Panels")
	ctx := context.Background()

	_, err := f.svc.Update(ctx, snapshot(viewerUser), paper.ID, dto.UpdatePaperRequest{Strand: strPtr("NOPE")})
	assertAppError(t, err, appErrors.ErrValidation)

	_, err = f.svc.Update(ctx, snapshot(viewerUser), paper.ID, dto.UpdatePaperRequest{Authors: strPtr("{")})
	assertAppError(t, err, appErrors.ErrValidation)

	_, err = f.svc.Update(ctx, snapshot(viewerUser), "missing", dto.UpdatePaperRequest{Title: strPtr("X")})
	assertAppError(t, err, appErrors.ErrNotFound)
}

func TestPaperServiceDeleteIsAdminOnly(t *testing.T) {
	f := newPaperFixture()
	paper := f.create(t, "Solar Panels")

	err := f.svc.Delete(context.Background(), snapshot(viewerUser), paper.ID)
	assertAppError(t, err, appErrors.ErrForbidden)

	require.NoError(t, f.svc.Delete(context.Background(), snapshot(adminUser), paper.ID))
	assert.Empty(t, f.repo.papers)
	assert.False(t, f.files.has("Solar Panels.pdf"))

	entry := f.logs.last()
	assert.Equal(t, models.ActionDeletedPaper, entry.ActionType)
	assert.Equal(t, "Paper permanently removed from library", entry.ChangeDetails)
}

func TestPaperServiceDeleteToleratesMissingFile(t *testing.T) {
	f := newPaperFixture()
	paper := f.create(t, "Solar Panels")
	delete(f.files.files, "Solar Panels.pdf")

	require.NoError(t, f.svc.Delete(context.Background(), snapshot(adminUser), paper.ID))
	assert.Empty(t, f.repo.papers)
}

func TestPaperServiceOpenPDF(t *testing.T) {
	f := newPaperFixture()
	paper := f.create(t, "Solar Panels")
	ctx := context.Background()

	file, err := f.svc.OpenPDF(ctx, paper.ID, false)
	require.NoError(t, err)
	require.NoError(t, file.Reader.Close())
	assert.Equal(t, "Solar Panels.pdf", file.FileName)
	assert.Equal(t, int64(0), f.repo.get(paper.ID).DownloadCount)

	for i := 0; i < 2; i++ {
		file, err = f.svc.OpenPDF(ctx, paper.ID, true)
		require.NoError(t, err)
		data, err := io.ReadAll(file.Reader)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 original", string(data))
	}
	assert.Equal(t, int64(2), f.repo.get(paper.ID).DownloadCount)

	delete(f.files.files, "Solar Panels.pdf")
	_, err = f.svc.OpenPDF(ctx, paper.ID, false)
	assertAppError(t, err, appErrors.ErrNotFound)
	assert.Contains(t, err.Error(), "file missing on server")

	_, err = f.svc.OpenPDF(ctx, "missing", true)
	assertAppError(t, err, appErrors.ErrNotFound)
}

func TestPaperServiceListFeaturedFilter(t *testing.T) {
	f := newPaperFixture()
	f.create(t, "Solar Panels")

	papers, pagination, err := f.svc.List(context.Background(), dto.PaperListQuery{Featured: "false"})
	require.NoError(t, err)
	assert.Empty(t, papers)
	assert.Equal(t, 50, pagination.PageSize)
	assert.Equal(t, 1, pagination.Page)

	_, _, err = f.svc.List(context.Background(), dto.PaperListQuery{Featured: "maybe"})
	assertAppError(t, err, appErrors.ErrValidation)
}
