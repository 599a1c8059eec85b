package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/research-library-api/internal/models"
	"github.com/noah-isme/research-library-api/internal/repository"
	appErrors "github.com/noah-isme/research-library-api/pkg/errors"
)

type memorySessionStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	ttls    map[string]time.Duration
	touches int
	scanErr error
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{blobs: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memorySessionStore) Get(ctx context.Context, token string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[token]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return blob, nil
}

func (m *memorySessionStore) Set(ctx context.Context, token string, blob []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[token] = blob
	m.ttls[token] = ttl
	return nil
}

func (m *memorySessionStore) Touch(ctx context.Context, token string, blob []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[token]; !ok {
		return repository.ErrSessionNotFound
	}
	m.blobs[token] = blob
	m.ttls[token] = ttl
	m.touches++
	return nil
}

func (m *memorySessionStore) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, token)
	delete(m.ttls, token)
	return nil
}

func (m *memorySessionStore) Scan(ctx context.Context, fn func(token string, blob []byte) error) error {
	if m.scanErr != nil {
		return m.scanErr
	}
	m.mu.Lock()
	snapshot := make(map[string][]byte, len(m.blobs))
	for k, v := range m.blobs {
		snapshot[k] = v
	}
	m.mu.Unlock()
	for token, blob := range snapshot {
		if err := fn(token, blob); err != nil {
			return err
		}
	}
	return nil
}

func (m *memorySessionStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

func TestSessionServiceCreateAndCurrent(t *testing.T) {
	store := newMemorySessionStore()
	svc := NewSessionService(store, 15*time.Minute, nil, nil)
	user := models.SessionUser{ID: "u1", Username: "alice", FullName: "Alice A", Role: models.RoleAdmin}

	token, err := svc.Create(context.Background(), user)
	require.NoError(t, err)
	assert.Len(t, token, 43)
	assert.Equal(t, 15*time.Minute, store.ttls[token])

	current, err := svc.Current(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user, *current)
	assert.Equal(t, 1, store.touches)
}

func TestSessionServiceCurrentStampsLastActivity(t *testing.T) {
	store := newMemorySessionStore()
	svc := NewSessionService(store, 15*time.Minute, nil, nil)
	clock := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	ctx := context.Background()

	token, err := svc.Create(ctx, models.SessionUser{ID: "u1"})
	require.NoError(t, err)

	clock = clock.Add(7 * time.Minute)
	_, err = svc.Current(ctx, token)
	require.NoError(t, err)

	var session models.Session
	require.NoError(t, json.Unmarshal(store.blobs[token], &session))
	assert.True(t, session.CreatedAt.Equal(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)))
	assert.True(t, session.LastActivity.Equal(clock))
	assert.Equal(t, 15*time.Minute, store.ttls[token])
}

func TestSessionServiceCurrentUnknownToken(t *testing.T) {
	svc := NewSessionService(newMemorySessionStore(), 0, nil, nil)

	_, err := svc.Current(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.Current(context.Background(), "")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestSessionServiceCurrentDropsCorruptBlob(t *testing.T) {
	store := newMemorySessionStore()
	store.blobs["bad"] = []byte("{not json")
	svc := NewSessionService(store, 0, nil, nil)

	_, err := svc.Current(context.Background(), "bad")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
	assert.Equal(t, 0, store.count())
}

func TestSessionServiceDestroyIsIdempotent(t *testing.T) {
	store := newMemorySessionStore()
	svc := NewSessionService(store, 0, nil, nil)
	token, err := svc.Create(context.Background(), models.SessionUser{ID: "u1"})
	require.NoError(t, err)

	require.NoError(t, svc.Destroy(context.Background(), token))
	require.NoError(t, svc.Destroy(context.Background(), token))
	_, err = svc.Current(context.Background(), token)
	assert.Error(t, err)
}

func TestSessionServiceListActiveUserIDsSkipsCorrupt(t *testing.T) {
	store := newMemorySessionStore()
	svc := NewSessionService(store, 0, nil, nil)
	ctx := context.Background()
	for _, id := range []string{"u1", "u1", "u2"} {
		_, err := svc.Create(ctx, models.SessionUser{ID: id})
		require.NoError(t, err)
	}
	store.blobs["corrupt"] = []byte("garbage")

	ids, err := svc.ListActiveUserIDs(ctx)
	require.NoError(t, err)
	sort.Strings(ids)
	assert.Equal(t, []string{"u1", "u2"}, ids)
}

func TestSessionServiceDestroyAllForUser(t *testing.T) {
	store := newMemorySessionStore()
	svc := NewSessionService(store, 0, nil, nil)
	ctx := context.Background()

	keep, err := svc.Create(ctx, models.SessionUser{ID: "u1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, models.SessionUser{ID: "u1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, models.SessionUser{ID: "u1"})
	require.NoError(t, err)
	other, err := svc.Create(ctx, models.SessionUser{ID: "u2"})
	require.NoError(t, err)
	store.blobs["corrupt"] = []byte("garbage")

	removed, err := svc.DestroyAllForUser(ctx, "u1", keep)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Contains(t, store.blobs, keep)
	assert.Contains(t, store.blobs, other)
	assert.Contains(t, store.blobs, "corrupt")
}

func TestSessionServiceDestroyAllForUserIgnoresIDCase(t *testing.T) {
	store := newMemorySessionStore()
	svc := NewSessionService(store, 0, nil, nil)
	ctx := context.Background()
	const id = "7d9f3c2e-4b1a-4c8e-9f0a-2b3c4d5e6f70"

	for i := 0; i < 2; i++ {
		_, err := svc.Create(ctx, models.SessionUser{ID: id})
		require.NoError(t, err)
	}

	removed, err := svc.DestroyAllForUser(ctx, "  "+strings.ToUpper(id)+" ")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, store.count())
}

func TestSessionServiceKickWithoutSessionsReturnsZero(t *testing.T) {
	svc := NewSessionService(newMemorySessionStore(), 0, nil, nil)

	removed, err := svc.DestroyAllForUser(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestSessionServiceScanFailure(t *testing.T) {
	store := newMemorySessionStore()
	store.scanErr = errors.New("redis down")
	svc := NewSessionService(store, 0, nil, nil)

	_, err := svc.ListActiveUserIDs(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrStorage))
}
