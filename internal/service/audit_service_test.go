package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/research-library-api/internal/models"
	"github.com/noah-isme/research-library-api/pkg/jobs"
)

type memoryActivityLog struct {
	mu      sync.Mutex
	entries []models.ActivityLog
	err     error
}

func (m *memoryActivityLog) Insert(ctx context.Context, entry *models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityLog) all() []models.ActivityLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ActivityLog, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *memoryActivityLog) last() models.ActivityLog {
	entries := m.all()
	if len(entries) == 0 {
		return models.ActivityLog{}
	}
	return entries[len(entries)-1]
}

func (m *memoryActivityLog) actions() []string {
	entries := m.all()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ActionType)
	}
	return out
}

func TestAuditServiceRecordInline(t *testing.T) {
	sink := &memoryActivityLog{}
	svc := NewAuditService(sink, nil, nil)
	caller := &models.SessionUser{ID: "u1", Username: "alice", FullName: "Alice A"}

	svc.Record(context.Background(), caller, models.ActionAddedPaper, "Paper", "New research paper added to library")

	entry := sink.last()
	assert.Equal(t, "Alice A", entry.PerformedBy)
	assert.Equal(t, models.ActionAddedPaper, entry.ActionType)
	assert.Equal(t, "Paper", entry.TargetItem)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestAuditServiceFallsBackToSystem(t *testing.T) {
	sink := &memoryActivityLog{}
	svc := NewAuditService(sink, nil, nil)

	svc.Record(context.Background(), nil, models.ActionDeletedLogs, "System", "")
	assert.Equal(t, "System", sink.last().PerformedBy)

	svc.Record(context.Background(), &models.SessionUser{ID: "u1", Username: "bob"}, models.ActionLogin, "bob", "")
	assert.Equal(t, "bob", sink.last().PerformedBy)

	svc.RecordAs(context.Background(), "", models.ActionLogout, "Self", "Session expired due to inactivity")
	assert.Equal(t, "System", sink.last().PerformedBy)
}

func TestAuditServiceSwallowsSinkFailure(t *testing.T) {
	sink := &memoryActivityLog{err: errors.New("db down")}
	svc := NewAuditService(sink, nil, nil)

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), &models.SessionUser{ID: "u1", FullName: "Alice"}, models.ActionLogin, "Alice", "Successful login")
	})
	assert.Empty(t, sink.all())
}

func TestAuditServiceLabelsAreSnapshots(t *testing.T) {
	sink := &memoryActivityLog{}
	svc := NewAuditService(sink, nil, nil)
	caller := &models.SessionUser{ID: "u1", FullName: "Old Name"}

	svc.Record(context.Background(), caller, models.ActionLogin, caller.FullName, "Successful login")
	caller.FullName = "New Name"

	entry := sink.all()[0]
	assert.Equal(t, "Old Name", entry.PerformedBy)
	assert.Equal(t, "Old Name", entry.TargetItem)
}

func TestAuditServiceWritesThroughQueue(t *testing.T) {
	sink := &memoryActivityLog{}
	svc := NewAuditService(sink, nil, nil)
	queue := jobs.NewQueue("activity-log", svc.Handle, jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond, OnFailure: svc.Dropped})
	svc.UseQueue(queue)
	queue.Start(context.Background())
	defer queue.Stop()

	svc.RecordAs(context.Background(), "Alice", models.ActionLogin, "Alice", "Successful login")

	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestAuditServiceUnstartedQueueWritesInline(t *testing.T) {
	sink := &memoryActivityLog{}
	svc := NewAuditService(sink, nil, nil)
	svc.UseQueue(jobs.NewQueue("activity-log", svc.Handle, jobs.QueueConfig{}))

	svc.RecordAs(context.Background(), "Alice", models.ActionLogout, "Alice", "Manual session termination")

	assert.Len(t, sink.all(), 1)
}
