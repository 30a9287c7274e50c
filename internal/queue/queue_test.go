package queue

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/parking-gate/internal/errors"
	"github.com/wfunc/parking-gate/internal/models"
)

type fakeSyncer struct {
	mu     sync.Mutex
	err    error
	synced []string
}

func (s *fakeSyncer) Sync(ctx context.Context, ticket models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.synced = append(s.synced, ticket.TicketID)
	return nil
}

func (s *fakeSyncer) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func offlineTicket(id string) models.Ticket {
	return models.Ticket{
		TicketID:    id,
		Plate:       "B1234XYZ",
		VehicleType: models.VehicleCar,
		IssuedAt:    time.Now(),
		Origin:      models.OriginOffline,
	}
}

func TestEnqueuePersistsImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline_queue.json")
	q, err := NewOfflineQueue(path, &fakeSyncer{}, nil, Options{})
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(offlineTicket("OFF000001")))

	// Enqueue返回即已落盘
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "OFF000001")
}

// 重启后队列条目完整恢复
func TestQueueSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline_queue.json")

	q, err := NewOfflineQueue(path, &fakeSyncer{}, nil, Options{})
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(offlineTicket("OFF000001")))
	require.NoError(t, q.Enqueue(offlineTicket("OFF000002")))

	restored, err := NewOfflineQueue(path, &fakeSyncer{}, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Pending())

	entries := restored.Snapshot()
	assert.Equal(t, "OFF000001", entries[0].Ticket.TicketID)
	assert.Equal(t, "OFF000002", entries[1].Ticket.TicketID)
}

func TestFlushRemovesSyncedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline_queue.json")
	syncer := &fakeSyncer{}
	q, err := NewOfflineQueue(path, syncer, nil, Options{})
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(offlineTicket("OFF000001")))
	require.NoError(t, q.Enqueue(offlineTicket("OFF000002")))

	synced := q.FlushOnce(context.Background())
	assert.Equal(t, 2, synced)
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, []string{"OFF000001", "OFF000002"}, syncer.synced)
}

// 同步失败的条目保留并记录重试次数
func TestFlushKeepsFailedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline_queue.json")
	syncer := &fakeSyncer{}
	syncer.setErr(errors.New(errors.ErrNetworkRefused, "connection refused"))
	q, err := NewOfflineQueue(path, syncer, nil, Options{})
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(offlineTicket("OFF000001")))

	synced := q.FlushOnce(context.Background())
	assert.Equal(t, 0, synced)
	assert.Equal(t, 1, q.Pending())

	entries := q.Snapshot()
	assert.Equal(t, 1, entries[0].RetryCount)
	assert.False(t, entries[0].LastAttempt.IsZero())

	// 退避期内不再尝试
	synced = q.FlushOnce(context.Background())
	assert.Equal(t, 0, synced)
	assert.Equal(t, 1, entries[0].RetryCount)
}

// 网络恢复后队列最终清空
func TestFlushAfterRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline_queue.json")
	syncer := &fakeSyncer{}
	syncer.setErr(errors.New(errors.ErrNetworkTimeout, "timeout"))
	q, err := NewOfflineQueue(path, syncer, nil, Options{})
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(offlineTicket("OFF000001")))
	q.FlushOnce(context.Background())
	require.Equal(t, 1, q.Pending())

	// 模拟网络恢复并让退避到期
	syncer.setErr(nil)
	entries := q.Snapshot()
	q.mu.Lock()
	q.entries[0].LastAttempt = entries[0].LastAttempt.Add(-time.Hour)
	q.mu.Unlock()

	synced := q.FlushOnce(context.Background())
	assert.Equal(t, 1, synced)
	assert.Equal(t, 0, q.Pending())
}

// 被服务端拒绝的条目保留在队列里供运维查看，不自动丢弃
func TestFlushKeepsRejectedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline_queue.json")
	syncer := &fakeSyncer{}
	syncer.setErr(errors.New(errors.ErrServerRejected, "plat sudah terdaftar"))
	q, err := NewOfflineQueue(path, syncer, nil, Options{})
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(offlineTicket("OFF000001")))
	q.FlushOnce(context.Background())

	require.Equal(t, 1, q.Pending())
	entries := q.Snapshot()
	assert.Equal(t, "OFF000001", entries[0].Ticket.TicketID)
	assert.Equal(t, 1, entries[0].RetryCount)
	assert.False(t, entries[0].LastAttempt.IsZero())

	// 退避解除后服务端改口成功，条目最终清空
	syncer.setErr(nil)
	q.mu.Lock()
	q.entries[0].LastAttempt = q.entries[0].LastAttempt.Add(-time.Hour)
	q.mu.Unlock()
	assert.Equal(t, 1, q.FlushOnce(context.Background()))
	assert.Equal(t, 0, q.Pending())
}

func TestCorruptQueueFileFailsExplicitly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline_queue.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	_, err := NewOfflineQueue(path, &fakeSyncer{}, nil, Options{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrQueueRead, errors.GetCode(err))
}

func TestBackoffDoubling(t *testing.T) {
	assert.Equal(t, 5*time.Second, backoffFor(0))
	assert.Equal(t, 10*time.Second, backoffFor(1))
	assert.Equal(t, 40*time.Second, backoffFor(3))
	assert.Equal(t, 5*time.Minute, backoffFor(20))
}
