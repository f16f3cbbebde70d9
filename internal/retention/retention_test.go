package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/accord/internal/record"
	"github.com/roach88/accord/internal/store"
)

func seedHistory(t *testing.T, mem *store.Memory, nodeID string, timestamps ...int64) {
	t.Helper()
	ctx := context.Background()
	for _, ts := range timestamps {
		rec := record.New(nodeID)
		rec.Timestamp = ts
		rec.Clock["alpha"] = 1
		require.NoError(t, mem.WriteRecord(ctx, rec))
		_, err := mem.AppendHistory(ctx, record.HistoryEntry{
			NodeID:    nodeID,
			Timestamp: ts,
			Snapshot:  rec,
		})
		require.NoError(t, err)
	}
}

func TestPruneOnce_MaxEntries(t *testing.T) {
	mem := store.NewMemory()
	seedHistory(t, mem, "task-1", 100, 110, 120, 130)
	seedHistory(t, mem, "task-2", 200, 210)

	svc := NewService(mem, Policy{MaxEntries: 2}, time.Minute, nil)
	deleted, err := svc.PruneOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	versions, err := mem.ListHistory(context.Background(), "task-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, int64(130), versions[0].Timestamp)

	versions, err = mem.ListHistory(context.Background(), "task-2")
	require.NoError(t, err)
	assert.Len(t, versions, 2, "records within the limit are untouched")
}

func TestPruneOnce_MaxAgeKeepsNewest(t *testing.T) {
	mem := store.NewMemory()
	old := time.Now().Add(-48 * time.Hour).UnixMilli()
	seedHistory(t, mem, "task-1", old, old+10, old+20)

	svc := NewService(mem, Policy{MaxAge: 24 * time.Hour}, time.Minute, nil)
	deleted, err := svc.PruneOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	versions, err := mem.ListHistory(context.Background(), "task-1")
	require.NoError(t, err)
	require.Len(t, versions, 1, "the newest entry survives any age limit")
	assert.Equal(t, old+20, versions[0].Timestamp)
}

func TestPruneOnce_DisabledPolicy(t *testing.T) {
	mem := store.NewMemory()
	seedHistory(t, mem, "task-1", 100, 110, 120)

	svc := NewService(mem, Policy{}, time.Minute, nil)
	assert.False(t, svc.policy.Enabled())

	// Run returns immediately for a disabled policy.
	require.NoError(t, svc.Run(context.Background()))

	versions, err := mem.ListHistory(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Len(t, versions, 3)
}

func TestRun_StopsOnCancel(t *testing.T) {
	mem := store.NewMemory()
	seedHistory(t, mem, "task-1", 100, 110, 120)

	svc := NewService(mem, Policy{MaxEntries: 1}, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	// Let at least one sweep happen before cancelling.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("service did not stop after cancel")
	}

	versions, err := mem.ListHistory(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}
