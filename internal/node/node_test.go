package node

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/accord/internal/history"
	"github.com/roach88/accord/internal/record"
	"github.com/roach88/accord/internal/store"
	"github.com/roach88/accord/internal/testutil"
)

type fixture struct {
	store *Store
	mem   *store.Memory
	log   *history.Log
	clock *testutil.DeterministicClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	mem := store.NewMemory()
	log := history.NewLog(mem)
	tick := testutil.NewDeterministicClock(100)
	opts = append([]Option{WithNow(tick.Next)}, opts...)
	return &fixture{
		store: NewStore(mem, log, opts...),
		mem:   mem,
		log:   log,
		clock: tick,
	}
}

func TestApplyLocal_CreatesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.ApplyLocal(ctx, "task-1", "alpha", map[string]record.Value{
		"name": record.String("Alice"),
		"age":  record.Int(30),
	})
	require.NoError(t, err)

	assert.Equal(t, "task-1", rec.ID)
	assert.Equal(t, int64(1), rec.Clock.Counter("alpha"))
	assert.Equal(t, int64(100), rec.Timestamp)
	assert.Equal(t, record.FieldState{Timestamp: 100, Writer: "alpha"}, rec.State["name"])
	assert.Equal(t, record.FieldState{Timestamp: 100, Writer: "alpha"}, rec.State["age"])

	stored, err := f.store.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.True(t, record.ValueEqual(record.String("Alice"), stored.Data["name"]))

	versions, err := f.log.Versions(ctx, "task-1")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestApplyLocal_TimestampsStrictlyIncrease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Frozen wall clock: every call sees the same instant.
	f.clock.Freeze(100)

	_, err := f.store.ApplyLocal(ctx, "task-1", "alpha", map[string]record.Value{
		"name": record.String("Alice"),
	})
	require.NoError(t, err)

	rec, err := f.store.ApplyLocal(ctx, "task-1", "alpha", map[string]record.Value{
		"name": record.String("Alicia"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(101), rec.State["name"].Timestamp, "second write must not share a timestamp")
	assert.Equal(t, int64(2), rec.Clock.Counter("alpha"))
}

func TestApplyLocalAt_RespectsFloor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.store.ApplyLocalAt(ctx, "task-1", "alpha", map[string]record.Value{
		"name": record.String("Alice"),
	}, 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), rec.State["name"].Timestamp)
}

func TestApplyLocal_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	changes := map[string]record.Value{"name": record.String("Alice")}

	_, err := f.store.ApplyLocal(ctx, "", "alpha", changes)
	assert.True(t, record.IsPrecondition(err))

	_, err = f.store.ApplyLocal(ctx, "task-1", "", changes)
	assert.True(t, record.IsPrecondition(err))

	_, err = f.store.ApplyLocal(ctx, "task-1", "alpha", nil)
	assert.True(t, record.IsPrecondition(err))

	_, err = f.store.ApplyLocal(ctx, "task-1", "alpha", map[string]record.Value{"": record.Int(1)})
	assert.True(t, record.IsPrecondition(err))
}

func TestDelete_TombstonesField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.ApplyLocal(ctx, "task-1", "alpha", map[string]record.Value{
		"name": record.String("Alice"),
		"age":  record.Int(30),
	})
	require.NoError(t, err)

	rec, err := f.store.Delete(ctx, "task-1", "alpha", "age")
	require.NoError(t, err)

	assert.True(t, record.IsTombstone(rec.Data["age"]), "tombstone kept internally")
	_, visible := rec.Field("age")
	assert.False(t, visible, "tombstoned field hidden from reads")
	_, visible = rec.Field("name")
	assert.True(t, visible)
}

func TestDelete_MissingRecord(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.Delete(context.Background(), "ghost", "alpha", "name")
	assert.True(t, record.IsNotFound(err))
}

func TestApplyRemote_AdoptsFirstSighting(t *testing.T) {
	a := newFixture(t)
	b := newFixture(t)
	ctx := context.Background()

	remote, err := a.store.ApplyLocal(ctx, "task-1", "alpha", map[string]record.Value{
		"name": record.String("Alice"),
	})
	require.NoError(t, err)

	got, conflicts, err := b.store.ApplyRemote(ctx, "task-1", remote)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.True(t, record.ValueEqual(record.String("Alice"), got.Data["name"]))

	versions, err := b.log.Versions(ctx, "task-1")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestApplyRemote_DuplicateDeliveryIsNoOp(t *testing.T) {
	a := newFixture(t)
	b := newFixture(t)
	ctx := context.Background()

	remote, err := a.store.ApplyLocal(ctx, "task-1", "alpha", map[string]record.Value{
		"name": record.String("Alice"),
	})
	require.NoError(t, err)

	_, _, err = b.store.ApplyRemote(ctx, "task-1", remote)
	require.NoError(t, err)
	_, _, err = b.store.ApplyRemote(ctx, "task-1", remote)
	require.NoError(t, err)

	versions, err := b.log.Versions(ctx, "task-1")
	require.NoError(t, err)
	assert.Len(t, versions, 1, "redelivery must not grow history")
}

func TestApplyRemote_IDMismatch(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.store.ApplyRemote(context.Background(), "task-1", record.New("task-2"))
	assert.True(t, record.IsPrecondition(err))
}

func TestApplyRemote_InvalidClockRejected(t *testing.T) {
	f := newFixture(t)

	bad := record.New("task-1")
	bad.Clock["alpha"] = -1
	_, _, err := f.store.ApplyRemote(context.Background(), "task-1", bad)
	assert.True(t, record.IsInvalidClock(err))
}

func TestApplyRemote_ConcurrentWritesConverge(t *testing.T) {
	a := newFixture(t)
	b := newFixture(t)
	ctx := context.Background()

	base, err := a.store.ApplyLocal(ctx, "task-1", "alpha", map[string]record.Value{
		"name": record.String("Alice"),
	})
	require.NoError(t, err)
	_, _, err = b.store.ApplyRemote(ctx, "task-1", base)
	require.NoError(t, err)

	// Concurrent disjoint edits on each replica.
	fromA, err := a.store.ApplyLocal(ctx, "task-1", "alpha", map[string]record.Value{
		"email": record.String("alice@example.com"),
	})
	require.NoError(t, err)
	fromB, err := b.store.ApplyLocal(ctx, "task-1", "beta", map[string]record.Value{
		"age": record.Int(30),
	})
	require.NoError(t, err)

	onB, conflicts, err := b.store.ApplyRemote(ctx, "task-1", fromA)
	require.NoError(t, err)
	assert.Empty(t, conflicts, "disjoint fields merge cleanly")
	onA, conflicts, err := a.store.ApplyRemote(ctx, "task-1", fromB)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	assert.Equal(t, onA.Clock, onB.Clock)
	assert.True(t, record.ValueEqual(record.String("alice@example.com"), onB.Data["email"]))
	assert.True(t, record.ValueEqual(record.Int(30), onA.Data["age"]))
}

func TestApplyRemote_ConflictSurfacedAndLogged(t *testing.T) {
	a := newFixture(t)
	b := newFixture(t)
	ctx := context.Background()

	b.clock.Freeze(100)
	a.clock.Freeze(100)

	fromA, err := a.store.ApplyLocal(ctx, "task-1", "alpha", map[string]record.Value{
		"name": record.String("Alice"),
	})
	require.NoError(t, err)
	_, err = b.store.ApplyLocal(ctx, "task-1", "beta", map[string]record.Value{
		"name": record.String("Alicia"),
	})
	require.NoError(t, err)

	merged, conflicts, err := b.store.ApplyRemote(ctx, "task-1", fromA)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "name", conflicts[0].Field)
	require.Len(t, conflicts[0].Candidates, 2)

	// Equal timestamps, so the lexicographically smaller writer wins.
	assert.True(t, record.ValueEqual(record.String("Alice"), merged.Data["name"]))
	assert.Equal(t, "alpha", merged.State["name"].Writer)

	versions, err := b.log.Versions(ctx, "task-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Len(t, versions[0].Conflicts, 1, "conflicts recorded alongside the snapshot")
}

type captureBroadcaster struct {
	records []record.NodeRecord
	err     error
}

func (c *captureBroadcaster) Broadcast(_ context.Context, rec record.NodeRecord) error {
	c.records = append(c.records, rec)
	return c.err
}

func TestBroadcaster_ReceivesAcceptedStates(t *testing.T) {
	capture := &captureBroadcaster{}
	f := newFixture(t, WithBroadcaster(capture))
	ctx := context.Background()

	_, err := f.store.ApplyLocal(ctx, "task-1", "alpha", map[string]record.Value{
		"name": record.String("Alice"),
	})
	require.NoError(t, err)

	require.Len(t, capture.records, 1)
	assert.Equal(t, "task-1", capture.records[0].ID)
}

func TestBroadcaster_ErrorDoesNotFailApply(t *testing.T) {
	capture := &captureBroadcaster{err: errors.New("peer unreachable")}
	f := newFixture(t, WithBroadcaster(capture))

	_, err := f.store.ApplyLocal(context.Background(), "task-1", "alpha", map[string]record.Value{
		"name": record.String("Alice"),
	})
	assert.NoError(t, err, "replication is best effort once persisted")
}

func TestGet_MissingRecord(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.Get(context.Background(), "ghost")
	assert.True(t, record.IsNotFound(err))
}
