// Package node coordinates local writes and remote merges for node
// records. All mutation of a record flows through a Store, which
// serializes operations per record id, bumps vector clocks, persists the
// result, and appends every accepted state to the history log.
package node

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/accord/internal/clock"
	"github.com/roach88/accord/internal/history"
	"github.com/roach88/accord/internal/merge"
	"github.com/roach88/accord/internal/metrics"
	"github.com/roach88/accord/internal/record"
)

// Persistence is the record storage surface the store needs. Implemented
// by store.Store and store.Memory.
type Persistence interface {
	ReadRecord(ctx context.Context, id string) (record.NodeRecord, error)
	WriteRecord(ctx context.Context, rec record.NodeRecord) error
}

// Broadcaster receives every locally accepted record state so it can be
// shipped to peers. Implementations must not mutate the record.
type Broadcaster interface {
	Broadcast(ctx context.Context, rec record.NodeRecord) error
}

// Store applies local updates and remote merges.
type Store struct {
	db        Persistence
	log       *history.Log
	engine    *merge.Engine
	logger    *zap.Logger
	broadcast Broadcaster
	now       func() int64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithBroadcaster wires an outbound replication hook. Broadcast errors
// are logged, not returned; persistence has already succeeded by the
// time the hook runs.
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Store) { s.broadcast = b }
}

// WithNow overrides the wall clock, in milliseconds. Used by tests and
// the scenario harness for deterministic timestamps.
func WithNow(now func() int64) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a store over the given persistence and history log.
func NewStore(db Persistence, log *history.Log, opts ...Option) *Store {
	s := &Store{
		db:     db,
		log:    log,
		engine: merge.NewEngine(),
		logger: zap.NewNop(),
		now:    func() int64 { return time.Now().UnixMilli() },
		locks:  map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lockFor returns the mutex serializing operations on one record id.
func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Get returns the current state of a record, or a not-found error.
func (s *Store) Get(ctx context.Context, id string) (record.NodeRecord, error) {
	return s.db.ReadRecord(ctx, id)
}

// ApplyLocal applies field changes authored by peer to the record with
// the given id, creating the record if it does not exist. All changed
// fields receive the same new timestamp, strictly greater than any field
// timestamp already on the record, and the record's clock entry for peer
// is incremented. A tombstone value deletes a field.
func (s *Store) ApplyLocal(ctx context.Context, id, peer string, changes map[string]record.Value) (record.NodeRecord, error) {
	return s.applyLocal(ctx, id, peer, changes, 0, true)
}

// ApplyLocalAt is ApplyLocal with a lower bound on the write timestamp.
// The applied timestamp is at least floor even if the wall clock lags,
// which lets a caller author a state guaranteed to win every merge.
func (s *Store) ApplyLocalAt(ctx context.Context, id, peer string, changes map[string]record.Value, floor int64) (record.NodeRecord, error) {
	return s.applyLocal(ctx, id, peer, changes, floor, true)
}

// Delete tombstones the named fields. Unlike ApplyLocal it fails with a
// not-found error when the record does not exist.
func (s *Store) Delete(ctx context.Context, id, peer string, fields ...string) (record.NodeRecord, error) {
	changes := make(map[string]record.Value, len(fields))
	for _, f := range fields {
		changes[f] = record.Tombstone{}
	}
	return s.applyLocal(ctx, id, peer, changes, 0, false)
}

func (s *Store) applyLocal(ctx context.Context, id, peer string, changes map[string]record.Value, floor int64, create bool) (record.NodeRecord, error) {
	if id == "" {
		return record.NodeRecord{}, record.NewPrecondition("record id must not be empty")
	}
	if peer == "" {
		return record.NodeRecord{}, record.NewPrecondition("writer peer id must not be empty")
	}
	if len(changes) == 0 {
		return record.NodeRecord{}, record.NewPrecondition("update must change at least one field")
	}
	for field := range changes {
		if field == "" {
			return record.NodeRecord{}, record.NewPrecondition("field name must not be empty")
		}
	}

	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	rec, err := s.db.ReadRecord(ctx, id)
	if err != nil {
		if !record.IsNotFound(err) || !create {
			return record.NodeRecord{}, err
		}
		rec = record.New(id)
	}

	ts := s.now()
	if ts < floor {
		ts = floor
	}
	if ts <= rec.Timestamp {
		ts = rec.Timestamp + 1
	}

	for field, val := range changes {
		rec.Data[field] = record.CloneValue(val)
		rec.State[field] = record.FieldState{Timestamp: ts, Writer: peer}
	}
	rec.Clock = rec.Clock.Increment(peer)
	rec.Timestamp = ts

	if err := s.db.WriteRecord(ctx, rec); err != nil {
		return record.NodeRecord{}, err
	}
	if _, err := s.log.Append(ctx, rec, nil); err != nil {
		return record.NodeRecord{}, err
	}
	s.ship(ctx, rec)
	metrics.ObserveApply("local")
	s.logger.Debug("applied local update",
		zap.String("id", id),
		zap.String("peer", peer),
		zap.Int("fields", len(changes)),
		zap.Int64("timestamp", ts))
	return rec.Clone(), nil
}

// ApplyRemote merges a record state received from another replica into
// the local store. The first sighting of an id adopts the remote state
// verbatim. A merge that does not change the local state is skipped
// entirely, so redelivered messages leave no trace in history. Returns
// the resulting state and any field conflicts the merge surfaced.
func (s *Store) ApplyRemote(ctx context.Context, id string, remote record.NodeRecord) (record.NodeRecord, []record.Conflict, error) {
	if id != remote.ID {
		return record.NodeRecord{}, nil, record.NewPrecondition("record id does not match payload id " + remote.ID)
	}
	if err := remote.Validate(); err != nil {
		return record.NodeRecord{}, nil, err
	}

	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	local, err := s.db.ReadRecord(ctx, id)
	if err != nil {
		if !record.IsNotFound(err) {
			return record.NodeRecord{}, nil, err
		}
		adopted := remote.Clone()
		if err := s.db.WriteRecord(ctx, adopted); err != nil {
			return record.NodeRecord{}, nil, err
		}
		if _, err := s.log.Append(ctx, adopted, nil); err != nil {
			return record.NodeRecord{}, nil, err
		}
		s.ship(ctx, adopted)
		metrics.ObserveApply("remote")
		s.logger.Debug("adopted new record from peer", zap.String("id", id))
		return adopted.Clone(), nil, nil
	}

	ordering := local.Clock.Compare(remote.Clock)
	merged, conflicts, err := s.engine.Merge(local, remote)
	if err != nil {
		return record.NodeRecord{}, nil, err
	}

	unchanged := merged.Clock.Compare(local.Clock) == clock.Equal &&
		merged.Timestamp == local.Timestamp &&
		len(conflicts) == 0
	if unchanged {
		s.logger.Debug("remote state already incorporated", zap.String("id", id))
		return merged, nil, nil
	}

	if err := s.db.WriteRecord(ctx, merged); err != nil {
		return record.NodeRecord{}, nil, err
	}
	if _, err := s.log.Append(ctx, merged, conflicts); err != nil {
		return record.NodeRecord{}, nil, err
	}
	s.ship(ctx, merged)
	metrics.ObserveApply("remote")
	metrics.ObserveMerge(mergeOutcome(ordering), len(conflicts))
	s.logger.Debug("merged remote update",
		zap.String("id", id),
		zap.String("ordering", ordering.String()),
		zap.Int("conflicts", len(conflicts)))
	return merged.Clone(), conflicts, nil
}

func (s *Store) ship(ctx context.Context, rec record.NodeRecord) {
	if s.broadcast == nil {
		return
	}
	if err := s.broadcast.Broadcast(ctx, rec.Clone()); err != nil {
		s.logger.Warn("broadcast failed", zap.String("id", rec.ID), zap.Error(err))
	}
}

func mergeOutcome(o clock.Ordering) string {
	switch o {
	case clock.Dominates:
		return "local"
	case clock.Dominated:
		return "remote"
	case clock.Equal:
		return "equal"
	default:
		return "concurrent"
	}
}
