// Package retention prunes old history entries in the background so the
// version log does not grow without bound. Pruning never removes a
// record's newest entry, which keeps restore and diff usable even under
// aggressive policies.
package retention

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/accord/internal/metrics"
)

// Policy bounds the history kept per record. Zero values disable the
// corresponding limit; a policy with both limits zero prunes nothing.
type Policy struct {
	// MaxEntries keeps at most this many history entries per record.
	MaxEntries int
	// MaxAge drops entries older than this, except each record's newest.
	MaxAge time.Duration
}

// Enabled reports whether the policy would prune anything.
func (p Policy) Enabled() bool {
	return p.MaxEntries > 0 || p.MaxAge > 0
}

// Pruner is the storage surface the service needs. Implemented by
// store.Store and store.Memory.
type Pruner interface {
	Nodes(ctx context.Context) ([]string, error)
	PruneHistory(ctx context.Context, nodeID string, keep int, before int64) (int64, error)
}

// Service runs the retention policy on a fixed interval.
type Service struct {
	db       Pruner
	policy   Policy
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewService returns a retention service. Interval defaults to one hour
// when non-positive.
func NewService(db Pruner, policy Policy, interval time.Duration, logger *zap.Logger) *Service {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       db,
		policy:   policy,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run prunes on the configured interval until ctx is cancelled. A
// disabled policy returns immediately.
func (s *Service) Run(ctx context.Context) error {
	if !s.policy.Enabled() {
		s.logger.Info("retention disabled, nothing to do")
		return nil
	}
	s.logger.Info("retention service started",
		zap.Int("max_entries", s.policy.MaxEntries),
		zap.Duration("max_age", s.policy.MaxAge),
		zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.PruneOnce(ctx); err != nil {
				s.logger.Error("retention sweep failed", zap.Error(err))
			}
		}
	}
}

// PruneOnce applies the policy to every record's history and returns the
// number of entries deleted.
func (s *Service) PruneOnce(ctx context.Context) (int64, error) {
	if !s.policy.Enabled() {
		return 0, nil
	}
	ids, err := s.db.Nodes(ctx)
	if err != nil {
		return 0, err
	}

	keep := s.policy.MaxEntries
	var before int64
	if s.policy.MaxAge > 0 {
		before = s.now().Add(-s.policy.MaxAge).UnixMilli()
	}

	var total int64
	for _, id := range ids {
		deleted, err := s.db.PruneHistory(ctx, id, keep, before)
		if err != nil {
			return total, err
		}
		total += deleted
	}
	metrics.ObservePruned(total)
	if total > 0 {
		s.logger.Info("pruned history entries",
			zap.Int64("deleted", total),
			zap.Int("records", len(ids)))
	}
	return total, nil
}
