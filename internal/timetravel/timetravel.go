// Package timetravel restores records to historical versions. A restore
// is not a rollback: it authors a brand new update whose field
// timestamps dominate the current state, so the restored version wins
// every subsequent merge and replicates like any other write.
package timetravel

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/accord/internal/history"
	"github.com/roach88/accord/internal/metrics"
	"github.com/roach88/accord/internal/node"
	"github.com/roach88/accord/internal/record"
)

// Controller rewinds records using the history log.
type Controller struct {
	nodes  *node.Store
	log    *history.Log
	logger *zap.Logger
}

// NewController returns a controller over the given store and log.
func NewController(nodes *node.Store, log *history.Log, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{nodes: nodes, log: log, logger: logger}
}

// Restore rewrites the record to match its snapshot at target, authored
// by peer. Fields present now but absent at target are tombstoned.
// Returns a version-not-found error when no entry exists at exactly
// target, and a not-found error when the record itself is gone.
func (c *Controller) Restore(ctx context.Context, id string, target int64, peer string) (record.NodeRecord, error) {
	entry, err := c.log.At(ctx, id, target)
	if err != nil {
		return record.NodeRecord{}, err
	}
	current, err := c.nodes.Get(ctx, id)
	if err != nil {
		return record.NodeRecord{}, err
	}

	changes := make(map[string]record.Value, len(entry.Snapshot.Data))
	for field, val := range entry.Snapshot.Data {
		changes[field] = record.CloneValue(val)
	}
	// Anything written since the target version gets deleted.
	for field := range current.Data {
		if _, inTarget := entry.Snapshot.Data[field]; !inTarget {
			changes[field] = record.Tombstone{}
		}
	}
	if len(changes) == 0 {
		return record.NodeRecord{}, record.NewPrecondition("record " + id + " has no fields to restore")
	}

	restored, err := c.nodes.ApplyLocalAt(ctx, id, peer, changes, current.Timestamp+1)
	if err != nil {
		return record.NodeRecord{}, err
	}
	metrics.ObserveRestore()
	c.logger.Info("restored record to historical version",
		zap.String("id", id),
		zap.Int64("target", target),
		zap.Int64("timestamp", restored.Timestamp))
	return restored, nil
}
