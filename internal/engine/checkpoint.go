package engine

import (
	"github.com/yanun0323/logs"

	"main/internal/codec"
	"main/internal/schema"
)

// Checkpoint snapshots the full table and ledger into a single record, then
// prunes log segments the snapshot makes redundant. Returns the sequence the
// checkpoint covers.
func (e *Engine) Checkpoint() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.gateLocked(); err != nil {
		return 0, err
	}
	seq, err := e.checkpointSeqLocked()
	if err != nil {
		return 0, err
	}
	e.sinceCheckpoint = 0
	return seq, nil
}

func (e *Engine) checkpointLocked() error {
	_, err := e.checkpointSeqLocked()
	return err
}

func (e *Engine) checkpointSeqLocked() (uint64, error) {
	cp := codec.Checkpoint{
		Seq:       e.store.LastSequence(),
		TakenAtNs: e.nowFn(),
		Orders:    e.table.SnapshotAll(),
		Positions: e.ledger.SnapshotAll(),
	}
	payload, err := codec.EncodeCheckpoint(cp)
	if err != nil {
		return 0, err
	}
	if err := e.appendLocked(schema.RecordCheckpoint, payload); err != nil {
		return 0, err
	}
	e.metrics.IncCheckpoint()

	removed, err := e.store.Prune(cp.Seq)
	if err != nil {
		logs.Warnf("prune after checkpoint: %+v", err)
	} else if removed > 0 {
		logs.Infof("checkpoint at seq %d, pruned %d segments", cp.Seq, removed)
	}
	return cp.Seq, nil
}
