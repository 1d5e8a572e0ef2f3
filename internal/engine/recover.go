package engine

import (
	"fmt"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/codec"
	"main/internal/schema"
)

// Recover rebuilds the table and ledger from the log. The first scan locates
// the latest checkpoint record; state is reset to its embedded snapshot and
// only records after it replay, through the same apply path used live.
// Pruning can leave records older than the checkpoint in the checkpoint's own
// segment, so replay must not start at the head of the surviving log. The
// engine accepts no operation until recovery succeeds.
func (e *Engine) Recover() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recovered {
		return nil
	}

	start := time.Now()
	var (
		cpSeq       uint64
		cpPayload   []byte
		checkpoints int
	)
	err := e.store.IterateFrom(1, func(header schema.RecordHeader, payload []byte) error {
		if header.Type != schema.RecordCheckpoint {
			return nil
		}
		cpSeq = header.Seq
		cpPayload = append(cpPayload[:0], payload...)
		checkpoints++
		return nil
	})
	if err != nil {
		return err
	}

	replayFrom := uint64(1)
	if cpPayload != nil {
		cp, err := codec.DecodeCheckpoint(cpPayload)
		if err != nil {
			return fmt.Errorf("decode checkpoint seq %d: %w", cpSeq, err)
		}
		e.table.Restore(cp.Orders)
		e.ledger.Restore(cp.Positions)
		replayFrom = cpSeq + 1
	}

	var replayed int
	err = e.store.IterateFrom(replayFrom, func(header schema.RecordHeader, payload []byte) error {
		switch header.Type {
		case schema.RecordOrderNew:
			order, err := codec.DecodeOrderNew(payload)
			if err != nil {
				return fmt.Errorf("decode order seq %d: %w", header.Seq, err)
			}
			if err := e.table.Insert(order); err != nil {
				return fmt.Errorf("replay order %s seq %d: %w", order.ClientOrderID, header.Seq, err)
			}
			replayed++
		case schema.RecordOrderUpdate, schema.RecordOrderFill, schema.RecordOrderCancel:
			report, err := codec.DecodeExecution(payload)
			if err != nil {
				return fmt.Errorf("decode report seq %d: %w", header.Seq, err)
			}
			if _, err := e.applyReportLocked(report, nil); err != nil {
				return fmt.Errorf("replay report for %s seq %d: %w", report.ClientOrderID, header.Seq, err)
			}
			replayed++
		case schema.RecordCheckpoint, schema.RecordRotation:
		default:
			return fmt.Errorf("unknown record type %d at seq %d", header.Type, header.Seq)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.recovered = true
	logs.Infof("recovery complete in %s: %d orders, %d positions, %d records after last of %d checkpoints",
		time.Since(start), e.table.Count(), e.ledger.Count(), replayed, checkpoints)
	return nil
}
