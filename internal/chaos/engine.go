// Package chaos injects at-least-once delivery faults into an execution
// report stream: duplicates, reordering, and delivery delay. The engine core
// must absorb all of them; deduplication makes duplicates a no-op and drops
// model a feed that will redeliver later.
package chaos

import (
	"fmt"
	"math/rand"
	"time"

	"main/internal/schema"
)

// Config controls chaos injection behavior.
type Config struct {
	Seed          int64
	DropRate      float64
	DuplicateRate float64
	ReorderWindow int
	MaxDelay      time.Duration
}

// Engine applies chaos rules to execution reports.
type Engine struct {
	cfg     Config
	rng     *rand.Rand
	pending []schema.ExecutionReport
}

// NewEngine creates a chaos engine with validation.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.ReorderWindow <= 0 {
		cfg.ReorderWindow = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("dropRate must be between 0 and 1")
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return fmt.Errorf("duplicateRate must be between 0 and 1")
	}
	if c.ReorderWindow <= 0 {
		return fmt.Errorf("reorderWindow must be >= 1")
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("maxDelay must be >= 0")
	}
	return nil
}

// Process applies chaos to a single report and returns any output reports.
func (e *Engine) Process(report schema.ExecutionReport) []schema.ExecutionReport {
	if e == nil {
		return []schema.ExecutionReport{report}
	}
	if e.shouldDrop() {
		return nil
	}
	report = e.applyDelay(report)
	if e.cfg.ReorderWindow <= 1 {
		return e.applyDuplicate(report)
	}
	e.pending = append(e.pending, report)
	if len(e.pending) < e.cfg.ReorderWindow {
		return nil
	}
	idx := e.rng.Intn(len(e.pending))
	out := e.pending[idx]
	e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
	return e.applyDuplicate(out)
}

// Flush returns any buffered reports after processing completes.
func (e *Engine) Flush() []schema.ExecutionReport {
	if e == nil || len(e.pending) == 0 {
		return nil
	}
	out := make([]schema.ExecutionReport, 0, len(e.pending))
	for len(e.pending) > 0 {
		idx := e.rng.Intn(len(e.pending))
		report := e.pending[idx]
		e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
		out = append(out, e.applyDuplicate(report)...)
	}
	return out
}

func (e *Engine) shouldDrop() bool {
	return e.cfg.DropRate > 0 && e.rng.Float64() < e.cfg.DropRate
}

func (e *Engine) applyDuplicate(report schema.ExecutionReport) []schema.ExecutionReport {
	out := []schema.ExecutionReport{report}
	if e.cfg.DuplicateRate > 0 && e.rng.Float64() < e.cfg.DuplicateRate {
		out = append(out, report)
	}
	return out
}

func (e *Engine) applyDelay(report schema.ExecutionReport) schema.ExecutionReport {
	if e.cfg.MaxDelay <= 0 {
		return report
	}
	delay := time.Duration(e.rng.Int63n(e.cfg.MaxDelay.Nanoseconds() + 1))
	if delay > 0 && report.TimestampNs > 0 {
		report.TimestampNs += int64(delay)
	}
	return report
}
