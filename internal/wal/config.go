package wal

import (
	"fmt"
	"time"
)

const (
	defaultSegmentMaxBytes   int64 = 64 << 20
	defaultSegmentMaxRecords int64 = 100_000
	defaultBufferSize              = 256 * 1024
	defaultFilePrefix              = "wal"
	defaultRetainSegments          = 4
)

var defaultSyncInterval = 50 * time.Millisecond

// Config controls WAL store behavior.
type Config struct {
	Dir               string
	FilePrefix        string
	SegmentMaxBytes   int64
	SegmentMaxRecords int64
	BufferSize        int

	// SyncOnAppend makes every append durable before it returns. When false,
	// appends are buffered and synced every SyncInterval; records acknowledged
	// inside that window are lost on crash.
	SyncOnAppend  bool
	FlushInterval time.Duration
	SyncInterval  time.Duration

	// Retention bounds pruning: segments fully covered by a checkpoint are
	// deleted only beyond the newest RetainSegments and older than RetainAge.
	RetainSegments int
	RetainAge      time.Duration
}

// DefaultConfig returns a strict-durability baseline configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:               dir,
		FilePrefix:        defaultFilePrefix,
		SegmentMaxBytes:   defaultSegmentMaxBytes,
		SegmentMaxRecords: defaultSegmentMaxRecords,
		BufferSize:        defaultBufferSize,
		SyncOnAppend:      true,
		RetainSegments:    defaultRetainSegments,
	}
}

func (c Config) withDefaults() Config {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.SegmentMaxRecords == 0 {
		c.SegmentMaxRecords = defaultSegmentMaxRecords
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if !c.SyncOnAppend && c.SyncInterval == 0 {
		c.SyncInterval = defaultSyncInterval
	}
	if c.RetainSegments == 0 {
		c.RetainSegments = defaultRetainSegments
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("invalid wal config: Dir is empty")
	}
	if c.SegmentMaxBytes <= 0 {
		return fmt.Errorf("invalid wal config: SegmentMaxBytes must be > 0")
	}
	if c.SegmentMaxRecords <= 0 {
		return fmt.Errorf("invalid wal config: SegmentMaxRecords must be > 0")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("invalid wal config: BufferSize must be > 0")
	}
	if c.FilePrefix == "" {
		return fmt.Errorf("invalid wal config: FilePrefix is empty")
	}
	if c.FlushInterval < 0 {
		return fmt.Errorf("invalid wal config: FlushInterval must be >= 0")
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("invalid wal config: SyncInterval must be >= 0")
	}
	if c.RetainSegments < 0 {
		return fmt.Errorf("invalid wal config: RetainSegments must be >= 0")
	}
	if c.RetainAge < 0 {
		return fmt.Errorf("invalid wal config: RetainAge must be >= 0")
	}
	return nil
}
