package wal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

type collected struct {
	header  schema.RecordHeader
	payload []byte
}

func collectRecords(t *testing.T, s *Store, from uint64) []collected {
	t.Helper()
	var out []collected
	err := s.IterateFrom(from, func(h schema.RecordHeader, payload []byte) error {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		out = append(out, collected{header: h, payload: cp})
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestAppendIterateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		seq, err := s.Append(schema.RecordOrderFill, []byte(fmt.Sprintf("payload-%d", i)))
		require.NoError(t, err)
		require.Equal(t, uint64(i), seq)
	}
	require.Equal(t, uint64(5), s.LastSequence())

	records := collectRecords(t, s, 0)
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, uint64(i+1), rec.header.Seq)
		assert.Equal(t, schema.RecordOrderFill, rec.header.Type)
		assert.Equal(t, fmt.Sprintf("payload-%d", i+1), string(rec.payload))
	}

	tail := collectRecords(t, s, 4)
	require.Len(t, tail, 2)
	assert.Equal(t, uint64(4), tail[0].header.Seq)

	require.NoError(t, s.Close())
}

func TestReopenContinuesSequence(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.Append(schema.RecordOrderNew, []byte("order"))
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	s, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, uint64(3), s.LastSequence())
	seq, err := s.Append(schema.RecordOrderNew, []byte("order"))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seq)

	records := collectRecords(t, s, 0)
	require.Len(t, records, 4)
}

func TestSegmentRotation(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.SegmentMaxRecords = 3
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 7; i++ {
		_, err := s.Append(schema.RecordOrderUpdate, []byte("x"))
		require.NoError(t, err)
	}

	segs, err := listSegments(dir, cfg.FilePrefix)
	require.NoError(t, err)
	require.Greater(t, len(segs), 1, "expected rollover into multiple segments")

	records := collectRecords(t, s, 0)
	var updates, rotations int
	var prev uint64
	for _, rec := range records {
		if prev != 0 {
			require.Equal(t, prev+1, rec.header.Seq, "sequence must stay contiguous across segments")
		}
		prev = rec.header.Seq
		switch rec.header.Type {
		case schema.RecordOrderUpdate:
			updates++
		case schema.RecordRotation:
			rotations++
		}
	}
	assert.Equal(t, 7, updates)
	assert.Greater(t, rotations, 0, "rolled segments must end with a Rotation record")
}

func TestTornTailTruncatedOnOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.Append(schema.RecordOrderFill, []byte("fill-payload"))
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	segs, err := listSegments(dir, defaultFilePrefix)
	require.NoError(t, err)
	require.Len(t, segs, 1)

	info, err := os.Stat(segs[0].path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(segs[0].path, info.Size()-3))

	s, err = Open(DefaultConfig(dir))
	require.NoError(t, err, "a torn tail record must not fail startup")
	defer s.Close()

	require.Equal(t, uint64(2), s.LastSequence())
	records := collectRecords(t, s, 0)
	require.Len(t, records, 2)

	seq, err := s.Append(schema.RecordOrderFill, []byte("fill-payload"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)
}

func TestMidStreamCorruptionFatal(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.SegmentMaxRecords = 3
	s, err := Open(cfg)
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		_, err := s.Append(schema.RecordOrderFill, []byte("fill-payload"))
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	segs, err := listSegments(dir, cfg.FilePrefix)
	require.NoError(t, err)
	require.Greater(t, len(segs), 1)

	data, err := os.ReadFile(segs[0].path)
	require.NoError(t, err)
	data[recordHeaderSize+1] ^= 0xFF
	require.NoError(t, os.WriteFile(segs[0].path, data, 0o644))

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	err = s.IterateFrom(0, func(schema.RecordHeader, []byte) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupted), "mid-stream checksum failure must be fatal, got: %v", err)
}

func TestMidStreamCorruptionInLastSegmentFatal(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := s.Append(schema.RecordOrderFill, []byte("fill-payload"))
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	segs, err := listSegments(dir, defaultFilePrefix)
	require.NoError(t, err)
	require.Len(t, segs, 1)

	data, err := os.ReadFile(segs[0].path)
	require.NoError(t, err)
	// Flip a payload byte of record 2; records 3..5 stay intact.
	idx := int(frameSize(len("fill-payload"))) + recordHeaderSize + 1
	data[idx] ^= 0xFF
	require.NoError(t, os.WriteFile(segs[0].path, data, 0o644))

	_, err = Open(DefaultConfig(dir))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupted), "damaged committed records must not open as a torn tail, got: %v", err)

	after, err := os.ReadFile(segs[0].path)
	require.NoError(t, err)
	assert.Len(t, after, len(data), "committed records must never be truncated")

	err = Scan(dir, defaultFilePrefix, func(schema.RecordHeader, []byte) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupted))
}

func TestMissingSegmentIsSequenceGap(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.SegmentMaxRecords = 3
	s, err := Open(cfg)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := s.Append(schema.RecordOrderFill, []byte("fill-payload"))
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	segs, err := listSegments(dir, cfg.FilePrefix)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(segs), 3)
	require.NoError(t, os.Remove(segs[1].path))

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	err = s.IterateFrom(0, func(schema.RecordHeader, []byte) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupted))
}

func TestPruneHonorsRetention(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.SegmentMaxRecords = 3
	cfg.RetainSegments = 1
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 12; i++ {
		_, err := s.Append(schema.RecordOrderFill, []byte("fill-payload"))
		require.NoError(t, err)
	}

	before, err := listSegments(dir, cfg.FilePrefix)
	require.NoError(t, err)
	require.Greater(t, len(before), 2)

	removed, err := s.Prune(s.LastSequence())
	require.NoError(t, err)
	assert.Greater(t, removed, 0)

	after, err := listSegments(dir, cfg.FilePrefix)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(after), cfg.RetainSegments)
	assert.Less(t, len(after), len(before))

	// Remaining records still iterate cleanly from the pruned boundary.
	err = s.IterateFrom(0, func(schema.RecordHeader, []byte) error { return nil })
	require.NoError(t, err)
}

func TestSegmentNaming(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.SegmentMaxRecords = 2
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append(schema.RecordOrderNew, []byte("a"))
	require.NoError(t, err)

	segs, err := listSegments(dir, cfg.FilePrefix)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, uint64(1), segs[0].startSeq)
	assert.Equal(t, filepath.Join(dir, segmentName(cfg.FilePrefix, 1)), segs[0].path)
}
