package wal

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/schema"
)

var (
	ErrClosed     = errors.New("wal store closed")
	ErrDurability = errors.New("wal durability failure")
	ErrCorrupted  = errors.New("wal corrupted record stream")
)

// Store is the single logical append point for the whole engine. All appends
// are serialized into one monotonically increasing, gapless sequence.
type Store struct {
	cfg Config

	mu      sync.Mutex
	seg     *segmentWriter
	nextSeq uint64
	closed  bool
	failed  error

	headerBuf   []byte
	checksumBuf [recordChecksumSize]byte

	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// Open prepares the store for appending. A torn record at the tail of the
// last segment is truncated and logged; the store then resumes at the next
// sequence number after the last fully durable record. Corruption anywhere
// before the tail record fails Open with ErrCorrupted.
func Open(cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	s := &Store{
		cfg:       cfg,
		nextSeq:   1,
		headerBuf: make([]byte, recordHeaderSize),
		done:      make(chan struct{}),
	}
	if err := s.recoverTail(); err != nil {
		return nil, err
	}
	return s, nil
}

// recoverTail walks segments from the newest backwards, truncating a torn
// tail record and removing segments left empty, until it finds the last
// durable sequence number.
func (s *Store) recoverTail() error {
	for {
		segs, err := listSegments(s.cfg.Dir, s.cfg.FilePrefix)
		if err != nil {
			return err
		}
		if len(segs) == 0 {
			return nil
		}
		last := segs[len(segs)-1]
		lastSeq, valid, err := repairSegmentTail(last.path)
		if err != nil {
			return err
		}
		if !valid {
			logs.Warnf("wal: removing empty segment %s after tail repair", last.path)
			if err := os.Remove(last.path); err != nil {
				return err
			}
			continue
		}
		s.nextSeq = lastSeq + 1
		return nil
	}
}

// repairSegmentTail scans one segment, truncates a torn tail record, and
// returns the last valid sequence number. Only the very last frame may be
// torn; a bad frame with valid records after it means committed data was
// damaged, and the segment fails with ErrCorrupted instead of losing it.
func repairSegmentTail(path string) (lastSeq uint64, valid bool, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, false, err
	}

	r := NewReader(file)
	for {
		header, _, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = file.Close()
			more, terr := tailHasValidFrame(path, r.Offset())
			if terr != nil {
				return 0, false, terr
			}
			if more {
				return 0, false, errors.Wrap(ErrCorrupted, fmt.Sprintf("segment %s offset %d: %v", path, r.Offset(), err))
			}
			logs.Warnf("wal: truncating torn tail of %s at offset %d: %v", path, r.Offset(), err)
			if terr := os.Truncate(path, r.Offset()); terr != nil {
				return 0, false, terr
			}
			return lastSeq, valid, nil
		}
		lastSeq = header.Seq
		valid = true
	}
	_ = file.Close()
	return lastSeq, valid, nil
}

// Start runs the background flush/sync loop for interval durability mode.
// It is a no-op under SyncOnAppend.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed || s.cfg.SyncOnAppend {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

func (s *Store) run(ctx context.Context) {
	var flushC, syncC <-chan time.Time
	if s.cfg.FlushInterval > 0 {
		t := time.NewTicker(s.cfg.FlushInterval)
		defer t.Stop()
		flushC = t.C
	}
	if s.cfg.SyncInterval > 0 {
		t := time.NewTicker(s.cfg.SyncInterval)
		defer t.Stop()
		syncC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-flushC:
			s.mu.Lock()
			if !s.closed && s.failed == nil {
				if err := s.seg.flush(); err != nil {
					s.failLocked("flush", err)
				}
			}
			s.mu.Unlock()
		case <-syncC:
			s.mu.Lock()
			if !s.closed && s.failed == nil {
				if err := s.seg.sync(); err != nil {
					s.failLocked("sync", err)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Append durably logs one record and returns its sequence number. Under
// SyncOnAppend the record is flushed and fsynced before Append returns;
// otherwise it is buffered for the next interval sync. Any I/O failure
// latches the store: every subsequent Append returns ErrDurability.
func (s *Store) Append(recordType schema.RecordType, payload []byte) (uint64, error) {
	if uint64(len(payload)) > maxPayloadLen {
		return 0, ErrPayloadTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if s.failed != nil {
		return 0, s.failed
	}

	if s.seg == nil || s.shouldRotate(len(payload)) {
		if err := s.rotateLocked(); err != nil {
			s.failLocked("rotate", err)
			return 0, s.failed
		}
	}

	seq, err := s.writeRecordLocked(recordType, payload)
	if err != nil {
		s.failLocked("append", err)
		return 0, s.failed
	}

	if s.cfg.SyncOnAppend {
		if err := s.seg.sync(); err != nil {
			s.failLocked("sync", err)
			return 0, s.failed
		}
	}
	return seq, nil
}

func (s *Store) writeRecordLocked(recordType schema.RecordType, payload []byte) (uint64, error) {
	seq := s.nextSeq
	header := schema.NewRecordHeader(recordType, seq, time.Now().UTC().UnixNano())

	encodeHeader(s.headerBuf, header, len(payload))
	sum := checksum(s.headerBuf, payload)
	binary.LittleEndian.PutUint32(s.checksumBuf[:], sum)

	if _, err := s.seg.buf.Write(s.headerBuf); err != nil {
		return 0, err
	}
	if len(payload) > 0 {
		if _, err := s.seg.buf.Write(payload); err != nil {
			return 0, err
		}
	}
	if _, err := s.seg.buf.Write(s.checksumBuf[:]); err != nil {
		return 0, err
	}

	s.nextSeq++
	s.seg.size += frameSize(len(payload))
	s.seg.records++
	return seq, nil
}

func (s *Store) shouldRotate(payloadLen int) bool {
	if s.seg == nil {
		return true
	}
	// Leave room for the Rotation record that closes the segment.
	if s.cfg.SegmentMaxBytes > 0 && s.seg.size+frameSize(payloadLen)+frameSize(0) > s.cfg.SegmentMaxBytes && s.seg.records > 0 {
		return true
	}
	if s.cfg.SegmentMaxRecords > 0 && s.seg.records+1 >= s.cfg.SegmentMaxRecords {
		return true
	}
	return false
}

// rotateLocked closes the active segment with a Rotation record and opens a
// fresh segment named by the next sequence number.
func (s *Store) rotateLocked() error {
	if s.seg != nil {
		if _, err := s.writeRecordLocked(schema.RecordRotation, nil); err != nil {
			return err
		}
		if err := s.seg.close(); err != nil {
			return err
		}
		s.seg = nil
	}
	seg, err := openSegment(s.cfg.Dir, s.cfg.FilePrefix, s.nextSeq, s.cfg.BufferSize)
	if err != nil {
		return err
	}
	s.seg = seg
	return nil
}

// Sync flushes and fsyncs the active segment.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.failed != nil {
		return s.failed
	}
	if err := s.seg.sync(); err != nil {
		s.failLocked("sync", err)
		return s.failed
	}
	return nil
}

// LastSequence returns the sequence of the most recently appended record.
func (s *Store) LastSequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq - 1
}

// Dir returns the segment directory.
func (s *Store) Dir() string {
	return s.cfg.Dir
}

// Close flushes, syncs, and closes the active segment and stops the
// background sync loop.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	seg := s.seg
	s.seg = nil
	failed := s.failed
	s.mu.Unlock()

	s.wg.Wait()
	if err := seg.close(); err != nil && failed == nil {
		return errors.Wrap(ErrDurability, fmt.Sprintf("close: %v", err))
	}
	return failed
}

// Prune deletes segments whose records are all at or below upToSeq, honoring
// the retention policy. The active segment is never deleted. It returns the
// number of segments removed.
func (s *Store) Prune(upToSeq uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	segs, err := listSegments(s.cfg.Dir, s.cfg.FilePrefix)
	if err != nil {
		return 0, err
	}
	if len(segs) <= 1 {
		return 0, nil
	}

	now := time.Now()
	removed := 0
	for i := 0; i < len(segs)-1; i++ {
		// A segment's records end just before the next segment's start.
		if segs[i+1].startSeq-1 > upToSeq {
			break
		}
		if len(segs)-removed-1 < s.cfg.RetainSegments {
			break
		}
		if s.cfg.RetainAge > 0 {
			info, err := os.Stat(segs[i].path)
			if err == nil && now.Sub(info.ModTime()) < s.cfg.RetainAge {
				break
			}
		}
		if err := os.Remove(segs[i].path); err != nil {
			return removed, err
		}
		logs.Infof("wal: pruned segment %s (records <= %d)", segs[i].path, upToSeq)
		removed++
	}
	return removed, nil
}

func (s *Store) failLocked(op string, err error) {
	if s.failed != nil {
		return
	}
	s.failed = errors.Wrap(ErrDurability, fmt.Sprintf("%s: %v", op, err))
	logs.Errorf("wal: durability failure during %s: %v", op, err)
}
