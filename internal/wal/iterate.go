package wal

import (
	"fmt"
	"io"
	"os"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/schema"
)

// IterateFrom replays every record with sequence >= from, in commit order,
// validating checksums and sequence contiguity across all segments. A torn
// record at the very tail of the last segment stops iteration cleanly; any
// earlier corruption or sequence gap returns ErrCorrupted.
func (s *Store) IterateFrom(from uint64, fn func(schema.RecordHeader, []byte) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err := s.seg.flush(); err != nil {
		s.failLocked("flush", err)
		s.mu.Unlock()
		return s.failed
	}
	s.mu.Unlock()

	return iterateDir(s.cfg.Dir, s.cfg.FilePrefix, from, fn)
}

// Scan reads a WAL directory without opening it for appending. Tooling use.
func Scan(dir, prefix string, fn func(schema.RecordHeader, []byte) error) error {
	if prefix == "" {
		prefix = defaultFilePrefix
	}
	return iterateDir(dir, prefix, 0, fn)
}

func iterateDir(dir, prefix string, from uint64, fn func(schema.RecordHeader, []byte) error) error {
	segs, err := listSegments(dir, prefix)
	if err != nil {
		return err
	}

	var prev uint64
	for i, seg := range segs {
		lastSegment := i == len(segs)-1
		if err := iterateSegment(seg, lastSegment, from, &prev, fn); err != nil {
			return err
		}
	}
	return nil
}

func iterateSegment(seg segmentInfo, lastSegment bool, from uint64, prev *uint64, fn func(schema.RecordHeader, []byte) error) error {
	file, err := os.Open(seg.path)
	if err != nil {
		return err
	}
	defer file.Close()

	r := NewReader(file)
	for {
		header, payload, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if lastSegment {
				more, terr := tailHasValidFrame(seg.path, r.Offset())
				if terr != nil {
					return terr
				}
				if !more {
					// Never-committed tail; Open truncates it on the next start.
					logs.Warnf("wal: ignoring torn tail of %s at offset %d: %v", seg.path, r.Offset(), err)
					return nil
				}
			}
			return errors.Wrap(ErrCorrupted, fmt.Sprintf("segment %s offset %d: %v", seg.path, r.Offset(), err))
		}
		if *prev != 0 && header.Seq != *prev+1 {
			return errors.Wrap(ErrCorrupted, fmt.Sprintf("sequence gap in %s: %d -> %d", seg.path, *prev, header.Seq))
		}
		*prev = header.Seq

		if header.Seq < from {
			continue
		}
		if err := fn(header, payload); err != nil {
			return err
		}
	}
}
