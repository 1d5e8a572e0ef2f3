package wal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

type segmentInfo struct {
	path     string
	startSeq uint64
}

func segmentName(prefix string, startSeq uint64) string {
	return fmt.Sprintf("%s-%020d.wal", prefix, startSeq)
}

// listSegments returns the segment files under dir in sequence order.
func listSegments(dir, prefix string) ([]segmentInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var segs []segmentInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, ".wal") {
			continue
		}
		seqPart := strings.TrimSuffix(strings.TrimPrefix(name, prefix+"-"), ".wal")
		startSeq, err := strconv.ParseUint(seqPart, 10, 64)
		if err != nil {
			continue
		}
		segs = append(segs, segmentInfo{
			path:     filepath.Join(dir, name),
			startSeq: startSeq,
		})
	}
	sort.Slice(segs, func(i, j int) bool {
		return segs[i].startSeq < segs[j].startSeq
	})
	return segs, nil
}

type segmentWriter struct {
	file     *os.File
	buf      *bufio.Writer
	path     string
	startSeq uint64
	size     int64
	records  int64
}

func openSegment(dir, prefix string, startSeq uint64, bufferSize int) (*segmentWriter, error) {
	path := filepath.Join(dir, segmentName(prefix, startSeq))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return &segmentWriter{
		file:     file,
		buf:      bufio.NewWriterSize(file, bufferSize),
		path:     path,
		startSeq: startSeq,
	}, nil
}

func (s *segmentWriter) flush() error {
	if s == nil {
		return nil
	}
	return s.buf.Flush()
}

func (s *segmentWriter) sync() error {
	if s == nil {
		return nil
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *segmentWriter) close() error {
	if s == nil {
		return nil
	}
	if err := s.buf.Flush(); err != nil {
		_ = s.file.Close()
		return err
	}
	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
