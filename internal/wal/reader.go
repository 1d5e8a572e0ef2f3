package wal

import (
	"bufio"
	"encoding/binary"
	"io"

	"main/internal/schema"
)

// Reader decodes WAL records sequentially from a single segment.
type Reader struct {
	r         *bufio.Reader
	headerBuf []byte
	payload   []byte
	offset    int64
}

// NewReader wraps an io.Reader with WAL record decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:         bufio.NewReader(r),
		headerBuf: make([]byte, recordHeaderSize),
	}
}

// Offset returns the byte offset just past the last fully decoded record.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Next returns the next record header and payload.
// The payload is only valid until the next call to Next.
func (r *Reader) Next() (schema.RecordHeader, []byte, error) {
	var header schema.RecordHeader

	n, err := io.ReadFull(r.r, r.headerBuf)
	if err != nil {
		if err == io.EOF && n == 0 {
			return header, nil, io.EOF
		}
		return header, nil, io.ErrUnexpectedEOF
	}

	header, payloadLen, err := decodeRecordHeader(r.headerBuf)
	if err != nil {
		return header, nil, err
	}
	if uint64(payloadLen) > maxPayloadLen {
		return header, nil, ErrPayloadTooLarge
	}

	if payloadLen > 0 {
		if cap(r.payload) < int(payloadLen) {
			r.payload = make([]byte, payloadLen)
		}
		r.payload = r.payload[:payloadLen]
		if _, err := io.ReadFull(r.r, r.payload); err != nil {
			return header, nil, io.ErrUnexpectedEOF
		}
	} else {
		r.payload = r.payload[:0]
	}

	var checksumBuf [recordChecksumSize]byte
	if _, err := io.ReadFull(r.r, checksumBuf[:]); err != nil {
		return header, nil, io.ErrUnexpectedEOF
	}

	expected := binary.LittleEndian.Uint32(checksumBuf[:])
	if sum := checksum(r.headerBuf, r.payload); sum != expected {
		return header, nil, ErrChecksumMismatch
	}

	r.offset += frameSize(int(payloadLen))
	return header, r.payload, nil
}
