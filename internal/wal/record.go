package wal

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"os"

	"github.com/yanun0323/errors"

	"main/internal/schema"
)

const (
	recordHeaderSize   = 32
	recordChecksumSize = 4
)

var (
	recordMagic = [4]byte{'W', 'A', 'L', '1'}
	crcTable    = crc32.MakeTable(crc32.Castagnoli)
)

var (
	ErrInvalidMagic            = errors.New("wal invalid magic")
	ErrUnsupportedRecordVer    = errors.New("wal unsupported record version")
	ErrInvalidRecordHeaderSize = errors.New("wal invalid header size")
	ErrChecksumMismatch        = errors.New("wal checksum mismatch")
	ErrPayloadTooLarge         = errors.New("wal payload too large")
)

const maxPayloadLen = uint64(^uint32(0))

func encodeHeader(dst []byte, header schema.RecordHeader, payloadLen int) {
	_ = dst[recordHeaderSize-1]
	copy(dst[0:4], recordMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], header.Version)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(recordHeaderSize))
	binary.LittleEndian.PutUint16(dst[8:10], uint16(header.Type))
	binary.LittleEndian.PutUint16(dst[10:12], header.Flags)
	binary.LittleEndian.PutUint32(dst[12:16], uint32(payloadLen))
	binary.LittleEndian.PutUint64(dst[16:24], header.Seq)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(header.TimestampNs))
}

func checksum(header []byte, payload []byte) uint32 {
	crc := crc32.Update(0, crcTable, header)
	return crc32.Update(crc, crcTable, payload)
}

func decodeRecordHeader(src []byte) (schema.RecordHeader, uint32, error) {
	if len(src) < recordHeaderSize {
		return schema.RecordHeader{}, 0, ErrInvalidRecordHeaderSize
	}
	if !bytes.Equal(src[0:4], recordMagic[:]) {
		return schema.RecordHeader{}, 0, ErrInvalidMagic
	}
	if ver := binary.LittleEndian.Uint16(src[4:6]); ver != schema.SchemaVersion {
		return schema.RecordHeader{}, 0, ErrUnsupportedRecordVer
	}
	if headerSize := binary.LittleEndian.Uint16(src[6:8]); headerSize != recordHeaderSize {
		return schema.RecordHeader{}, 0, ErrInvalidRecordHeaderSize
	}
	h := schema.RecordHeader{
		Type:        schema.RecordType(binary.LittleEndian.Uint16(src[8:10])),
		Version:     binary.LittleEndian.Uint16(src[4:6]),
		Flags:       binary.LittleEndian.Uint16(src[10:12]),
		Seq:         binary.LittleEndian.Uint64(src[16:24]),
		TimestampNs: int64(binary.LittleEndian.Uint64(src[24:32])),
	}
	payloadLen := binary.LittleEndian.Uint32(src[12:16])
	return h, payloadLen, nil
}

func frameSize(payloadLen int) int64 {
	return int64(recordHeaderSize + payloadLen + recordChecksumSize)
}

// hasValidFrame reports whether data contains a fully valid record frame at
// any byte offset. Used after a decode failure to tell a torn tail from
// mid-stream corruption: nothing decodable ever follows a torn tail.
func hasValidFrame(data []byte) bool {
	for i := 0; int64(i)+frameSize(0) <= int64(len(data)); i++ {
		if !bytes.Equal(data[i:i+4], recordMagic[:]) {
			continue
		}
		_, payloadLen, err := decodeRecordHeader(data[i : i+recordHeaderSize])
		if err != nil {
			continue
		}
		end := int64(i) + frameSize(int(payloadLen))
		if end > int64(len(data)) {
			continue
		}
		frame := data[i:end]
		expected := binary.LittleEndian.Uint32(frame[len(frame)-recordChecksumSize:])
		if checksum(frame[:recordHeaderSize], frame[recordHeaderSize:len(frame)-recordChecksumSize]) == expected {
			return true
		}
	}
	return false
}

// tailHasValidFrame scans the bytes of path from offset onward for a valid
// record frame.
func tailHasValidFrame(path string, offset int64) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if offset >= int64(len(data)) {
		return false, nil
	}
	return hasValidFrame(data[offset:]), nil
}
