package schema

import "fmt"

// SchemaVersion is the current WAL record schema version.
const SchemaVersion uint16 = 1

// RecordType defines the category of a record stored in the WAL.
type RecordType uint16

const (
	RecordUnknown RecordType = iota
	RecordOrderNew
	RecordOrderUpdate
	RecordOrderFill
	RecordOrderCancel
	RecordCheckpoint
	RecordRotation
)

func (t RecordType) String() string {
	switch t {
	case RecordOrderNew:
		return "OrderNew"
	case RecordOrderUpdate:
		return "OrderUpdate"
	case RecordOrderFill:
		return "OrderFill"
	case RecordOrderCancel:
		return "OrderCancel"
	case RecordCheckpoint:
		return "Checkpoint"
	case RecordRotation:
		return "Rotation"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(t))
	}
}

// RecordHeader is the common metadata attached to every WAL record.
type RecordHeader struct {
	Type        RecordType
	Version     uint16
	Flags       uint16
	Seq         uint64
	TimestampNs int64
}

// NewRecordHeader builds a header with the current schema version.
func NewRecordHeader(recordType RecordType, seq uint64, timestampNs int64) RecordHeader {
	return RecordHeader{
		Type:        recordType,
		Version:     SchemaVersion,
		Seq:         seq,
		TimestampNs: timestampNs,
	}
}
