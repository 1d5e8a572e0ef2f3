package codec

import (
	json "github.com/goccy/go-json"
	"github.com/yanun0323/errors"

	"main/internal/schema"
)

// Checkpoint is the full state snapshot embedded in a Checkpoint record.
// Seq is the sequence number as of which the snapshot is valid; recovery
// replays only records beyond it.
type Checkpoint struct {
	Seq       uint64            `json:"seq"`
	TakenAtNs int64             `json:"takenAtNs"`
	Orders    []schema.Order    `json:"orders"`
	Positions []schema.Position `json:"positions"`
}

// EncodeCheckpoint serializes a checkpoint snapshot.
func EncodeCheckpoint(cp Checkpoint) ([]byte, error) {
	data, err := json.Marshal(cp)
	if err != nil {
		return nil, errors.Wrap(err, "encode checkpoint")
	}
	return data, nil
}

// DecodeCheckpoint parses a checkpoint payload.
func DecodeCheckpoint(src []byte) (Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(src, &cp); err != nil {
		return Checkpoint{}, errors.Wrap(err, "decode checkpoint")
	}
	return cp, nil
}
