// Package codec serializes WAL record payloads. Payloads are JSON so
// variable-length identifiers and decimal amounts survive round-trips
// unchanged; framing and checksums live in the wal package.
package codec

import (
	json "github.com/goccy/go-json"
	"github.com/yanun0323/errors"

	"main/internal/schema"
)

// EncodeOrderNew serializes a freshly accepted order.
func EncodeOrderNew(order schema.Order) ([]byte, error) {
	data, err := json.Marshal(order)
	if err != nil {
		return nil, errors.Wrap(err, "encode order new")
	}
	return data, nil
}

// DecodeOrderNew parses an OrderNew payload.
func DecodeOrderNew(src []byte) (schema.Order, error) {
	var order schema.Order
	if err := json.Unmarshal(src, &order); err != nil {
		return schema.Order{}, errors.Wrap(err, "decode order new")
	}
	return order, nil
}

// EncodeExecution serializes the execution report carried by OrderUpdate,
// OrderFill, and OrderCancel records.
func EncodeExecution(report schema.ExecutionReport) ([]byte, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, errors.Wrap(err, "encode execution report")
	}
	return data, nil
}

// DecodeExecution parses an execution report payload.
func DecodeExecution(src []byte) (schema.ExecutionReport, error) {
	var report schema.ExecutionReport
	if err := json.Unmarshal(src, &report); err != nil {
		return schema.ExecutionReport{}, errors.Wrap(err, "decode execution report")
	}
	return report, nil
}
