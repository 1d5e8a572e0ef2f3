package main

import (
	"flag"
	"fmt"
	"log"

	"main/internal/codec"
	"main/internal/schema"
	"main/internal/wal"
)

func main() {
	dir := flag.String("dir", "testdata/wal", "WAL directory")
	prefix := flag.String("prefix", "wal", "WAL file prefix")
	from := flag.Uint64("from", 0, "First sequence to print (0=all)")
	decode := flag.Bool("decode", false, "Decode known payload types")
	flag.Parse()

	var index int
	err := wal.Scan(*dir, *prefix, func(header schema.RecordHeader, payload []byte) error {
		if *from > 0 && header.Seq < *from {
			return nil
		}
		index++
		fmt.Printf("%06d seq=%d type=%s ts=%d len=%d\n", index, header.Seq, header.Type, header.TimestampNs, len(payload))
		if *decode {
			printDecoded(header.Type, payload)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}
}

func printDecoded(t schema.RecordType, payload []byte) {
	switch t {
	case schema.RecordOrderNew:
		order, err := codec.DecodeOrderNew(payload)
		if err != nil {
			fmt.Printf("       decode error: %v\n", err)
			return
		}
		fmt.Printf("       order %s %s %s %s qty=%s price=%s strategy=%s\n",
			order.ClientOrderID, order.Symbol, order.Side, order.Type, order.Quantity, order.Price, order.StrategyID)
	case schema.RecordOrderUpdate, schema.RecordOrderFill, schema.RecordOrderCancel:
		report, err := codec.DecodeExecution(payload)
		if err != nil {
			fmt.Printf("       decode error: %v\n", err)
			return
		}
		fmt.Printf("       report %s delta=%s exec=%s qty=%s price=%s fee=%s\n",
			report.ClientOrderID, report.Delta, report.ExecutionID, report.FillQty, report.FillPrice, report.Fee)
	case schema.RecordCheckpoint:
		cp, err := codec.DecodeCheckpoint(payload)
		if err != nil {
			fmt.Printf("       decode error: %v\n", err)
			return
		}
		fmt.Printf("       checkpoint covers seq=%d orders=%d positions=%d\n", cp.Seq, len(cp.Orders), len(cp.Positions))
	case schema.RecordRotation:
		fmt.Printf("       segment rotation\n")
	}
}
