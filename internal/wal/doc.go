/*
Package wal is the append-only, segmented, checksummed log of order-state
transitions. It owns durability: no order or position mutation is visible
until its record has been appended here.

# Records

Each record is framed as a fixed binary header (magic, version, type, length,
sequence, timestamp) followed by the payload and a CRC32-Castagnoli checksum
over header and payload. Sequence numbers are log-global, strictly increasing,
and gapless; a gap is corruption, never silently skipped.

# Segments

Records are written to segment files named by their starting sequence number.
A segment rolls over when a size or record-count threshold is reached; a
Rotation record closes the rolled segment. Segments older than the latest
checkpoint become prunable under the retention policy.

# Durability modes

With SyncOnAppend every append is flushed and fsynced before returning. With
interval sync, appends are buffered and synced on a timer: a bounded window of
acknowledged-but-not-yet-durable records is lost on crash. That window is a
deliberate throughput trade-off, not a bug.

# Failure handling

A torn or checksum-failing record at the tail of the last segment is treated
as never committed: it is truncated at open and operation resumes. Corruption
anywhere earlier is fatal. Any append or sync error latches the store failed;
every later append returns ErrDurability.
*/
package wal
