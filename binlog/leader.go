package binlog

import (
	"fmt"

	"github.com/tablelog/binlog/types"
)

// AppendEntry implements the leader-side write path (distilled spec §4.4):
// assign the next log index, frame and persist the entry to the Write
// Handle, roll to a new segment first if the threshold is exceeded, then
// publish the new tail and wake the Follower Pusher. Only valid on a
// Leader-role Replicator.
func (r *Replicator) AppendEntry(term uint64, pk, value []byte, ts uint64) (uint64, error) {
	if r.Stopped() {
		return 0, types.ErrStopped
	}
	if r.role != Leader {
		return 0, fmt.Errorf("binlog: AppendEntry called on a %s replicator", r.role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running.Load() {
		return 0, types.ErrStopped
	}

	// lastLogIndex holds log_offset: the next index to assign, one past the
	// most recently persisted entry. A fresh table's zero value correctly
	// assigns index 0 to its first entry.
	index := r.lastLogIndex
	entry := types.LogEntry{LogIndex: index, Term: term, PK: pk, Value: value, TS: ts}

	payload, n, err := entry.SerializeTo(nil)
	if err != nil {
		return 0, fmt.Errorf("binlog: serialize entry %d: %w", index, err)
	}
	payload = payload[:n]

	// Roll before writing if this record would push the current segment
	// past the configured threshold (distilled spec §4.1: "check before
	// writing, not after" -- a segment may end up slightly under, never
	// over, the threshold).
	if r.write == nil || r.write.Size()+uint64(len(payload)) > r.cfg.SegmentSizeBytes {
		if err := r.rollWriteLog(index); err != nil {
			return 0, err
		}
	}

	if err := r.write.Append(index, term, payload); err != nil {
		return 0, fmt.Errorf("binlog: append entry %d: %w", index, err)
	}

	r.lastLogIndex = index + 1
	r.lastLogTerm = term
	r.logOffset.Store(index + 1)

	r.metrics.appends.Inc()
	r.metrics.appendBytes.Add(float64(len(payload)))

	r.cond.Broadcast()
	return index, nil
}

// lastLog returns (log_offset, last_log_term) under mu: log_offset is one
// past the most recently persisted entry's index, not that index itself.
func (r *Replicator) lastLog() (uint64, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastLogIndex, r.lastLogTerm
}
