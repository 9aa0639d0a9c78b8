package binlog

import (
	"context"
	"fmt"

	"github.com/tablelog/binlog/rpc"
	"github.com/tablelog/binlog/types"
)

// AppendEntries implements rpc.Handler: the follower-side receive path
// (distilled spec §4.5). It performs the continuity check against
// pre_log_index/pre_log_term, rejects a batch whose entries are not a
// contiguous strictly-increasing run (Open Question 3's batch-level
// pre-check, applied before any entry in the batch is written so a bad
// batch can never partially land), then appends every entry through the
// same Write Handle path AppendEntry uses.
func (r *Replicator) AppendEntries(ctx context.Context, req *rpc.AppendEntriesRequest) (*rpc.AppendEntriesResponse, error) {
	if r.Stopped() {
		return &rpc.AppendEntriesResponse{Code: rpc.CodeStopped}, nil
	}
	if r.role != Follower {
		return nil, fmt.Errorf("binlog: AppendEntries called on a %s replicator", r.role)
	}

	if err := checkBatchMonotonic(req.Entries); err != nil {
		return &rpc.AppendEntriesResponse{Code: rpc.CodeContinuityMismatch}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running.Load() {
		return &rpc.AppendEntriesResponse{Code: rpc.CodeStopped}, nil
	}

	if req.PreLogIndex != r.lastLogIndex || req.PreLogTerm != r.lastLogTerm {
		// The follower's own cursor is never adjusted on a mismatch; the
		// leader's Follower Pusher buffers the rejected request for retry
		// but does not renegotiate next_index either -- a deliberately
		// preserved gap (§9): this core is primary-backup log shipping,
		// not a consensus protocol that would reconcile the divergence.
		return &rpc.AppendEntriesResponse{Code: rpc.CodeContinuityMismatch}, nil
	}

	for _, e := range req.Entries {
		payload, n, err := e.SerializeTo(nil)
		if err != nil {
			return &rpc.AppendEntriesResponse{Code: rpc.CodeWriteFailed}, nil
		}
		payload = payload[:n]

		if r.write == nil || r.write.Size()+uint64(len(payload)) > r.cfg.SegmentSizeBytes {
			if err := r.rollWriteLog(e.LogIndex); err != nil {
				return &rpc.AppendEntriesResponse{Code: rpc.CodeWriteFailed}, nil
			}
		}
		if err := r.write.Append(e.LogIndex, e.Term, payload); err != nil {
			return &rpc.AppendEntriesResponse{Code: rpc.CodeWriteFailed}, nil
		}

		// Commit the tail right after this entry lands, not once after the
		// whole batch: a write failure partway through must still leave
		// last_log_index reflecting the entries that did make it to disk,
		// or a leader retry (still carrying the old pre_log_index) would
		// pass the continuity check again and re-append them.
		r.lastLogIndex = e.LogIndex + 1
		r.lastLogTerm = e.Term
		r.logOffset.Store(e.LogIndex + 1)

		r.metrics.appends.Inc()
		r.metrics.appendBytes.Add(float64(len(payload)))
	}

	r.cond.Broadcast()

	return &rpc.AppendEntriesResponse{Code: rpc.CodeSuccess}, nil
}

// checkBatchMonotonic verifies entries form a contiguous, strictly
// increasing run among themselves. Applied before any entry in the batch is
// written, so a malformed batch never lands partially.
func checkBatchMonotonic(entries []types.LogEntry) error {
	for i := 1; i < len(entries); i++ {
		if entries[i].LogIndex != entries[i-1].LogIndex+1 {
			return types.ErrNonMonotonicBatch
		}
	}
	return nil
}
