package binlog

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/tablelog/binlog/rpc"
	"github.com/tablelog/binlog/types"
)

// runPusher is the Follower Pusher background task (distilled spec §4.6):
// for a Leader replicator, one goroutine per follower that wakes on Notify
// or its drain tick, reads newly-appended entries through a private Read
// Cursor, and ships them via AppendEntries RPC. Every push attempt, whether
// a retry-buffer drain (Open Question 4's resolution) or a freshly read
// record, first takes a token from a per-follower limiter. While the retry
// buffer is non-empty the loop does not wait for a tick, so the limiter is
// what bounds how often a failing follower is re-sent to.
func (r *Replicator) runPusher(fc *FollowerTarget) {
	limiter := rate.NewLimiter(rate.Limit(50), 50) // 50 pushes/sec, burst 50

	for {
		r.mu.Lock()
		for r.running.Load() && fc.nextIndex >= r.lastLogIndex && len(fc.retryBuffer) == 0 {
			r.cond.Wait()
		}
		stopped := !r.running.Load()
		r.mu.Unlock()
		if stopped {
			return
		}

		if err := limiter.Wait(context.Background()); err != nil {
			return
		}

		if err := r.pushOne(fc); err != nil {
			r.metrics.pushErrors.Inc()
			r.logger.Log("msg", "push failed", "endpoint", fc.endpoint, "err", err)
		}
	}
}

// pushOne performs one PushOne attempt (distilled spec §4.6): snapshot the
// one entry to send under mu, release mu for the blocking RPC, then
// recommit the follower's cursor under mu -- the same
// snapshot-under-lock/unlock-for-IO/recommit-under-lock shape the teacher
// uses around its own disk I/O in wal.go's write path.
func (r *Replicator) pushOne(fc *FollowerTarget) error {
	r.mu.Lock()
	if !r.running.Load() {
		r.mu.Unlock()
		return nil
	}

	var entries []types.LogEntry
	var readErr error
	// fc.nextIndex already carries the "one past last" convention
	// log_offset does, so it doubles directly as pre_log_index.
	preIndex := fc.nextIndex
	preTerm := fc.matchTerm

	if len(fc.retryBuffer) > 0 {
		// Drain the retry buffer before reading anything new (Open Question
		// 4's resolution), one entry per tick to preserve the one-entry-
		// per-tick pacing this design uses instead of batching.
		entries = fc.retryBuffer[:1]
	} else if fc.nextIndex < r.lastLogIndex {
		parts := r.segments.parts()
		rec, err := fc.reader.ReadNext(parts, fc.nextIndex)
		if err == nil {
			var e types.LogEntry
			if err = e.ParseFrom(rec.Payload); err == nil {
				entries = []types.LogEntry{e}
			}
		}
		readErr = err
	}
	term := r.lastLogTerm
	r.mu.Unlock()

	if readErr != nil {
		return readErr
	}
	if len(entries) == 0 {
		return nil
	}

	r.metrics.pushAttempts.Inc()

	// One transport-level retry: a failed RPC is sent once more, each
	// attempt under its own RPCTimeout, before the entry is buffered.
	req := &rpc.AppendEntriesRequest{PreLogIndex: preIndex, PreLogTerm: preTerm, Term: term, Entries: entries}
	var resp *rpc.AppendEntriesResponse
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RPCTimeout)
		resp, err = fc.client.AppendEntries(ctx, req)
		cancel()
		if err == nil {
			break
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		// Transport failure: buffer for retry rather than dropping.
		fc.retryBuffer = entries
		r.metrics.retryBuffer.WithLabelValues(fc.endpoint).Set(float64(len(fc.retryBuffer)))
		return err
	}

	if resp.Code == rpc.CodeSuccess {
		last := entries[len(entries)-1]
		fc.matchIndex = last.LogIndex
		fc.matchTerm = last.Term
		fc.nextIndex = last.LogIndex + 1
		fc.retryBuffer = nil
		r.metrics.retryBuffer.WithLabelValues(fc.endpoint).Set(0)
		return nil
	}

	// Any non-success code (including a continuity mismatch) goes back into
	// the retry buffer; the leader does not downgrade next_index on its own
	// (a deliberately preserved gap -- this core is primary-backup log
	// shipping, not a consensus protocol that would renegotiate the cursor).
	fc.retryBuffer = entries
	r.metrics.retryBuffer.WithLabelValues(fc.endpoint).Set(float64(len(fc.retryBuffer)))
	return nil
}
