package binlog

import (
	"github.com/tablelog/binlog/types"
)

// runApplier is the Applier background task (distilled spec §4.7): for a
// Follower replicator, repeatedly read the next unapplied entry through the
// Read Cursor and hand it to ApplyFn, advancing apply_log_offset only once
// ApplyFn accepts it. A false return is retried indefinitely with no
// backoff other than the drain tick -- the distilled spec's at-least-once
// apply semantics place the idempotence burden on the caller's ApplyFn,
// not here.
func (r *Replicator) runApplier() {
	for {
		r.mu.Lock()
		for r.running.Load() && r.applyLogOffset.Load() >= r.lastLogIndex {
			r.cond.Wait()
		}
		stopped := !r.running.Load()
		r.mu.Unlock()
		if stopped {
			return
		}

		before := r.applyLogOffset.Load()
		r.applyNext()
		if r.applyLogOffset.Load() == before {
			// No progress (read, decode or ApplyFn failure): retry on the
			// next drain tick or Notify rather than immediately.
			r.mu.Lock()
			if r.running.Load() {
				r.cond.Wait()
			}
			r.mu.Unlock()
		}
	}
}

// applyNext reads and applies exactly one entry at the current
// apply_log_offset (the next index not yet applied), if one is available.
func (r *Replicator) applyNext() {
	r.mu.Lock()
	offset := r.applyLogOffset.Load()
	if offset >= r.lastLogIndex {
		r.mu.Unlock()
		return
	}
	parts := r.segments.parts()
	fn := r.applyFn
	rec, err := r.read.ReadNext(parts, offset)
	r.mu.Unlock()

	if err != nil {
		r.metrics.applyErrors.Inc()
		r.logger.Log("msg", "applier read failed", "offset", offset, "err", err)
		return
	}
	if fn == nil {
		return
	}

	var entry types.LogEntry
	if err := entry.ParseFrom(rec.Payload); err != nil {
		r.metrics.applyErrors.Inc()
		r.logger.Log("msg", "applier decode failed, stalling at offset", "offset", offset, "err", err)
		return
	}

	r.metrics.applyAttempts.Inc()
	if !fn(entry) {
		r.metrics.applyErrors.Inc()
		return
	}

	r.applyLogOffset.Store(entry.LogIndex + 1)
	r.metrics.applyOffset.Set(float64(entry.LogIndex))
}
