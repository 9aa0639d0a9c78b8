package binlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tablelog/binlog/segment"
	"github.com/tablelog/binlog/types"
)

// recover rebuilds in-memory state from the metadata store and, unless
// Config.SkipTailScan is set, from a scan of the tail segment's frames.
// This resolves Open Question 2 (distilled spec §9): the original left
// log_offset/last_log_index/last_log_term at zero after a restart until the
// next append overwrote them, so a follower rejoining mid-term would fail
// every continuity check until it received a fresh entry. Called once from
// New, before the replicator is visible to callers.
func (r *Replicator) recover() error {
	if err := os.MkdirAll(r.logsDir, 0755); err != nil {
		return err
	}

	err := r.meta.Scan([]byte(types.MetaKeyPrefix), func(key, value []byte) error {
		part, err := types.DecodeLogPart(value)
		if err != nil {
			return fmt.Errorf("decode segment descriptor %q: %w", key, err)
		}
		r.segments.insert(part)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan segment index: %w", err)
	}

	last, ok := r.segments.last()
	if !ok {
		// Fresh table: roll the first segment now so AppendEntry has
		// somewhere to write immediately.
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.rollWriteLog(0)
	}

	w, err := segment.CreateWriter(r.logsDir, last.Name)
	if err != nil {
		return fmt.Errorf("reopen tail segment %s: %w", last.Name, err)
	}
	r.write = w

	if r.cfg.SkipTailScan {
		return nil
	}
	return r.scanTail(last)
}

// scanTail reads every frame in the tail segment to repopulate
// lastLogIndex, lastLogTerm and logOffset, the corrected behavior for Open
// Question 2.
func (r *Replicator) scanTail(part types.LogPart) error {
	f, err := os.Open(filepath.Join(r.logsDir, part.Name))
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var lastIndex, lastTerm uint64
	var found bool
	for {
		rec, err := segment.ReadOneFrame(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("scan tail segment %s: %w", part.Name, err)
		}
		lastIndex, lastTerm = rec.Index, rec.Term
		found = true
	}
	if !found {
		return nil
	}

	// log_offset is one past the last real index found, not that index
	// itself (binlog.AppendEntry's fetch-and-add convention).
	r.mu.Lock()
	r.lastLogIndex = lastIndex + 1
	r.lastLogTerm = lastTerm
	r.mu.Unlock()
	r.logOffset.Store(lastIndex + 1)
	// apply_log_offset is deliberately left at zero: nothing records which
	// entries were actually applied before a crash, so the Applier replays
	// the log from index 0 across every segment, leaning on ApplyFn's
	// idempotence per the
	// at-least-once apply semantics (distilled spec §3/§7).
	return nil
}
