package binlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tablelog/binlog/meta"
	"github.com/tablelog/binlog/rpc"
	"github.com/tablelog/binlog/types"
)

func newTestReplicator(t *testing.T, role Role, opts ...Option) *Replicator {
	t.Helper()
	dir := t.TempDir()
	store, err := meta.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r, err := New(dir, store, role, nil, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Stop() })
	return r
}

func TestAppendEntryAssignsSequentialIndices(t *testing.T) {
	r := newTestReplicator(t, Leader)

	idx1, err := r.AppendEntry(1, []byte("k1"), []byte("v1"), 100)
	require.NoError(t, err)
	require.Equal(t, uint64(0), idx1)

	idx2, err := r.AppendEntry(1, []byte("k2"), []byte("v2"), 101)
	require.NoError(t, err)
	require.Equal(t, uint64(1), idx2)

	require.Equal(t, uint64(2), r.LogOffset())
}

func TestAppendEntryRollsOverWhenSegmentFull(t *testing.T) {
	// A tiny threshold forces a rollover on nearly every append.
	r := newTestReplicator(t, Leader, WithSegmentSizeMiB(0))
	r.cfg.SegmentSizeBytes = 1

	for i := 0; i < 5; i++ {
		_, err := r.AppendEntry(1, []byte("k"), []byte("v"), uint64(i))
		require.NoError(t, err)
	}
	// recover() rolls an initial empty segment at index 0, then every
	// append forces its own rollover under a 1-byte threshold.
	require.Equal(t, 6, r.segments.len())
}

func TestAppendEntryRejectsOnStoppedReplicator(t *testing.T) {
	r := newTestReplicator(t, Leader)
	require.NoError(t, r.Stop())

	_, err := r.AppendEntry(1, []byte("k"), []byte("v"), 1)
	require.ErrorIs(t, err, types.ErrStopped)
}

func TestAppendEntriesContinuityCheck(t *testing.T) {
	f := newTestReplicator(t, Follower)

	resp, err := f.AppendEntries(context.Background(), &rpc.AppendEntriesRequest{
		PreLogIndex: 0,
		PreLogTerm:  0,
		Term:        1,
		Entries: []types.LogEntry{
			{LogIndex: 0, Term: 1, PK: []byte("k1"), Value: []byte("v1")},
			{LogIndex: 1, Term: 1, PK: []byte("k2"), Value: []byte("v2")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, rpc.CodeSuccess, resp.Code)
	require.Equal(t, uint64(2), f.LogOffset())

	// A stale pre_log_index/pre_log_term no longer matches the follower's
	// new tail.
	resp, err = f.AppendEntries(context.Background(), &rpc.AppendEntriesRequest{
		PreLogIndex: 0,
		PreLogTerm:  0,
		Term:        1,
		Entries:     []types.LogEntry{{LogIndex: 0, Term: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, rpc.CodeContinuityMismatch, resp.Code)
}

func TestAppendEntriesRejectsNonMonotonicBatch(t *testing.T) {
	f := newTestReplicator(t, Follower)

	resp, err := f.AppendEntries(context.Background(), &rpc.AppendEntriesRequest{
		PreLogIndex: 0,
		PreLogTerm:  0,
		Term:        1,
		Entries: []types.LogEntry{
			{LogIndex: 0, Term: 1},
			{LogIndex: 2, Term: 1}, // skips index 1
		},
	})
	require.NoError(t, err)
	require.Equal(t, rpc.CodeContinuityMismatch, resp.Code)
	require.Equal(t, uint64(0), f.LogOffset())
}

func TestRecoverRestoresTailAfterRestart(t *testing.T) {
	dir := t.TempDir()
	store, err := meta.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	r1, err := New(dir, store, Leader, nil, nil)
	require.NoError(t, err)
	_, err = r1.AppendEntry(3, []byte("k"), []byte("v"), 1)
	require.NoError(t, err)
	_, err = r1.AppendEntry(3, []byte("k2"), []byte("v2"), 2)
	require.NoError(t, err)
	require.NoError(t, r1.Stop())

	r2, err := New(dir, store, Leader, nil, nil)
	require.NoError(t, err)
	defer r2.Stop()

	require.Equal(t, uint64(2), r2.LogOffset())
	idx3, term3 := r2.lastLog()
	require.Equal(t, uint64(2), idx3)
	require.Equal(t, uint64(3), term3)
}

func TestRecoverSkipTailScanLeavesOffsetZero(t *testing.T) {
	dir := t.TempDir()
	store, err := meta.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	r1, err := New(dir, store, Leader, nil, nil)
	require.NoError(t, err)
	_, err = r1.AppendEntry(1, []byte("k"), []byte("v"), 1)
	require.NoError(t, err)
	require.NoError(t, r1.Stop())

	r2, err := New(dir, store, Leader, nil, nil, WithSkipTailScan())
	require.NoError(t, err)
	defer r2.Stop()

	require.Equal(t, uint64(0), r2.LogOffset())
}

func TestNewFollowerTargetCapturesCurrentTail(t *testing.T) {
	r := newTestReplicator(t, Leader)

	_, err := r.AppendEntry(5, []byte("k1"), []byte("v1"), 1)
	require.NoError(t, err)

	fc := r.NewFollowerTarget("follower-a", nil)
	require.Equal(t, uint64(1), fc.nextIndex)
	require.Equal(t, uint64(5), fc.matchTerm)

	fc2 := r.NewFollowerTarget("follower-b", nil)
	require.NotSame(t, fc.reader, fc2.reader)
}

func TestApplierAdvancesApplyOffset(t *testing.T) {
	f := newTestReplicator(t, Follower, WithDrainTickInterval(20*time.Millisecond))

	applied := make(chan uint64, 4)
	f.SetApplyFn(func(e types.LogEntry) bool {
		applied <- e.LogIndex
		return true
	})
	f.Start()

	resp, err := f.AppendEntries(context.Background(), &rpc.AppendEntriesRequest{
		Entries: []types.LogEntry{
			{LogIndex: 0, Term: 1, PK: []byte("k1"), Value: []byte("v1")},
			{LogIndex: 1, Term: 1, PK: []byte("k2"), Value: []byte("v2")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, rpc.CodeSuccess, resp.Code)
	f.Notify()

	require.Equal(t, uint64(0), <-applied)
	require.Equal(t, uint64(1), <-applied)
}
