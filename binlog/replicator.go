package binlog

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tablelog/binlog/rpc"
	"github.com/tablelog/binlog/segment"
	"github.com/tablelog/binlog/types"
)

// FollowerTarget is the leader's per-follower replication state named in
// the distilled spec's data model (FollowerCursor, §3): the leader-side
// bookkeeping for one follower endpoint, guarded by Replicator.mu alongside
// the rest of the replicator's state. Each target owns a private Read
// Cursor so concurrent pushers for different followers never fight over
// one another's file position.
type FollowerTarget struct {
	endpoint    string
	client      *rpc.Client
	nextIndex   uint64
	matchIndex  uint64
	matchTerm   uint64
	reader      *segment.Reader
	retryBuffer []types.LogEntry
}

// Endpoint returns the address this target pushes to.
func (fc *FollowerTarget) Endpoint() string { return fc.endpoint }

// MatchIndex returns the highest index this target has acknowledged.
func (fc *FollowerTarget) MatchIndex() uint64 { return fc.matchIndex }

// Replicator is the Replicator Core: the single object a table's binlog is
// built around, owning the Segment Index, Write Handle, Read Cursor and (by
// role) the Follower Pusher / Applier background tasks. One mutex plus one
// condition variable guard every field below, following the distilled
// spec's concurrency model (§5) rather than the teacher's atomic
// state-swap design.
type Replicator struct {
	mu   sync.Mutex
	cond *sync.Cond

	dir     string
	logsDir string
	meta    types.MetaStore

	role Role
	cfg  Config

	segments *segmentIndex
	write    *segment.Writer
	read     *segment.Reader

	// lastLogIndex is log_offset: the next index AppendEntry will assign,
	// one past the most recently persisted entry (0 for an empty log).
	// lastLogTerm is that entry's term. Both guarded by mu. logOffset
	// mirrors lastLogIndex but is additionally exposed as an atomic so
	// read-only callers of LogOffset can avoid taking mu.
	lastLogIndex uint64
	lastLogTerm  uint64
	logOffset    atomic.Uint64

	// applyLogOffset is the Applier's frontier, in the same one-past form
	// as lastLogIndex: the next index to hand to ApplyFn, one past the
	// highest index ApplyFn has accepted (0 when nothing has been applied).
	applyLogOffset atomic.Uint64

	// followers is populated only when role == Leader.
	followers []*FollowerTarget

	// applyFn is populated only when role == Follower.
	applyFn types.ApplyFn

	running atomic.Bool
	stopped chan struct{}
	wg      sync.WaitGroup

	logger  log.Logger
	metrics *metrics
}

// Role reports this replicator's fixed personality.
type Role = types.Role

const (
	Leader   = types.Leader
	Follower = types.Follower
)

// New constructs a Replicator rooted at dir, recovering any existing state
// from meta before returning (distilled spec §4.1's "on startup, scan the
// metadata store to rebuild the Segment Index"). role fixes the instance's
// personality for its lifetime; a Leader additionally needs WithFollowers,
// a Follower additionally needs SetApplyFn, called after New returns.
func New(dir string, meta types.MetaStore, role Role, logger log.Logger, reg prometheus.Registerer, opts ...Option) (*Replicator, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.applyDefaults()

	if logger == nil {
		logger = log.NewNopLogger()
	}

	r := &Replicator{
		dir:      dir,
		logsDir:  filepath.Join(dir, "logs"),
		meta:     meta,
		role:     role,
		cfg:      cfg,
		segments: newSegmentIndex(),
		read:     segment.NewReader(filepath.Join(dir, "logs"), cfg.LegacySegmentSelection),
		stopped:  make(chan struct{}),
		logger:   log.With(logger, "component", "replicator", "role", role.String()),
		metrics:  newMetrics(reg),
	}
	r.cond = sync.NewCond(&r.mu)

	if err := r.recover(); err != nil {
		return nil, fmt.Errorf("binlog: recover: %w", err)
	}

	r.running.Store(true)
	return r, nil
}

// NewFollowerTarget wraps an already-dialed RPC client as a push target,
// starting replication at this leader's current log_offset -- ordinarily
// index 0, term 0 for a brand-new follower. Call before Start, then pass
// the result (alongside any others) to WithFollowers.
func (r *Replicator) NewFollowerTarget(endpoint string, client *rpc.Client) *FollowerTarget {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &FollowerTarget{
		endpoint:  endpoint,
		client:    client,
		nextIndex: r.lastLogIndex,
		matchTerm: r.lastLogTerm,
		reader:    segment.NewReader(r.logsDir, r.cfg.LegacySegmentSelection),
	}
}

// WithFollowers registers the leader-side stubs a Leader replicator pushes
// to. It must be called once, after New, before Notify/AppendEntry run
// concurrently with it.
func (r *Replicator) WithFollowers(followers []*FollowerTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.followers = followers
}

// SetApplyFn registers the state-machine callback a Follower replicator's
// Applier drives. It must be called once, after New, before the Applier
// background task is started.
func (r *Replicator) SetApplyFn(fn types.ApplyFn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyFn = fn
}

// Start launches this replicator's background tasks: one Follower Pusher
// goroutine per registered follower for a Leader, or the Applier for a
// Follower, plus a periodic ticker that broadcasts cond on
// Config.DrainTickInterval so a background task blocked in cond.Wait()
// re-checks its condition even absent an explicit Notify. Call once, after
// WithFollowers/SetApplyFn have populated the role-specific state.
func (r *Replicator) Start() {
	r.wg.Add(1)
	go r.runTicker()

	switch r.role {
	case Leader:
		for _, fc := range r.followers {
			fc := fc
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.runPusher(fc)
			}()
		}
	case Follower:
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.runApplier()
		}()
	}
}

func (r *Replicator) runTicker() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.DrainTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Notify()
		case <-r.stopped:
			return
		}
	}
}

// LogOffset returns log_offset: the next index to be assigned, one past the
// most recently persisted entry.
func (r *Replicator) LogOffset() uint64 { return r.logOffset.Load() }

// ApplyLogOffset returns one past the highest index consumed by the state
// machine (0 when nothing has been applied yet).
func (r *Replicator) ApplyLogOffset() uint64 { return r.applyLogOffset.Load() }

// Notify wakes any background task (Follower Pusher, Applier) blocked
// waiting for new data, per the distilled spec's "the writer notifies
// waiters after each successful append" (§4.4/§4.7).
func (r *Replicator) Notify() {
	r.mu.Lock()
	r.cond.Broadcast()
	r.mu.Unlock()
}

// Stop permanently halts this replicator. Subsequent AppendEntry calls
// return types.ErrStopped and AppendEntries calls answer rpc.CodeStopped;
// background tasks observe running==false on their next wakeup and exit.
// Stop waits up to drainDeadline for them before closing files and clients.
func (r *Replicator) Stop() error {
	if !r.running.CompareAndSwap(true, false) {
		return nil
	}
	r.mu.Lock()
	r.cond.Broadcast()
	r.mu.Unlock()
	close(r.stopped)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(drainDeadline):
		r.logger.Log("msg", "background tasks still running after drain deadline")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.write != nil {
		err = r.write.Close()
	}
	if cerr := r.read.Close(); cerr != nil && err == nil {
		err = cerr
	}
	for _, fc := range r.followers {
		if fc.reader != nil {
			if cerr := fc.reader.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		if fc.client != nil {
			if cerr := fc.client.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}
	return err
}

// Stopped reports whether Stop has been called.
func (r *Replicator) Stopped() bool { return !r.running.Load() }

// rollWriteLog implements RollWriteLog (distilled spec §4.1): close the
// current segment, create a new segment file named for its ordinal position
// (pad8 of the current segment count) and starting at startIndex, fsync its
// containing directory,
// persist the descriptor to the metadata store, then publish it into the
// Segment Index. Callers must hold mu.
func (r *Replicator) rollWriteLog(startIndex uint64) error {
	name := segmentName(r.segments.len())

	if r.write != nil {
		if err := r.write.Close(); err != nil {
			return fmt.Errorf("binlog: close previous segment: %w", err)
		}
	}

	w, err := segment.CreateWriter(r.logsDir, name)
	if err != nil {
		return fmt.Errorf("binlog: create segment %s: %w", name, err)
	}

	if err := syncDir(r.logsDir); err != nil {
		w.Close()
		return fmt.Errorf("binlog: fsync logs dir: %w", err)
	}

	part := types.LogPart{StartIndex: startIndex, Name: name}
	if err := r.meta.Put(types.MetaKey(name), types.EncodeLogPart(part)); err != nil {
		w.Close()
		return fmt.Errorf("binlog: persist segment descriptor: %w", err)
	}

	r.segments.insert(part)
	r.write = w
	r.metrics.segmentRotations.Inc()
	return nil
}

// segmentName derives a segment's file name from its ordinal position
// within the log (pad8(segments.size())), matching the teacher's own
// fixed-width, lexicographically-sortable naming scheme for WAL segment
// files.
func segmentName(ordinal int) string {
	return fmt.Sprintf("%08d.log", ordinal)
}
