// Package binlog implements the replicated binary log: a per-table
// write-ahead log with leader/follower replication, modeled after the
// log-replication half of Raft. See SPEC_FULL.md for the full design.
package binlog

import "time"

const (
	// DefaultSegmentSizeMiB is the rollover threshold used when Config
	// does not set SegmentSizeBytes.
	DefaultSegmentSizeMiB = 64

	// DrainTickInterval is the background task's condition-variable wait
	// timeout: the periodic wakeup cadence when no explicit Notify fires.
	defaultDrainTickInterval = 10 * time.Second

	// drainDeadline is how long Stop waits for the background task to
	// notice running=false and return.
	drainDeadline = time.Second

	defaultRPCTimeout = 2 * time.Second
)

// Config is the single configuration record consulted by a Replicator. It
// is constructed once at instance-creation time via functional options
// (following the teacher's own walOpt/WithSegmentSize convention) and never
// re-read from process-wide state on a hot path.
type Config struct {
	// SegmentSizeBytes is the rollover threshold (distilled spec's
	// binlog_single_file_max_size, expressed here in bytes; the CLI
	// surface takes mebibytes).
	SegmentSizeBytes uint64

	// LegacySegmentSelection reproduces Open Question 1's literal,
	// bug-compatible Read Cursor segment-selection rule. Default false
	// (corrected behavior).
	LegacySegmentSelection bool

	// SkipTailScan disables Open Question 2's resolution: when true,
	// Recover leaves log_offset/last_log_index/last_log_term at zero,
	// reproducing the original gap exactly.
	SkipTailScan bool

	// DrainTickInterval overrides the background task's condition
	// variable wait timeout. Zero means defaultDrainTickInterval (10s).
	DrainTickInterval time.Duration

	// RPCTimeout bounds a single AppendEntries RPC attempt issued by the
	// Follower Pusher. Zero means defaultRPCTimeout.
	RPCTimeout time.Duration
}

// Option configures a Replicator at construction time.
type Option func(*Config)

// WithSegmentSizeMiB sets the rollover threshold in mebibytes, the unit the
// distilled spec's configuration surface uses.
func WithSegmentSizeMiB(mib uint64) Option {
	return func(c *Config) { c.SegmentSizeBytes = mib * 1024 * 1024 }
}

// WithLegacySegmentSelection restores Open Question 1's literal Read
// Cursor bug, for compatibility test vectors.
func WithLegacySegmentSelection() Option {
	return func(c *Config) { c.LegacySegmentSelection = true }
}

// WithSkipTailScan restores Open Question 2's literal gap: Recover will not
// scan the tail segment to repopulate log_offset/last_log_*.
func WithSkipTailScan() Option {
	return func(c *Config) { c.SkipTailScan = true }
}

// WithDrainTickInterval overrides the background task's wakeup cadence.
func WithDrainTickInterval(d time.Duration) Option {
	return func(c *Config) { c.DrainTickInterval = d }
}

// WithRPCTimeout overrides the per-attempt AppendEntries RPC timeout.
func WithRPCTimeout(d time.Duration) Option {
	return func(c *Config) { c.RPCTimeout = d }
}

func (c *Config) applyDefaults() {
	if c.SegmentSizeBytes == 0 {
		c.SegmentSizeBytes = DefaultSegmentSizeMiB * 1024 * 1024
	}
	if c.DrainTickInterval == 0 {
		c.DrainTickInterval = defaultDrainTickInterval
	}
	if c.RPCTimeout == 0 {
		c.RPCTimeout = defaultRPCTimeout
	}
}
