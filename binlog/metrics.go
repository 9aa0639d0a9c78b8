package binlog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics mirrors the teacher's walMetrics: a small bundle of counters and
// gauges built with promauto against a caller-supplied Registerer, rather
// than registered against the global default registry.
type metrics struct {
	appends          prometheus.Counter
	appendBytes      prometheus.Counter
	segmentRotations prometheus.Counter

	pushAttempts prometheus.Counter
	pushErrors   prometheus.Counter
	retryBuffer  *prometheus.GaugeVec

	applyAttempts prometheus.Counter
	applyErrors   prometheus.Counter
	applyOffset   prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &metrics{
		appends: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "binlog_appends_total",
			Help: "binlog_appends_total counts entries successfully written, by leader AppendEntry calls and follower AppendEntries batches.",
		}),
		appendBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "binlog_append_bytes_total",
			Help: "binlog_append_bytes_total counts serialized entry bytes written across all appends, frame headers not included.",
		}),
		segmentRotations: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "binlog_segment_rotations_total",
			Help: "binlog_segment_rotations_total counts how many times the write handle rolled to a new segment.",
		}),
		pushAttempts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "binlog_pusher_attempts_total",
			Help: "binlog_pusher_attempts_total counts Follower Pusher PushOne attempts across all followers.",
		}),
		pushErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "binlog_pusher_errors_total",
			Help: "binlog_pusher_errors_total counts PushOne attempts that ended in a transport or read error.",
		}),
		retryBuffer: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "binlog_retry_buffer_depth",
			Help: "binlog_retry_buffer_depth is the current size of each follower's retry buffer.",
		}, []string{"endpoint"}),
		applyAttempts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "binlog_applier_attempts_total",
			Help: "binlog_applier_attempts_total counts Applier ApplyFn invocations.",
		}),
		applyErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "binlog_applier_errors_total",
			Help: "binlog_applier_errors_total counts ApplyFn invocations that returned false or failed to read/decode.",
		}),
		applyOffset: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "binlog_apply_log_offset",
			Help: "binlog_apply_log_offset is the highest index consumed by the state machine.",
		}),
	}
}
