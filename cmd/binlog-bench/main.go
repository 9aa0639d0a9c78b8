// Command binlog-bench drives a synthetic AppendEntry workload against a
// Replicator and reports append-latency percentiles, giving the teacher's
// own benmathews/bench + HdrHistogram + benmathews/hdrhistogram-writer
// dependency trio (present in go.mod but exercised by none of the
// retrieved teacher files) a concrete home, the way bench/bench_test.go
// gives raft-wal's own append/read paths a throughput harness.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	hdr "github.com/HdrHistogram/hdrhistogram-go"
	"github.com/benmathews/bench"
	hdrwriter "github.com/benmathews/hdrhistogram-writer"
	gokitlog "github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tablelog/binlog/binlog"
	"github.com/tablelog/binlog/meta"
)

func main() {
	dir := flag.String("dir", "", "data directory for the benchmarked replicator")
	duration := flag.Duration("duration", 10*time.Second, "how long to run the append workload")
	rate := flag.Int("rate", 1000, "target AppendEntry calls per second")
	valueSize := flag.Int("value-size", 128, "random value payload size in bytes")
	percentilesOut := flag.String("percentiles-out", "", "optional file to write the latency percentile report to")
	flag.Parse()

	if *dir == "" {
		tmp, err := os.MkdirTemp("", "binlog-bench-*")
		if err != nil {
			log.Fatalf("binlog-bench: create temp dir: %v", err)
		}
		defer os.RemoveAll(tmp)
		*dir = tmp
	}

	store, err := meta.Open(*dir)
	if err != nil {
		log.Fatalf("binlog-bench: open metadata store: %v", err)
	}
	defer store.Close()

	logger := gokitlog.NewLogfmtLogger(os.Stderr)
	reg := prometheus.NewRegistry()

	r, err := binlog.New(*dir, store, binlog.Leader, logger, reg)
	if err != nil {
		log.Fatalf("binlog-bench: new replicator: %v", err)
	}
	defer r.Stop()

	factory := &appendRequesterFactory{replicator: r, valueSize: *valueSize}
	b := bench.NewBenchmark(factory, int64(*rate), *duration, 1)
	summary := b.Run()

	hist := hdr.New(1, 10_000_000, 3)
	for _, t := range summary.Latencies() {
		_ = hist.RecordValue(t.Nanoseconds() / int64(time.Microsecond))
	}

	fmt.Printf("binlog-bench: appended=%d p50=%dus p99=%dus\n",
		hist.TotalCount(), hist.ValueAtQuantile(50), hist.ValueAtQuantile(99))

	if *percentilesOut != "" {
		f, err := os.Create(*percentilesOut)
		if err != nil {
			log.Fatalf("binlog-bench: create percentiles-out: %v", err)
		}
		defer f.Close()
		if err := hdrwriter.WritePercentiles(hist, f, 1, 1.0, false); err != nil {
			log.Fatalf("binlog-bench: write percentiles: %v", err)
		}
	}
}

// appendRequesterFactory and appendRequester implement bench.RequesterFactory
// and bench.Requester, driving one AppendEntry call per request against a
// shared Replicator.
type appendRequesterFactory struct {
	replicator *binlog.Replicator
	valueSize  int
}

func (f *appendRequesterFactory) GetRequester(num int) bench.Requester {
	return &appendRequester{
		replicator: f.replicator,
		rng:        rand.New(rand.NewSource(int64(num) + time.Now().UnixNano())),
		value:      make([]byte, f.valueSize),
	}
}

type appendRequester struct {
	replicator *binlog.Replicator
	rng        *rand.Rand
	value      []byte
}

func (r *appendRequester) Setup() error    { return nil }
func (r *appendRequester) Teardown() error { return nil }

func (r *appendRequester) Request() (time.Duration, error) {
	r.rng.Read(r.value)
	pk := fmt.Appendf(nil, "%d", r.rng.Int63())

	start := time.Now()
	_, err := r.replicator.AppendEntry(1, pk, r.value, uint64(time.Now().UnixNano()))
	return time.Since(start), err
}
