// Command binlogd runs one table's replicator as a standalone process:
// a leader pushing its log to configured followers, or a follower serving
// AppendEntries RPCs and applying accepted entries. The process exposes no
// endpoint for submitting new entries to a leader; besides the follower's
// RPC server it serves only /metrics. Grounded on the teacher's own
// functional-options (walOpt) construction style and on
// SStoyanov22-proglog's flag-configured server bootstrap for the overall
// main() shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"

	gokitlog "github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/tablelog/binlog/binlog"
	"github.com/tablelog/binlog/meta"
	"github.com/tablelog/binlog/rpc"
	"github.com/tablelog/binlog/types"
)

func main() {
	dir := flag.String("dir", "", "data directory for this table's segments and metadata store")
	role := flag.String("role", "leader", "leader or follower")
	listen := flag.String("listen", ":8420", "address to serve the AppendEntries RPC on (follower role)")
	metricsListen := flag.String("metrics-listen", ":8421", "address to serve /metrics on")
	followers := flag.String("followers", "", "comma-separated follower endpoints (leader role)")
	segmentMiB := flag.Uint64("segment-mib", binlog.DefaultSegmentSizeMiB, "segment rollover threshold in mebibytes")
	flag.Parse()

	if *dir == "" {
		log.Fatal("binlogd: -dir is required")
	}

	logger := gokitlog.NewLogfmtLogger(os.Stderr)
	logger = gokitlog.With(logger, "ts", gokitlog.DefaultTimestampUTC, "caller", gokitlog.DefaultCaller)
	reg := prometheus.NewRegistry()

	store, err := meta.Open(*dir)
	if err != nil {
		log.Fatalf("binlogd: open metadata store: %v", err)
	}
	defer store.Close()

	var r *binlog.Replicator
	switch *role {
	case "leader":
		r, err = runLeader(*dir, store, logger, reg, *followers, *segmentMiB)
	case "follower":
		r, err = runFollower(*dir, store, logger, reg, *listen, *segmentMiB)
	default:
		log.Fatalf("binlogd: unknown -role %q (want leader or follower)", *role)
	}
	if err != nil {
		log.Fatalf("binlogd: %v", err)
	}
	defer r.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(*metricsListen, mux); err != nil {
			logger.Log("msg", "metrics server exited", "err", err)
		}
	}()

	logger.Log("msg", "binlogd running", "role", *role, "dir", *dir)
	select {}
}

func runLeader(dir string, store types.MetaStore, logger gokitlog.Logger, reg prometheus.Registerer, followerList string, segmentMiB uint64) (*binlog.Replicator, error) {
	r, err := binlog.New(dir, store, binlog.Leader, logger, reg, binlog.WithSegmentSizeMiB(segmentMiB))
	if err != nil {
		return nil, err
	}

	var targets []*binlog.FollowerTarget
	for _, endpoint := range splitNonEmpty(followerList) {
		client, err := rpc.Dial(context.Background(), endpoint)
		if err != nil {
			return nil, fmt.Errorf("dial follower %s: %w", endpoint, err)
		}
		targets = append(targets, r.NewFollowerTarget(endpoint, client))
	}
	r.WithFollowers(targets)
	r.Start()
	return r, nil
}

func runFollower(dir string, store types.MetaStore, logger gokitlog.Logger, reg prometheus.Registerer, listen string, segmentMiB uint64) (*binlog.Replicator, error) {
	r, err := binlog.New(dir, store, binlog.Follower, logger, reg, binlog.WithSegmentSizeMiB(segmentMiB))
	if err != nil {
		return nil, err
	}
	r.SetApplyFn(func(entry types.LogEntry) bool {
		logger.Log("msg", "applied entry", "index", entry.LogIndex, "pk", string(entry.PK))
		return true
	})
	r.Start()

	lis, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", listen, err)
	}
	srv := grpc.NewServer()
	rpc.RegisterServer(srv, r)
	go func() {
		if err := srv.Serve(lis); err != nil {
			logger.Log("msg", "rpc server exited", "err", err)
		}
	}()
	return r, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
