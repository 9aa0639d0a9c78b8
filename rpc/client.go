package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is the leader-side stub for one follower endpoint, resolved once
// when the leader is set up (cmd/binlogd dials each follower) and reused by
// the Follower Pusher across ticks (distilled spec §4.6: "resolve an RPC
// stub for follower.endpoint").
type Client struct {
	endpoint string
	conn     *grpc.ClientConn
}

// Dial resolves endpoint to a live gRPC connection. It blocks until the
// connection is ready or ctx is done, following the same "resolve once,
// reuse" shape as the generated-client pattern in
// _examples/sidecus-raft/pkg/kvstore/kvstorepeerclient.go.
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	conn, err := grpc.DialContext(ctx, endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(binaryCodec{})),
	)
	if err != nil {
		return nil, err
	}
	return &Client{endpoint: endpoint, conn: conn}, nil
}

// AppendEntries invokes the Replication/AppendEntries RPC. ctx should carry
// the per-attempt timeout; this call does not retry internally -- the
// distilled spec's "one retry attempt at the transport layer" is the
// caller's (Follower Pusher's) responsibility so it can fold a retry into
// its own per-tick accounting.
func (c *Client) AppendEntries(ctx context.Context, req *AppendEntriesRequest) (*AppendEntriesResponse, error) {
	resp := new(AppendEntriesResponse)
	if err := c.conn.Invoke(ctx, fullMethod, req, resp, grpc.ForceCodec(binaryCodec{})); err != nil {
		return nil, err
	}
	return resp, nil
}

// Endpoint returns the address this client was dialed against.
func (c *Client) Endpoint() string { return c.endpoint }

// Close tears down the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }
