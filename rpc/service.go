package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName and methodName name the RPC surface named in the distilled
// spec §6: leader -> follower AppendEntries(request) -> response.
const (
	serviceName = "binlog.Replication"
	methodName  = "AppendEntries"
	fullMethod  = "/" + serviceName + "/" + methodName
)

// Handler is implemented by a follower replicator to serve incoming
// AppendEntries RPCs.
type Handler interface {
	AppendEntries(ctx context.Context, req *AppendEntriesRequest) (*AppendEntriesResponse, error)
}

func appendEntriesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AppendEntriesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handler).AppendEntries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
	wrapped := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Handler).AppendEntries(ctx, req.(*AppendEntriesRequest))
	}
	return interceptor(ctx, in, info, wrapped)
}

// ServiceDesc is hand-registered in place of what protoc-gen-go-grpc would
// otherwise generate from a .proto file (none was available to this tree --
// see DESIGN.md).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodName, Handler: appendEntriesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "binlog/rpc/appendentries",
}

// RegisterServer registers h as the Replication service on s.
func RegisterServer(s *grpc.Server, h Handler) {
	s.RegisterService(&ServiceDesc, h)
}
