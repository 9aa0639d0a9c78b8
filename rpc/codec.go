package rpc

import (
	stdencoding "encoding"
	"fmt"

	grpcencoding "google.golang.org/grpc/encoding"
)

// codecName is the gRPC "content subtype" this package registers. It is not
// the transport default: the client forces it on every call (see
// client.go), and a server picks it up from the call's content subtype
// through the registration in init below.
const codecName = "binlog-binary"

// binaryCodec adapts grpc's wire codec interface to the stdlib
// encoding.BinaryMarshaler/BinaryUnmarshaler interfaces that
// AppendEntriesRequest/Response/types.LogEntry already implement, rather
// than depending on google.golang.org/protobuf's reflection-based
// proto.Message, which requires protoc-generated descriptor metadata this
// tree does not have (see DESIGN.md).
type binaryCodec struct{}

func (binaryCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(stdencoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("rpc: message %T does not implement encoding.BinaryMarshaler", v)
	}
	return m.MarshalBinary()
}

func (binaryCodec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(stdencoding.BinaryUnmarshaler)
	if !ok {
		return fmt.Errorf("rpc: message %T does not implement encoding.BinaryUnmarshaler", v)
	}
	return m.UnmarshalBinary(data)
}

func (binaryCodec) Name() string { return codecName }

func init() {
	grpcencoding.RegisterCodec(binaryCodec{})
}
