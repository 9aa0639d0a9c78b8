// Package rpc implements the leader-to-follower AppendEntries transport
// named as an external collaborator by the distilled spec (§6 RPC
// surface). It is built on google.golang.org/grpc with a custom wire codec
// rather than protoc-generated protobuf messages, since no .proto/generated
// code was available to ground a real protobuf codec on (see DESIGN.md).
package rpc

import (
	"encoding/binary"
	"fmt"

	"github.com/tablelog/binlog/types"
)

// AppendEntriesRequest is the leader->follower RPC request named in the
// distilled spec's §6 RPC surface.
type AppendEntriesRequest struct {
	PreLogIndex uint64
	PreLogTerm  uint64
	Term        uint64
	Entries     []types.LogEntry
}

// AppendEntriesResponse carries the follower's verdict. Code == 0 means
// success; any other value is one of the rejection codes below.
type AppendEntriesResponse struct {
	Code int32
}

const (
	// CodeSuccess is the only response code the core treats as an
	// acknowledged write.
	CodeSuccess int32 = 0
	// CodeContinuityMismatch is returned when pre_log_index/pre_log_term
	// does not match the follower's last_log_index/last_log_term.
	CodeContinuityMismatch int32 = 1
	// CodeStopped is returned when the follower replicator has been Stopped.
	CodeStopped int32 = 2
	// CodeWriteFailed is returned when persisting one or more entries in
	// the batch failed.
	CodeWriteFailed int32 = 3
)

// MarshalBinary implements encoding.BinaryMarshaler, used by binaryCodec.
func (r AppendEntriesRequest) MarshalBinary() ([]byte, error) {
	// Pre-serialize entries so we know the total size up front.
	entryBufs := make([][]byte, len(r.Entries))
	total := 8 + 8 + 8 + 4
	for i, e := range r.Entries {
		buf, n, err := e.SerializeTo(nil)
		if err != nil {
			return nil, err
		}
		entryBufs[i] = buf[:n]
		total += 4 + n
	}

	out := make([]byte, total)
	binary.LittleEndian.PutUint64(out[0:], r.PreLogIndex)
	binary.LittleEndian.PutUint64(out[8:], r.PreLogTerm)
	binary.LittleEndian.PutUint64(out[16:], r.Term)
	binary.LittleEndian.PutUint32(out[24:], uint32(len(r.Entries)))
	off := 28
	for _, b := range entryBufs {
		binary.LittleEndian.PutUint32(out[off:], uint32(len(b)))
		off += 4
		off += copy(out[off:], b)
	}
	return out, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *AppendEntriesRequest) UnmarshalBinary(data []byte) error {
	if len(data) < 28 {
		return fmt.Errorf("%w: AppendEntriesRequest header truncated", types.ErrCorrupt)
	}
	r.PreLogIndex = binary.LittleEndian.Uint64(data[0:])
	r.PreLogTerm = binary.LittleEndian.Uint64(data[8:])
	r.Term = binary.LittleEndian.Uint64(data[16:])
	n := binary.LittleEndian.Uint32(data[24:])

	off := 28
	entries := make([]types.LogEntry, n)
	for i := uint32(0); i < n; i++ {
		if len(data) < off+4 {
			return fmt.Errorf("%w: AppendEntriesRequest entry length truncated", types.ErrCorrupt)
		}
		entryLen := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if len(data) < off+entryLen {
			return fmt.Errorf("%w: AppendEntriesRequest entry body truncated", types.ErrCorrupt)
		}
		if err := entries[i].ParseFrom(data[off : off+entryLen]); err != nil {
			return err
		}
		off += entryLen
	}
	r.Entries = entries
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (r AppendEntriesResponse) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(r.Code))
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (r *AppendEntriesResponse) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("%w: AppendEntriesResponse truncated", types.ErrCorrupt)
	}
	r.Code = int32(binary.LittleEndian.Uint32(data))
	return nil
}
