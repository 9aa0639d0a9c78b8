package types

import (
	"encoding/binary"
	"fmt"
)

// MetaKeyPrefix is the fixed key-space prefix the Segment Index is
// persisted under in the metadata store.
const MetaKeyPrefix = "/logs/"

// MetaKey returns the metadata-store key for a segment name.
func MetaKey(name string) []byte {
	return append([]byte(MetaKeyPrefix), name...)
}

// EncodeLogPart packs a LogPart as {start_index:u64 LE, name_len:u32 LE,
// name:bytes-including-trailing-NUL}, the layout persisted under
// "/logs/<name>" in the metadata store.
func EncodeLogPart(p LogPart) []byte {
	nameWithNUL := append([]byte(p.Name), 0)
	buf := make([]byte, 8+4+len(nameWithNUL))
	binary.LittleEndian.PutUint64(buf[0:], p.StartIndex)
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(nameWithNUL)))
	copy(buf[12:], nameWithNUL)
	return buf
}

// DecodeLogPart is the inverse of EncodeLogPart.
func DecodeLogPart(buf []byte) (LogPart, error) {
	if len(buf) < 12 {
		return LogPart{}, fmt.Errorf("%w: segment descriptor truncated (%d bytes)", ErrCorrupt, len(buf))
	}
	startIndex := binary.LittleEndian.Uint64(buf[0:])
	nameLen := binary.LittleEndian.Uint32(buf[8:])
	if len(buf) < 12+int(nameLen) {
		return LogPart{}, fmt.Errorf("%w: segment descriptor name truncated", ErrCorrupt)
	}
	nameWithNUL := buf[12 : 12+int(nameLen)]
	if nameLen == 0 || nameWithNUL[nameLen-1] != 0 {
		return LogPart{}, fmt.Errorf("%w: segment descriptor name not NUL-terminated", ErrCorrupt)
	}
	return LogPart{
		StartIndex: startIndex,
		Name:       string(nameWithNUL[:nameLen-1]),
	}, nil
}
