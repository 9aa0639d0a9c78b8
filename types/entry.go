package types

import (
	"encoding/binary"
	"fmt"
)

// entryHeaderLen is the fixed-size prefix of a serialized LogEntry: log
// index, term, ts (all u64 LE) followed by the two length-prefixed byte
// slices pk and value.
const entryHeaderLen = 8 + 8 + 8 + 4 + 4

// SerializeTo encodes e into buf, growing and returning a new slice if buf
// is too small, the way the teacher's record framing builds scratch buffers
// on demand rather than allocating fresh ones on every call. The returned
// int is the number of bytes written (== len(returned slice)).
func (e LogEntry) SerializeTo(buf []byte) ([]byte, int, error) {
	need := entryHeaderLen + len(e.PK) + len(e.Value)
	if cap(buf) < need {
		buf = make([]byte, need)
	}
	buf = buf[:need]

	binary.LittleEndian.PutUint64(buf[0:], e.LogIndex)
	binary.LittleEndian.PutUint64(buf[8:], e.Term)
	binary.LittleEndian.PutUint64(buf[16:], e.TS)
	binary.LittleEndian.PutUint32(buf[24:], uint32(len(e.PK)))
	binary.LittleEndian.PutUint32(buf[28:], uint32(len(e.Value)))
	off := entryHeaderLen
	off += copy(buf[off:], e.PK)
	copy(buf[off:], e.Value)

	return buf, need, nil
}

// ParseFrom decodes buf into e, replacing its contents.
func (e *LogEntry) ParseFrom(buf []byte) error {
	if len(buf) < entryHeaderLen {
		return fmt.Errorf("%w: entry header truncated (%d bytes)", ErrCorrupt, len(buf))
	}
	logIndex := binary.LittleEndian.Uint64(buf[0:])
	term := binary.LittleEndian.Uint64(buf[8:])
	ts := binary.LittleEndian.Uint64(buf[16:])
	pkLen := binary.LittleEndian.Uint32(buf[24:])
	valLen := binary.LittleEndian.Uint32(buf[28:])

	want := entryHeaderLen + int(pkLen) + int(valLen)
	if len(buf) < want {
		return fmt.Errorf("%w: entry body truncated (have %d want %d)", ErrCorrupt, len(buf), want)
	}

	e.LogIndex = logIndex
	e.Term = term
	e.TS = ts
	e.PK = append(e.PK[:0], buf[entryHeaderLen:entryHeaderLen+int(pkLen)]...)
	e.Value = append(e.Value[:0], buf[entryHeaderLen+int(pkLen):want]...)
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler so LogEntry can travel
// as-is through the rpc package's custom gRPC codec.
func (e LogEntry) MarshalBinary() ([]byte, error) {
	buf, n, err := e.SerializeTo(nil)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (e *LogEntry) UnmarshalBinary(data []byte) error {
	return e.ParseFrom(data)
}
