// Package segment implements the on-disk record framing (Write Handle and
// Read Cursor from the design) used by every segment file: a length-prefixed
// frame carrying a log index and term ahead of the payload, so a Read Cursor
// can find a target index without decoding every entry's payload.
package segment

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tablelog/binlog/types"
)

// frameHeaderLen mirrors the teacher's own scratch-buffer sizing
// (segment.Reader.readFrame in the teacher reads a fixed frameHeaderLen
// prefix before it knows the payload size).
const frameHeaderLen = 4 + 8 + 8 // length:u32 | index:u64 | term:u64

// MaxEntrySize bounds a single frame's payload, guarding against a corrupt
// length field causing an enormous allocation.
const MaxEntrySize = 64 * 1024 * 1024

type frameHeader struct {
	length uint32
	index  uint64
	term   uint64
}

func encodeFrameHeader(buf []byte, fh frameHeader) {
	binary.LittleEndian.PutUint32(buf[0:], fh.length)
	binary.LittleEndian.PutUint64(buf[4:], fh.index)
	binary.LittleEndian.PutUint64(buf[12:], fh.term)
}

func decodeFrameHeader(buf []byte) (frameHeader, error) {
	if len(buf) < frameHeaderLen {
		return frameHeader{}, fmt.Errorf("%w: frame header truncated", types.ErrCorrupt)
	}
	fh := frameHeader{
		length: binary.LittleEndian.Uint32(buf[0:]),
		index:  binary.LittleEndian.Uint64(buf[4:]),
		term:   binary.LittleEndian.Uint64(buf[12:]),
	}
	if fh.length > MaxEntrySize {
		return fh, fmt.Errorf("%w: frame length %d exceeds MaxEntrySize", types.ErrCorrupt, fh.length)
	}
	return fh, nil
}

// Record is one decoded frame: the raw payload plus the index/term carried
// in the frame header (which, for this codec, duplicate the fields already
// present inside the serialized types.LogEntry payload -- kept redundant on
// purpose so a Read Cursor can find a target index by reading only
// frameHeaderLen bytes per frame instead of decoding every payload).
type Record struct {
	Index   uint64
	Term    uint64
	Payload []byte
}

// ReadOneFrame reads one frame from r, exported for callers (the binlog
// package's tail-segment recovery scan) that need frame decoding without a
// full Reader cursor.
func ReadOneFrame(r io.Reader) (Record, error) {
	rec, _, err := readFrame(r)
	return rec, err
}

func writeFrame(w io.Writer, index, term uint64, payload []byte) (int, error) {
	hdr := make([]byte, frameHeaderLen)
	encodeFrameHeader(hdr, frameHeader{length: uint32(len(payload)), index: index, term: term})
	n, err := w.Write(hdr)
	if err != nil {
		return n, err
	}
	m, err := w.Write(payload)
	return n + m, err
}

// readFrame reads one frame starting at the reader's current position. It
// returns io.EOF (unwrapped) whenever less than a full frame is available --
// a clean end of segment (nothing read at all) and a torn trailing frame
// (a short header or short payload) are both reported the same way. The
// segment data file is never fsynced per write, only the directory entry on
// rollover, so a torn trailing frame after an ungraceful shutdown is an
// expected, recoverable condition, not corruption: callers (the Read
// Cursor's roll-forward, the tail-segment recovery scan) must be able to
// treat it as "nothing more to read here" rather than fail outright.
func readFrame(r io.Reader) (Record, int, error) {
	hdrBuf := make([]byte, frameHeaderLen)
	n, err := io.ReadFull(r, hdrBuf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return Record{}, n, io.EOF
	}
	if err != nil {
		return Record{}, n, err
	}

	fh, err := decodeFrameHeader(hdrBuf)
	if err != nil {
		return Record{}, n, err
	}

	payload := make([]byte, fh.length)
	m, err := io.ReadFull(r, payload)
	n += m
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return Record{}, n, io.EOF
	}
	if err != nil {
		return Record{}, n, err
	}

	return Record{Index: fh.index, Term: fh.term, Payload: payload}, n, nil
}
