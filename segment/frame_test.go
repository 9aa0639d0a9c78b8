package segment

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	n, err := writeFrame(&buf, 7, 2, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, frameHeaderLen+5, n)

	rec, m, err := readFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, n, m)
	require.Equal(t, uint64(7), rec.Index)
	require.Equal(t, uint64(2), rec.Term)
	require.Equal(t, []byte("hello"), rec.Payload)
}

func TestReadFrameCleanEOF(t *testing.T) {
	var buf bytes.Buffer
	_, _, err := readFrame(&buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTruncatedHeaderIsEOF(t *testing.T) {
	// A torn trailing header (the tail of an ungracefully-terminated write)
	// is a recoverable end-of-segment condition, not corruption: the data
	// file is never fsynced per write, so this is routine after a crash.
	buf := bytes.NewBuffer(make([]byte, frameHeaderLen-1))
	_, _, err := readFrame(buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTruncatedPayloadIsEOF(t *testing.T) {
	var buf bytes.Buffer
	_, err := writeFrame(&buf, 1, 1, []byte("0123456789"))
	require.NoError(t, err)

	truncated := bytes.NewReader(buf.Bytes()[:frameHeaderLen+3])
	_, _, err = readFrame(truncated)
	require.ErrorIs(t, err, io.EOF)
}

func TestDecodeFrameHeaderRejectsOversizedLength(t *testing.T) {
	buf := make([]byte, frameHeaderLen)
	encodeFrameHeader(buf, frameHeader{length: MaxEntrySize + 1})
	_, err := decodeFrameHeader(buf)
	require.Error(t, err)
}
