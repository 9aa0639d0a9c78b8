package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinaryCodecRoundTrip(t *testing.T) {
	c := binaryCodec{}
	require.Equal(t, codecName, c.Name())

	req := &AppendEntriesRequest{PreLogIndex: 1, PreLogTerm: 1, Term: 1}
	buf, err := c.Marshal(req)
	require.NoError(t, err)

	var got AppendEntriesRequest
	require.NoError(t, c.Unmarshal(buf, &got))
	require.Equal(t, req.PreLogIndex, got.PreLogIndex)
}

func TestBinaryCodecRejectsNonBinaryMarshaler(t *testing.T) {
	c := binaryCodec{}
	_, err := c.Marshal(42)
	require.Error(t, err)
}
