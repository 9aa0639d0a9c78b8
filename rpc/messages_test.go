package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tablelog/binlog/types"
)

func TestAppendEntriesRequestRoundTrip(t *testing.T) {
	want := AppendEntriesRequest{
		PreLogIndex: 9,
		PreLogTerm:  2,
		Term:        3,
		Entries: []types.LogEntry{
			{LogIndex: 10, Term: 3, PK: []byte("k1"), Value: []byte("v1"), TS: 100},
			{LogIndex: 11, Term: 3, PK: []byte("k2"), Value: nil, TS: 101},
		},
	}

	buf, err := want.MarshalBinary()
	require.NoError(t, err)

	var got AppendEntriesRequest
	require.NoError(t, got.UnmarshalBinary(buf))

	require.Equal(t, want.PreLogIndex, got.PreLogIndex)
	require.Equal(t, want.PreLogTerm, got.PreLogTerm)
	require.Equal(t, want.Term, got.Term)
	require.Len(t, got.Entries, 2)
	require.Equal(t, want.Entries[0].LogIndex, got.Entries[0].LogIndex)
	require.Equal(t, want.Entries[0].PK, got.Entries[0].PK)
	require.Equal(t, want.Entries[1].LogIndex, got.Entries[1].LogIndex)
}

func TestAppendEntriesRequestEmptyBatch(t *testing.T) {
	want := AppendEntriesRequest{PreLogIndex: 5, PreLogTerm: 1, Term: 1}
	buf, err := want.MarshalBinary()
	require.NoError(t, err)

	var got AppendEntriesRequest
	require.NoError(t, got.UnmarshalBinary(buf))
	require.Empty(t, got.Entries)
}

func TestAppendEntriesResponseRoundTrip(t *testing.T) {
	want := AppendEntriesResponse{Code: CodeContinuityMismatch}
	buf, err := want.MarshalBinary()
	require.NoError(t, err)

	var got AppendEntriesResponse
	require.NoError(t, got.UnmarshalBinary(buf))
	require.Equal(t, want.Code, got.Code)
}

func TestUnmarshalBinaryRejectsTruncated(t *testing.T) {
	var resp AppendEntriesResponse
	require.Error(t, resp.UnmarshalBinary([]byte{1, 2}))

	var req AppendEntriesRequest
	require.Error(t, req.UnmarshalBinary([]byte{1, 2, 3}))
}
