package types

import (
	"testing"

	"github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

// TestLogEntryRoundTrip fuzzes LogEntry's SerializeTo/ParseFrom codec, the
// same one the segment and rpc packages both depend on, checking it
// round-trips arbitrary field values including empty/nil PK and Value.
func TestLogEntryRoundTrip(t *testing.T) {
	f := fuzz.New().NilChance(0.2).NumElements(0, 256)

	for i := 0; i < 200; i++ {
		var want LogEntry
		f.Fuzz(&want.LogIndex)
		f.Fuzz(&want.Term)
		f.Fuzz(&want.TS)
		f.Fuzz(&want.PK)
		f.Fuzz(&want.Value)

		buf, n, err := want.SerializeTo(nil)
		require.NoError(t, err)
		require.Equal(t, n, len(buf))

		var got LogEntry
		require.NoError(t, got.ParseFrom(buf))

		require.Equal(t, want.LogIndex, got.LogIndex)
		require.Equal(t, want.Term, got.Term)
		require.Equal(t, want.TS, got.TS)
		require.Equal(t, len(want.PK), len(got.PK))
		require.Equal(t, len(want.Value), len(got.Value))
		require.ElementsMatch(t, want.PK, got.PK)
		require.ElementsMatch(t, want.Value, got.Value)
	}
}

func TestDecodeLogPartTruncated(t *testing.T) {
	_, err := DecodeLogPart([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestEncodeDecodeLogPart(t *testing.T) {
	want := LogPart{StartIndex: 42, Name: "00000003.log"}
	got, err := DecodeLogPart(EncodeLogPart(want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}
