package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterAppendTracksSize(t *testing.T) {
	dir := t.TempDir()
	w, err := CreateWriter(dir, "seg-0")
	require.NoError(t, err)
	defer w.Close()

	require.Equal(t, uint64(0), w.Size())
	require.NoError(t, w.Append(1, 1, []byte("abc")))
	require.Equal(t, uint64(frameHeaderLen+3), w.Size())
}

func TestCreateWriterReopensExistingFile(t *testing.T) {
	dir := t.TempDir()
	w1, err := CreateWriter(dir, "seg-0")
	require.NoError(t, err)
	require.NoError(t, w1.Append(1, 1, []byte("abc")))
	require.NoError(t, w1.Close())

	w2, err := CreateWriter(dir, "seg-0")
	require.NoError(t, err)
	defer w2.Close()
	require.Equal(t, uint64(frameHeaderLen+3), w2.Size())
}
