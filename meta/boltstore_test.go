package meta

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoltStorePutScan(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put([]byte("/logs/a"), []byte("1")))
	require.NoError(t, s.Put([]byte("/logs/b"), []byte("2")))
	require.NoError(t, s.Put([]byte("/other/c"), []byte("3")))

	var keys []string
	err = s.Scan([]byte("/logs/"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"/logs/a", "/logs/b"}, keys)
}

func TestBoltStoreReopenPersists(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put([]byte("/logs/a"), []byte("1")))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	var got string
	err = s2.Scan([]byte("/logs/"), func(key, value []byte) error {
		got = string(value)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "1", got)
}
