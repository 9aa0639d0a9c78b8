// Package meta implements the metadata key-value store the Segment Index is
// persisted to, backed by go.etcd.io/bbolt -- the same durable KV engine the
// teacher's own benchmark suite (bench/bench_test.go's raftboltdb
// comparison) uses as its yardstick for a WAL's metadata store.
package meta

import (
	"bytes"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("binlog-meta")

// BoltStore implements types.MetaStore over a single bbolt database file.
// Every Put commits in its own read-write transaction, which bbolt fsyncs
// before returning -- the "sync-on-write" guarantee the distilled spec
// requires of the metadata store (§6).
type BoltStore struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt database at <dir>/meta/meta.db.
func Open(dir string) (*BoltStore, error) {
	metaDir := filepath.Join(dir, "meta")
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(metaDir, "meta.db")
	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Put durably stores key/value. bbolt's Update commits (and, absent
// NoSync, fsyncs) the transaction before returning, giving the
// sync-on-write semantics the Segment Index's rollover persistence depends
// on (distilled spec §4.1).
func (s *BoltStore) Put(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, value)
	})
}

// Scan iterates every key with the given prefix in ascending lexicographic
// order, calling fn for each. It implements the distilled spec's recovery
// scan over [/logs/, /logs/~).
func (s *BoltStore) Scan(prefix []byte, fn func(key, value []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the underlying bbolt database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
