package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketSnapshots = []byte("snapshots")

// BoltStore keeps snapshots in a single embedded database file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating bolt dir: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func boltKey(device string, tag Tag) []byte {
	return []byte(device + "|" + string(tag))
}

func (s *BoltStore) Save(_ context.Context, snap *Snapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketSnapshots)
		}
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		return b.Put(boltKey(snap.Device, snap.Tag), data)
	})
}

func (s *BoltStore) Load(_ context.Context, device string, tag Tag) (*Snapshot, error) {
	var snap Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketSnapshots)
		}
		data := b.Get(boltKey(device, tag))
		if data == nil {
			return notFound(device, tag)
		}
		return json.Unmarshal(data, &snap)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// List returns metadata for every stored snapshot. Content is dropped.
func (s *BoltStore) List(_ context.Context) ([]*Snapshot, error) {
	var out []*Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var snap Snapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return err
			}
			snap.Content = ""
			out = append(out, &snap)
			return nil
		})
	})
	sortSnapshots(out)
	return out, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
