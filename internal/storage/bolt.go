package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("kv")

// Bolt is a Store backed by a single bbolt file. bbolt holds an exclusive
// file lock, so a second process opening the same file waits up to the lock
// timeout and then fails with ErrUnavailable.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the bbolt database at path.
func OpenBolt(path string, lockTimeout time.Duration) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("%w: could not open %s: %v", ErrUnavailable, path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: could not init bucket: %v", ErrUnavailable, err)
	}

	return &Bolt{db: db}, nil
}

func (s *Bolt) Get(_ context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(key))
		if v != nil {
			value, found = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", false, boltError(err)
	}
	return value, found, nil
}

func (s *Bolt) Keys(_ context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	p := []byte(prefix)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, boltError(err)
	}
	return keys, nil
}

func (s *Bolt) Write(_ context.Context, b *Batch) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for _, op := range b.Ops() {
			var err error
			switch op.Kind {
			case OpSet:
				err = bucket.Put([]byte(op.Key), []byte(op.Value))
			case OpRemove:
				err = bucket.Delete([]byte(op.Key))
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return boltError(err)
	}
	return nil
}

func (s *Bolt) Close() error {
	return s.db.Close()
}

func boltError(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%w: %v", ErrFull, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
