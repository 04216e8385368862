package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	defaultBucket = "postsiva"
	boltTimeout   = time.Second
)

// Bolt keeps the durable tier in a single bolt file on the local device. The
// database is opened for each operation so several CLI processes can share
// the file; operations inside one process are serialized.
type Bolt struct {
	path   string
	bucket []byte

	mu     sync.Mutex
	closed bool
}

// NewBolt verifies the database at path can be opened and that the bucket
// exists.
func NewBolt(path, bucket string) (*Bolt, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage: bolt path required")
	}
	if bucket == "" {
		bucket = defaultBucket
	}
	b := &Bolt{path: path, bucket: []byte(bucket)}
	db, err := b.open()
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(b.bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: bolt create bucket: %w", err)
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("storage: bolt close: %w", err)
	}
	return b, nil
}

func (b *Bolt) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.view(ctx, func(bucket *bolt.Bucket) error {
		if data := bucket.Get([]byte(key)); data != nil {
			// bolt memory is only valid inside the transaction.
			value = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

// Set ignores ttl; expiry is enforced by the entry encoding of the caller.
func (b *Bolt) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	return b.update(ctx, func(bucket *bolt.Bucket) error {
		return bucket.Put([]byte(key), value)
	})
}

func (b *Bolt) Delete(ctx context.Context, key string) error {
	return b.update(ctx, func(bucket *bolt.Bucket) error {
		return bucket.Delete([]byte(key))
	})
}

func (b *Bolt) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.view(ctx, func(bucket *bolt.Bucket) error {
		keys = scanPrefix(bucket, []byte(prefix))
		return nil
	})
	return keys, err
}

func (b *Bolt) DeletePrefix(ctx context.Context, prefix string) error {
	return b.update(ctx, func(bucket *bolt.Bucket) error {
		// Deleting while a cursor walks the bucket skips keys, so collect first.
		for _, key := range scanPrefix(bucket, []byte(prefix)) {
			if err := bucket.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bolt) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func scanPrefix(bucket *bolt.Bucket, prefix []byte) []string {
	var keys []string
	c := bucket.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, string(k))
	}
	return keys
}

func (b *Bolt) view(ctx context.Context, fn func(*bolt.Bucket) error) error {
	return b.with(ctx, false, fn)
}

func (b *Bolt) update(ctx context.Context, fn func(*bolt.Bucket) error) error {
	return b.with(ctx, true, fn)
}

func (b *Bolt) with(ctx context.Context, writable bool, fn func(*bolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	db, err := b.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	run := func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return fmt.Errorf("storage: bolt bucket %q missing", b.bucket)
		}
		return fn(bucket)
	}
	if writable {
		err = db.Update(run)
	} else {
		err = db.View(run)
	}
	if err != nil {
		return fmt.Errorf("storage: bolt: %w", err)
	}
	return nil
}

func (b *Bolt) open() (*bolt.DB, error) {
	db, err := bolt.Open(b.path, 0o600, &bolt.Options{Timeout: boltTimeout})
	if err != nil {
		return nil, fmt.Errorf("storage: bolt open %s: %w", b.path, err)
	}
	return db, nil
}
