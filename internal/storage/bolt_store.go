package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scoutline-hq/prospect-discovery/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const (
	prospectBucket   = "prospects"
	targetBucket     = "targets"
	expiryValueBytes = 8
)

// boltStore implements Store backed by BoltDB. Every value carries an
// 8-byte big-endian expiry prefix so reads can drop stale entries lazily and
// the cleanup pass can sweep without decoding payloads.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	ttl             time.Duration
	cleanupInterval time.Duration
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{prospectBucket, targetBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	store := &boltStore{
		db:              db,
		ttl:             opts.TTL,
		cleanupInterval: opts.CleanupInterval,
	}
	store.lastCleanup.Store(time.Now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// SaveProspect archives a scored prospect keyed by its task id.
func (b *boltStore) SaveProspect(p *domain.Prospect) error {
	if b == nil || b.db == nil || p == nil {
		return nil
	}
	if p.TaskID == "" {
		return fmt.Errorf("prospect has no task id")
	}

	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode prospect: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(prospectBucket))
		if bucket == nil {
			return fmt.Errorf("prospect bucket missing")
		}
		value := make([]byte, expiryValueBytes+len(payload))
		binary.BigEndian.PutUint64(value, uint64(now.Add(b.ttl).Unix()))
		copy(value[expiryValueBytes:], payload)
		return bucket.Put([]byte(p.TaskID), value)
	})
}

// Prospect loads an archived prospect by task id. Expired entries are
// deleted on read and reported as absent.
func (b *boltStore) Prospect(taskID string) (*domain.Prospect, bool, error) {
	if b == nil || b.db == nil {
		return nil, false, nil
	}

	var prospect *domain.Prospect
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(prospectBucket))
		if bucket == nil {
			return fmt.Errorf("prospect bucket missing")
		}

		key := []byte(taskID)
		value := bucket.Get(key)
		if value == nil {
			return nil
		}

		expiry, ok := decodeExpiry(value[:min(len(value), expiryValueBytes)])
		if !ok || !expiry.After(time.Now()) {
			return bucket.Delete(key)
		}

		var p domain.Prospect
		if err := json.Unmarshal(value[expiryValueBytes:], &p); err != nil {
			return fmt.Errorf("decode prospect: %w", err)
		}
		prospect = &p
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return prospect, prospect != nil, nil
}

// SeenTarget checks whether a platform target was scraped within the TTL.
func (b *boltStore) SeenTarget(platform, target string) (bool, error) {
	if b == nil || b.db == nil {
		return false, nil
	}

	if err := b.maybeCleanupExpired(time.Now()); err != nil {
		return false, err
	}

	var exists bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(targetBucket))
		if bucket == nil {
			return fmt.Errorf("target bucket missing")
		}

		key := targetKey(platform, target)
		value := bucket.Get(key)
		if value == nil {
			return nil
		}

		expiry, ok := decodeExpiry(value)
		if !ok || !expiry.After(time.Now()) {
			return bucket.Delete(key)
		}

		exists = true
		return nil
	})
	return exists, err
}

// MarkTarget records that a platform target was scraped.
func (b *boltStore) MarkTarget(platform, target string) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(targetBucket))
		if bucket == nil {
			return fmt.Errorf("target bucket missing")
		}
		buf := make([]byte, expiryValueBytes)
		binary.BigEndian.PutUint64(buf, uint64(now.Add(b.ttl).Unix()))
		return bucket.Put(targetKey(platform, target), buf)
	})
}

// maybeCleanupExpired sweeps expired entries on a fixed cadence to avoid
// unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{prospectBucket, targetBucket} {
			bucket := tx.Bucket([]byte(name))
			if bucket == nil {
				return fmt.Errorf("%s bucket missing", name)
			}

			cursor := bucket.Cursor()
			for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
				expiry, ok := decodeExpiry(v[:min(len(v), expiryValueBytes)])
				if !ok || !expiry.After(now) {
					if err := cursor.Delete(); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func targetKey(platform, target string) []byte {
	return []byte(platform + "\x00" + target)
}

// decodeExpiry decodes the expiry time from the stored byte slice.
func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) != expiryValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}
