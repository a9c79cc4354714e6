// Package session persists the automation session's context (the last
// addressed target) and the history of finished waits.
package session

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cgast/agwait/pkg/wait"
)

// Bucket names.
const (
	BucketContext = "context" // last addressed target and other session keys
	BucketHistory = "history" // append-only wait records, keyed by sequence
)

const keyLastTarget = "last_target"

// ErrNotFound is returned when a context key has never been set.
var ErrNotFound = errors.New("session: key not found")

// Store is a bbolt-backed session store. It implements wait.Recorder.
type Store struct {
	db         *bolt.DB
	mu         sync.RWMutex
	maxEntries int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxEntries caps the history bucket; the oldest records are pruned on
// write. Zero keeps everything.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// Open opens or creates the store at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{BucketContext, BucketHistory} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get reads a JSON value from the context bucket into out.
func (s *Store) Get(key string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(BucketContext)).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return json.Unmarshal(data, out)
	})
}

// Set stores a JSON value in the context bucket.
func (s *Store) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketContext)).Put([]byte(key), data)
	})
}

// SetLastTarget remembers target as the most recently addressed one.
func (s *Store) SetLastTarget(target string) error {
	return s.Set(keyLastTarget, target)
}

// LastTarget returns the most recently addressed target. A target that was
// never set is "" with a nil error; an unreadable one is an error.
func (s *Store) LastTarget() (string, error) {
	var target string
	if err := s.Get(keyLastTarget, &target); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read last target: %w", err)
	}
	return target, nil
}

// Record appends a wait record to the history bucket.
func (s *Store) Record(rec wait.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketHistory))
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		if err := b.Put(itob(seq), data); err != nil {
			return err
		}
		return s.prune(b)
	})
}

// prune drops the oldest records beyond maxEntries. Must run inside an update.
func (s *Store) prune(b *bolt.Bucket) error {
	if s.maxEntries <= 0 {
		return nil
	}
	c := b.Cursor()
	count := 0
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		count++
	}
	excess := count - s.maxEntries
	for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
		if err := c.Delete(); err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
		excess--
	}
	return nil
}

// History returns up to limit of the most recent records, newest first. A
// non-positive limit returns all of them.
func (s *Store) History(limit int) ([]wait.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []wait.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(BucketHistory)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(result) >= limit {
				break
			}
			var rec wait.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal record %d: %w", binary.BigEndian.Uint64(k), err)
			}
			result = append(result, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

var _ wait.Recorder = (*Store)(nil)
