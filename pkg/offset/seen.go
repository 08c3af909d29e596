package offset

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Key identifies one delivered message position.
type Key struct {
	Topic   string
	QueueID int
	Offset  int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%d", k.Topic, k.QueueID, k.Offset)
}

// SeenStore records which offsets have been handled.
type SeenStore interface {
	// MarkSeen atomically records key and reports whether it was new.
	MarkSeen(ctx context.Context, key Key) (bool, error)
}

type queueKey struct {
	topic   string
	queueID int
}

type queueSeen struct {
	mu        sync.Mutex
	watermark int64
	offsets   map[int64]struct{}
}

// MemoryStore keeps seen offsets in process memory. Without calls to
// Forget it grows with every distinct offset.
type MemoryStore struct {
	mu     sync.RWMutex
	queues map[queueKey]*queueSeen
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{queues: make(map[queueKey]*queueSeen)}
}

func (s *MemoryStore) queue(topic string, queueID int) *queueSeen {
	k := queueKey{topic: topic, queueID: queueID}

	s.mu.RLock()
	q, ok := s.queues[k]
	s.mu.RUnlock()
	if ok {
		return q
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok = s.queues[k]; !ok {
		q = &queueSeen{offsets: make(map[int64]struct{})}
		s.queues[k] = q
	}
	return q
}

func (s *MemoryStore) MarkSeen(_ context.Context, key Key) (bool, error) {
	q := s.queue(key.Topic, key.QueueID)

	q.mu.Lock()
	defer q.mu.Unlock()

	// below the watermark everything has already been handled
	if key.Offset < q.watermark {
		return false, nil
	}
	if _, ok := q.offsets[key.Offset]; ok {
		return false, nil
	}
	q.offsets[key.Offset] = struct{}{}
	return true, nil
}

// Forget raises the queue watermark to below and drops every offset under
// it. Offsets under the watermark are reported as already seen.
func (s *MemoryStore) Forget(topic string, queueID int, below int64) int {
	q := s.queue(topic, queueID)

	q.mu.Lock()
	defer q.mu.Unlock()

	if below <= q.watermark {
		return 0
	}
	q.watermark = below

	removed := 0
	for off := range q.offsets {
		if off < below {
			delete(q.offsets, off)
			removed++
		}
	}
	return removed
}

// Len returns the number of retained offsets across all queues.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, q := range s.queues {
		q.mu.Lock()
		n += len(q.offsets)
		q.mu.Unlock()
	}
	return n
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type StoreKind string

const (
	StoreMemory   StoreKind = "memory"
	StoreRedis    StoreKind = "redis"
	StorePostgres StoreKind = "postgres"
)

type StoreOptions struct {
	Kind        StoreKind
	RedisAddr   string
	PostgresDSN string
	TTL         time.Duration
}

// Open builds the configured SeenStore. The returned closer releases any
// connection held by the store.
func Open(ctx context.Context, opts StoreOptions) (SeenStore, io.Closer, error) {
	switch opts.Kind {
	case StoreMemory, "":
		return NewMemoryStore(), nopCloser{}, nil
	case StoreRedis:
		s, err := DialRedisStore(ctx, opts.RedisAddr, opts.TTL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case StorePostgres:
		s, err := ConnectPostgresStore(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unsupported dedup store: %q", opts.Kind)
	}
}
