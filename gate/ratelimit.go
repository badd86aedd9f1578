package gate

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultMaxRequests = 100
	DefaultWindow      = time.Minute

	// memoryStoreMaxEntries bounds the per-process bucket map; stale
	// buckets are purged once the map grows past it.
	memoryStoreMaxEntries = 5000
)

// BucketStore tracks fixed-window request counters keyed by source.
// Incr serializes the read-increment-write for a key, counts the
// current request, and reports the window's reset time.
type BucketStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, reset time.Time, err error)
}

// Decision is the outcome of a rate-limit check for one request.
type Decision struct {
	Allowed    bool
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// Limiter rejects requests once a source exceeds Max requests inside a
// fixed window. A request arriving after the window elapsed starts a new
// one.
type Limiter struct {
	store  BucketStore
	max    int
	window time.Duration
}

func NewLimiter(store BucketStore, max int, window time.Duration) *Limiter {
	if max <= 0 {
		max = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Limiter{store: store, max: max, window: window}
}

// Allow counts the request against key and decides whether it may
// proceed.
func (l *Limiter) Allow(ctx context.Context, key string) (*Decision, error) {
	count, reset, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return nil, err
	}

	remaining := l.max - int(count)
	if remaining < 0 {
		remaining = 0
	}

	d := &Decision{
		Allowed:   count <= int64(l.max),
		Remaining: remaining,
		Reset:     reset,
	}
	if !d.Allowed {
		d.RetryAfter = time.Until(reset)
		if d.RetryAfter < time.Second {
			d.RetryAfter = time.Second
		}
	}
	return d, nil
}

// MemoryStore is the process-local bucket store. Sufficient when the
// service runs as a single rate-limiting tier; horizontally scaled
// deployments should use RedisStore instead.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	count       int64
	windowStart time.Time
}

var _ BucketStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || now.Sub(b.windowStart) >= window {
		b = &bucket{windowStart: now}
		s.buckets[key] = b
	}
	b.count++

	if len(s.buckets) > memoryStoreMaxEntries {
		s.purgeLocked(now, window)
	}

	return b.count, b.windowStart.Add(window), nil
}

// purgeLocked drops buckets whose window has elapsed. Caller holds mu.
func (s *MemoryStore) purgeLocked(now time.Time, window time.Duration) {
	for key, b := range s.buckets {
		if now.Sub(b.windowStart) >= window {
			delete(s.buckets, key)
		}
	}
}

// Len reports the number of live buckets.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
