package gate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// Requirement: a source may spend its full allowance inside a window;
// the next request is rejected with a retry hint.
func TestLimiter_FixedWindow(t *testing.T) {
	store := NewMemoryStore()
	limiter := NewLimiter(store, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if d.Remaining != 3-(i+1) {
			t.Errorf("request %d remaining = %d, want %d", i+1, d.Remaining, 3-(i+1))
		}
	}

	d, err := limiter.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if d.Allowed {
		t.Fatal("request over the allowance should be rejected")
	}
	if d.Remaining != 0 {
		t.Errorf("rejected remaining = %d, want 0", d.Remaining)
	}
	if d.RetryAfter < time.Second {
		t.Errorf("RetryAfter = %v, want at least 1s", d.RetryAfter)
	}

	// Another source is unaffected.
	d, err = limiter.Allow(ctx, "10.0.0.2")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !d.Allowed || d.Remaining != 2 {
		t.Errorf("fresh source decision = %+v, want allowed with 2 remaining", d)
	}
}

// Requirement: a request arriving after the window elapsed starts a new
// window with a full allowance.
func TestMemoryStore_WindowReset(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	limiter := NewLimiter(store, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.Allow(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
	}

	now = now.Add(61 * time.Second)
	d, err := limiter.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !d.Allowed {
		t.Fatal("first request of a new window should be allowed")
	}
	if d.Remaining != 1 {
		t.Errorf("new window remaining = %d, want 1", d.Remaining)
	}
}

// Requirement: the bucket map stays bounded; elapsed buckets are purged
// once it grows past its cap.
func TestMemoryStore_Purge(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < memoryStoreMaxEntries; i++ {
		key := "src-" + string(rune('a'+i%26)) + "-" + time.Duration(i).String()
		if _, _, err := store.Incr(ctx, key, time.Minute); err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
	}

	now = now.Add(2 * time.Minute)
	if _, _, err := store.Incr(ctx, "fresh", time.Minute); err != nil {
		t.Fatalf("Incr() error = %v", err)
	}
	if got := store.Len(); got != 1 {
		t.Errorf("Len() after purge = %d, want 1", got)
	}
}

// Requirement: the Redis-backed store enforces the same fixed window
// across what would be separate processes.
func TestRedisStore_Incr(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewLimiter(NewRedisStore(client), 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	d, err := limiter.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if d.Allowed {
		t.Fatal("request over the allowance should be rejected")
	}

	// After the window elapses the counter expires with its key.
	mr.FastForward(61 * time.Second)
	d, err = limiter.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !d.Allowed {
		t.Fatal("request after window expiry should be allowed")
	}
}
