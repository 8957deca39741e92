package cache

import (
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(ttl time.Duration) (*Store[string], *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := New[string](ttl)
	s.now = clock.Now
	return s, clock
}

func TestGetMissingKey(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	if _, ok := s.Get("nope"); ok {
		t.Error("Get() on empty store reported a hit")
	}
}

func TestSetThenGet(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	s.Set("k", "v")

	got, ok := s.Get("k")
	if !ok {
		t.Fatal("Get() missed a fresh entry")
	}
	if got != "v" {
		t.Errorf("Get() = %q, want %q", got, "v")
	}
}

func TestEntryExpiresExactlyAtTTL(t *testing.T) {
	s, clock := newTestStore(time.Minute)
	s.Set("k", "v")

	clock.Advance(time.Minute - time.Nanosecond)
	if _, ok := s.Get("k"); !ok {
		t.Error("entry expired before its TTL elapsed")
	}

	clock.Advance(time.Nanosecond)
	if _, ok := s.Get("k"); ok {
		t.Error("entry still valid at exactly TTL age")
	}
}

func TestSetReplacesEntryAndResetsAge(t *testing.T) {
	s, clock := newTestStore(time.Minute)
	s.Set("k", "old")

	clock.Advance(50 * time.Second)
	s.Set("k", "new")

	clock.Advance(30 * time.Second)
	got, ok := s.Get("k")
	if !ok {
		t.Fatal("replaced entry expired on the old entry's clock")
	}
	if got != "new" {
		t.Errorf("Get() = %q, want %q", got, "new")
	}
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	s.Set("k", "v")
	s.Delete("k")
	if _, ok := s.Get("k"); ok {
		t.Error("Get() hit a deleted entry")
	}
	// Deleting a missing key is a no-op.
	s.Delete("nope")
}

func TestClear(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	s.Set("a", "1")
	s.Set("b", "2")
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len() = %d after Clear(), want 0", s.Len())
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	s, clock := newTestStore(time.Minute)
	s.Set("old", "1")
	clock.Advance(45 * time.Second)
	s.Set("fresh", "2")
	clock.Advance(20 * time.Second) // "old" is 65s, "fresh" is 20s

	if removed := s.Sweep(); removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Error("Sweep() removed an unexpired entry")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d after sweep, want 1", s.Len())
	}
}

func TestExpiredEntryStaysUntilSwept(t *testing.T) {
	s, clock := newTestStore(time.Minute)
	s.Set("k", "v")
	clock.Advance(2 * time.Minute)

	if _, ok := s.Get("k"); ok {
		t.Fatal("expired entry reported a hit")
	}
	if s.Len() != 1 {
		t.Error("Get() evicted the entry; eviction is Sweep's job")
	}
	s.Sweep()
	if s.Len() != 0 {
		t.Error("Sweep() left an expired entry behind")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New[int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Set("shared", i*1000+j)
				s.Get("shared")
			}
		}(i)
	}
	wg.Wait()

	if _, ok := s.Get("shared"); !ok {
		t.Error("entry lost after concurrent writes")
	}
}
