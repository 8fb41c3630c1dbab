package preset

import (
	"testing"
	"time"
)

func TestCachePutGetInvalidate(t *testing.T) {
	c := NewCache(time.Minute)
	p := &Preset{ID: "p1", Name: "one"}

	if _, ok := c.Get("one"); ok {
		t.Fatalf("expected miss on empty cache")
	}

	c.Put("one", p)
	got, ok := c.Get("one")
	if !ok || got.ID != "p1" {
		t.Fatalf("expected hit after Put, got %v %v", got, ok)
	}

	c.Invalidate("one")
	if _, ok := c.Get("one"); ok {
		t.Fatalf("expected miss after Invalidate")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	c.Put("one", &Preset{ID: "p1"})

	time.Sleep(25 * time.Millisecond)
	if _, ok := c.Get("one"); ok {
		t.Fatalf("expected entry expired after TTL")
	}
}

func TestCacheSweepRemovesExpired(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	c.Put("stale", &Preset{ID: "p1"})
	time.Sleep(25 * time.Millisecond)
	c.Put("fresh", &Preset{ID: "p2"})

	if removed := c.Sweep(); removed != 1 {
		t.Fatalf("expected 1 swept entry, got %d", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatalf("fresh entry must survive the sweep")
	}
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewCache(0)
	c.Put("pinned", &Preset{ID: "p1"})
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("pinned"); !ok {
		t.Fatalf("zero TTL cache must not expire entries")
	}
	if removed := c.Sweep(); removed != 0 {
		t.Fatalf("zero TTL sweep must be a no-op, got %d", removed)
	}
}

func TestCacheInvalidateAll(t *testing.T) {
	c := NewCache(time.Minute)
	c.Put("a", &Preset{})
	c.Put("b", &Preset{})
	c.InvalidateAll()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after InvalidateAll, got %d", c.Len())
	}
}
