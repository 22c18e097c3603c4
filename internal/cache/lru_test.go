package cache

import (
	"testing"
	"time"
)

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache[string](3, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get() on empty cache reported a hit")
	}

	c.Set("a", "1")
	got, ok := c.Get("a")
	if !ok || got != "1" {
		t.Errorf("Get(a) = %q, %v, want 1, true", got, ok)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	// Touch a so b is the least recently used.
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive eviction")
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)

	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("Get() returned an expired entry")
	}
	c.Set("b", 2)
	if removed := c.CleanExpired(); removed != 0 {
		t.Errorf("CleanExpired() = %d, want 0 after expired entry was read", removed)
	}
}

func TestDeletePrefixDropsScope(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)

	c.Set(Key("transactions|", "calendar"), 1)
	c.Set(Key("transactions|ACT-1", "fy-apr"), 2)
	c.Set(Key("budgets|", "calendar"), 3)

	removed := c.DeletePrefix("transactions|")
	if removed != 2 {
		t.Errorf("DeletePrefix() = %d, want 2", removed)
	}
	if _, ok := c.Get(Key("budgets|", "calendar")); !ok {
		t.Error("unrelated scope was dropped")
	}
	if _, ok := c.Get(Key("transactions|", "calendar")); ok {
		t.Error("scoped entry survived DeletePrefix")
	}
}

func TestKeySeparatesCalendars(t *testing.T) {
	if Key("transactions|ACT-1", "calendar") == Key("transactions|ACT-1", "fy-apr") {
		t.Error("keys for different calendars collide")
	}
}
