package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryCache_BasicOperations(t *testing.T) {
	cache := NewMemoryCache(1024)

	key := "test-key"
	value := []byte("test-value")

	if err := cache.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	retrieved, ok := cache.Get(key)
	if !ok {
		t.Fatal("Get failed: key not found")
	}
	if string(retrieved) != string(value) {
		t.Errorf("Retrieved value mismatch: got %s, want %s", retrieved, value)
	}

	if !cache.Contains(key) {
		t.Error("Contains returned false for existing key")
	}
	if cache.Size() != int64(len(value)) {
		t.Errorf("Size mismatch: got %d, want %d", cache.Size(), len(value))
	}

	if err := cache.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if cache.Contains(key) {
		t.Error("Key still exists after delete")
	}
	if cache.Size() != 0 {
		t.Errorf("Size not zero after delete: %d", cache.Size())
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	cache := NewMemoryCache(100)

	for i := 0; i < 5; i++ {
		if err := cache.Put(fmt.Sprintf("key-%d", i), make([]byte, 20)); err != nil {
			t.Fatalf("Put failed for key-%d: %v", i, err)
		}
	}

	// key-0 and key-1 become recently used
	cache.Get("key-0")
	cache.Get("key-1")

	if err := cache.Put("key-new", make([]byte, 30)); err != nil {
		t.Fatalf("Put failed for new key: %v", err)
	}

	for _, k := range []string{"key-2", "key-3"} {
		if cache.Contains(k) {
			t.Errorf("%s should have been evicted", k)
		}
	}
	for _, k := range []string{"key-0", "key-1", "key-4", "key-new"} {
		if !cache.Contains(k) {
			t.Errorf("%s should not have been evicted", k)
		}
	}
	if got := cache.Stats().Evictions; got != 2 {
		t.Errorf("Evictions = %d, want 2", got)
	}
}

func TestMemoryCache_ItemTooLarge(t *testing.T) {
	cache := NewMemoryCache(100)

	if err := cache.Put("large-key", make([]byte, 200)); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Expected ErrItemTooLarge, got %v", err)
	}
}

func TestMemoryCache_UpdateExisting(t *testing.T) {
	cache := NewMemoryCache(1024)

	cache.Put("k", []byte("short"))
	cache.Put("k", []byte("a longer value"))

	got, _ := cache.Get("k")
	if string(got) != "a longer value" {
		t.Errorf("got %q", got)
	}
	if cache.Size() != int64(len("a longer value")) {
		t.Errorf("Size = %d", cache.Size())
	}
	if cache.Stats().ItemCount != 1 {
		t.Errorf("ItemCount = %d", cache.Stats().ItemCount)
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	cache := NewMemoryCache(1024)
	cache.Put("a", []byte("1"))

	cache.Get("a")
	cache.Get("a")
	cache.Get("missing")

	stats := cache.Stats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("hits/misses = %d/%d", stats.Hits, stats.Misses)
	}
	if stats.HitRate < 0.66 || stats.HitRate > 0.67 {
		t.Errorf("HitRate = %f", stats.HitRate)
	}
	if stats.Capacity != 1024 {
		t.Errorf("Capacity = %d", stats.Capacity)
	}
}

func TestMemoryCache_Oldest(t *testing.T) {
	cache := NewMemoryCache(1024)
	for _, k := range []string{"a", "b", "c"} {
		cache.Put(k, []byte(k))
	}
	cache.Get("a")

	entries := cache.Oldest(2)
	if len(entries) != 2 || entries[0].Key != "b" || entries[1].Key != "c" {
		t.Errorf("Oldest(2) = %+v", entries)
	}
	if entries[0].Level != LevelMemory {
		t.Errorf("Level = %v", entries[0].Level)
	}
}

func TestMemoryCache_Prune(t *testing.T) {
	cache := NewMemoryCache(1024)
	cache.Put("old", []byte("x"))
	time.Sleep(20 * time.Millisecond)
	cache.Put("new", []byte("y"))

	if n := cache.Prune(10 * time.Millisecond); n != 1 {
		t.Errorf("Prune removed %d, want 1", n)
	}
	if cache.Contains("old") || !cache.Contains("new") {
		t.Error("Prune removed the wrong entry")
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache(10 * 1024)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d-%d", id, j%10)
				cache.Put(key, make([]byte, 10))
				cache.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if cache.Size() > 10*1024 {
		t.Errorf("Size %d exceeds capacity", cache.Size())
	}
}

func BenchmarkMemoryCache_Put(b *testing.B) {
	cache := NewMemoryCache(1024 * 1024)
	value := make([]byte, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Put(fmt.Sprintf("key-%d", i%1000), value)
	}
}
