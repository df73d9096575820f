package cache

import (
	"errors"
	"time"

	"github.com/dgnsrekt/speakstream/speech"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheClosed is returned by writes after Close
	ErrCacheClosed = errors.New("cache closed")
)

// Level represents the cache tier
type Level int

const (
	// LevelMemory is the in-process LRU.
	LevelMemory Level = iota

	// LevelDisk is the persistent store.
	LevelDisk
)

// String returns the string representation of the cache level
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "L1-Memory"
	case LevelDisk:
		return "L2-Disk"
	default:
		return "Unknown"
	}
}

// Stats holds cache performance metrics
type Stats struct {
	Capacity  int64 // Maximum capacity in bytes
	Size      int64 // Current size in bytes
	ItemCount int64

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64 // hits / (hits + misses)

	LastEvict time.Time
}

func (s *Stats) finish(size int64, count int) {
	s.Size = size
	s.ItemCount = int64(count)
	if s.Hits+s.Misses > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Hits+s.Misses)
	}
}

// Entry describes one cached item.
type Entry struct {
	Key        string
	Size       int64 // uncompressed size in bytes
	Timestamp  time.Time
	LastAccess time.Time
	Hits       int64
	Level      Level
}

// Config holds configuration for a Manager.
type Config struct {
	MemoryCapacity int64 // bytes

	DiskCapacity     int64  // bytes; zero disables the disk tier
	DiskPath         string // directory for cache files
	CompressionLevel int    // zstd level, 0 stores raw bytes

	TTL             time.Duration // age after which entries expire
	CleanupInterval time.Duration // zero disables background cleanup
}

// DefaultConfig returns default cache configuration
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   64 << 20,
		DiskCapacity:     512 << 20,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// ConfigFrom maps the speech cache settings onto a Config.
func ConfigFrom(c speech.CacheConfig) Config {
	cfg := DefaultConfig()
	if c.MemoryMB > 0 {
		cfg.MemoryCapacity = int64(c.MemoryMB) << 20
	}
	if c.DiskMB > 0 {
		cfg.DiskCapacity = int64(c.DiskMB) << 20
	}
	cfg.DiskPath = c.Dir
	return cfg
}

// Cache defines the interface shared by both tiers.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string) error
	Clear() error

	Size() int64
	Contains(key string) bool
	Stats() Stats
}
