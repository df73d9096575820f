package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	gap "github.com/muesli/go-app-paths"
)

// Manager coordinates the memory and disk tiers. Disk hits are promoted to
// memory and writes reach disk in the background.
type Manager struct {
	l1 *MemoryCache
	l2 *DiskCache // nil when the disk tier is disabled

	config Config
	log    *log.Logger

	pending     sync.WaitGroup
	cleanupStop chan struct{}
	cleanupWg   sync.WaitGroup
	closeOnce   sync.Once

	mu    sync.Mutex
	stats ManagerStats
}

// ManagerStats aggregates hits across tiers.
type ManagerStats struct {
	Hits        int64
	Misses      int64
	MemoryHits  int64
	DiskHits    int64
	Promotions  int64
	CleanupRuns int64
	LastCleanup time.Time

	Memory Stats
	Disk   Stats
}

// HitRate returns hits / (hits + misses).
func (s ManagerStats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// NewManager creates a two-tier cache. An empty DiskPath resolves to the
// user cache directory.
func NewManager(config Config) (*Manager, error) {
	m := &Manager{
		l1:          NewMemoryCache(config.MemoryCapacity),
		config:      config,
		log:         log.WithPrefix("cache"),
		cleanupStop: make(chan struct{}),
	}

	if config.DiskCapacity > 0 {
		if config.DiskPath == "" {
			dir, err := gap.NewScope(gap.User, "speakstream").CacheDir()
			if err != nil {
				return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
			}
			config.DiskPath = filepath.Join(dir, "audio")
			m.config.DiskPath = config.DiskPath
		}

		l2, err := NewDiskCache(config.DiskPath, config.DiskCapacity, config.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
		m.l2 = l2
	}

	if config.CleanupInterval > 0 {
		m.startCleanupRoutine()
	}

	m.log.Debug("Cache ready",
		"memory", humanize.Bytes(uint64(config.MemoryCapacity)),
		"disk", humanize.Bytes(uint64(config.DiskCapacity)),
		"path", config.DiskPath)
	return m, nil
}

// Get checks memory, then disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.l1.Get(key); ok {
		m.record(func(s *ManagerStats) { s.Hits++; s.MemoryHits++ })
		return data, true
	}

	if m.l2 != nil {
		if data, ok := m.l2.Get(key); ok {
			// best effort, the entry may be larger than L1
			_ = m.l1.Put(key, data)
			m.record(func(s *ManagerStats) { s.Hits++; s.DiskHits++; s.Promotions++ })
			return data, true
		}
	}

	m.record(func(s *ManagerStats) { s.Misses++ })
	return nil, false
}

// Put stores value in memory immediately and on disk asynchronously.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.l1.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("L1 cache error: %w", err)
	}

	if m.l2 == nil {
		return nil
	}
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		if err := m.l2.Put(key, value); err != nil && !errors.Is(err, ErrCacheClosed) {
			m.log.Warn("Failed to write disk cache", "err", err)
		}
	}()
	return nil
}

// Delete removes an entry from both tiers.
func (m *Manager) Delete(key string) error {
	var errs []error
	if err := m.l1.Delete(key); err != nil {
		errs = append(errs, fmt.Errorf("L1 delete: %w", err))
	}
	if m.l2 != nil {
		if err := m.l2.Delete(key); err != nil {
			errs = append(errs, fmt.Errorf("L2 delete: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Clear empties both tiers.
func (m *Manager) Clear() error {
	var errs []error
	if err := m.l1.Clear(); err != nil {
		errs = append(errs, fmt.Errorf("L1 clear: %w", err))
	}
	if m.l2 != nil {
		if err := m.l2.Clear(); err != nil {
			errs = append(errs, fmt.Errorf("L2 clear: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of the counters of both tiers.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	s := m.stats
	m.mu.Unlock()

	s.Memory = m.l1.Stats()
	if m.l2 != nil {
		s.Disk = m.l2.Stats()
	}
	return s
}

// DiskPath returns the directory of the disk tier, or "" without one.
func (m *Manager) DiskPath() string {
	if m.l2 == nil {
		return ""
	}
	return m.config.DiskPath
}

// Close stops cleanup, waits for pending disk writes and saves the index.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.cleanupStop)
		m.cleanupWg.Wait()
		m.pending.Wait()

		if m.l2 != nil {
			if cerr := m.l2.Close(); cerr != nil {
				err = fmt.Errorf("failed to close disk cache: %w", cerr)
			}
		}
	})
	return err
}

// Key derives the cache key of an utterance.
func Key(engine, emotion, text string) string {
	hash := sha256.Sum256([]byte(engine + "|" + emotion + "|" + text))
	return hex.EncodeToString(hash[:])
}

func (m *Manager) record(fn func(*ManagerStats)) {
	m.mu.Lock()
	fn(&m.stats)
	m.mu.Unlock()
}

func (m *Manager) startCleanupRoutine() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	m.cleanupWg.Add(1)

	go func() {
		defer m.cleanupWg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.cleanup()
			case <-m.cleanupStop:
				return
			}
		}
	}()
}

// cleanup drops entries older than the TTL from both tiers.
func (m *Manager) cleanup() {
	m.record(func(s *ManagerStats) { s.CleanupRuns++; s.LastCleanup = time.Now() })
	if m.config.TTL <= 0 {
		return
	}

	pruned := m.l1.Prune(m.config.TTL)
	if m.l2 != nil {
		pruned += m.l2.RemoveOlderThan(time.Now().Add(-m.config.TTL))
	}
	if pruned > 0 {
		m.log.Debug("Expired cache entries", "count", pruned)
	}
}
