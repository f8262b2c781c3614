package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"gaenroll/pkg/contracts/domain"
)

type memoryKey struct {
	year    int
	dataset domain.Dataset
}

type memoryEntry struct {
	data       []byte
	modifiedAt time.Time
}

// MemoryStore is a Store kept entirely in memory. It backs tests and
// the --no-cache fetch path, where entries must not outlive the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[memoryKey]memoryEntry
}

// NewMemoryStore creates an empty in-memory cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[memoryKey]memoryEntry)}
}

// Get returns a copy of the stored payload so callers cannot mutate the
// cached bytes.
func (s *MemoryStore) Get(_ context.Context, year int, dataset domain.Dataset) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[memoryKey{year: year, dataset: dataset}]
	if !ok {
		return nil, false, nil
	}
	data := make([]byte, len(entry.data))
	copy(data, entry.data)
	return data, true, nil
}

// Put stores a copy of the payload, replacing any previous entry.
func (s *MemoryStore) Put(_ context.Context, year int, dataset domain.Dataset, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[memoryKey{year: year, dataset: dataset}] = memoryEntry{
		data:       stored,
		modifiedAt: time.Now(),
	}
	return nil
}

// Status lists the stored entries ordered by year then dataset.
func (s *MemoryStore) Status(_ context.Context) ([]domain.CacheEntryInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []domain.CacheEntryInfo
	for key, entry := range s.entries {
		entries = append(entries, domain.CacheEntryInfo{
			Year:       key.year,
			Dataset:    key.dataset,
			SizeBytes:  int64(len(entry.data)),
			ModifiedAt: entry.modifiedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Year != entries[j].Year {
			return entries[i].Year < entries[j].Year
		}
		return datasetRank(entries[i].Dataset) < datasetRank(entries[j].Dataset)
	})
	return entries, nil
}

// Clear removes the named years' entries, or everything when no years
// are given.
func (s *MemoryStore) Clear(_ context.Context, years ...int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(years) == 0 {
		removed := len(s.entries)
		s.entries = make(map[memoryKey]memoryEntry)
		return removed, nil
	}

	wanted := make(map[int]bool, len(years))
	for _, year := range years {
		wanted[year] = true
	}

	removed := 0
	for key := range s.entries {
		if wanted[key.year] {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}
