package archive

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore implements Store with an in-memory slice. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates a new in-memory archive.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) InsertRecord(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.AuctionID == r.AuctionID {
			return fmt.Errorf("record for auction %s already exists", r.AuctionID)
		}
	}
	s.records = append(s.records, *r)
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, auctionID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.AuctionID == auctionID {
			copy := r
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("record for auction %s not found", auctionID)
}

func (s *MemoryStore) ListRecords(_ context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit <= 0 || limit > n {
		limit = n
	}

	// Insertion order is chronological; return newest first.
	out := make([]Record, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *MemoryStore) PlayerStats(_ context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return computeStats(s.records), nil
}
