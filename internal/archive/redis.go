package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the aggregates; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary archive.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) InsertRecord(ctx context.Context, r *Record) error {
	if err := s.primary.InsertRecord(ctx, r); err != nil {
		return err
	}
	s.cacheRecord(ctx, r)
	// Aggregates are stale now; next read re-populates.
	s.rdb.Del(ctx, statsKey())
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetRecord(ctx context.Context, auctionID string) (*Record, error) {
	data, err := s.rdb.Get(ctx, recordKey(auctionID)).Bytes()
	if err == nil {
		var r Record
		if json.Unmarshal(data, &r) == nil {
			return &r, nil
		}
	}

	// Cache miss: read from primary.
	r, err := s.primary.GetRecord(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	s.cacheRecord(ctx, r)
	return r, nil
}

func (s *CachedStore) PlayerStats(ctx context.Context) (*Stats, error) {
	data, err := s.rdb.Get(ctx, statsKey()).Bytes()
	if err == nil {
		var st Stats
		if json.Unmarshal(data, &st) == nil {
			return &st, nil
		}
	}

	// Cache miss.
	st, err := s.primary.PlayerStats(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(st); err == nil {
		s.rdb.Set(ctx, statsKey(), data, s.ttl)
	}
	return st, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListRecords(ctx context.Context, limit int) ([]Record, error) {
	return s.primary.ListRecords(ctx, limit)
}

// --- Cache helpers ---

func (s *CachedStore) cacheRecord(ctx context.Context, r *Record) {
	if data, err := json.Marshal(r); err == nil {
		s.rdb.Set(ctx, recordKey(r.AuctionID), data, s.ttl)
	}
}

func recordKey(id string) string { return fmt.Sprintf("auction:record:%s", id) }
func statsKey() string           { return "auction:stats" }
