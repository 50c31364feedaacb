// Package history keeps the remote prediction history in sync with local filter state.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/verte-zerg/tuimeta/internal/logging"
	"github.com/verte-zerg/tuimeta/internal/model"
)

// Remote is the persisted collection. api.Client satisfies it.
type Remote interface {
	ListHistory(ctx context.Context, filter model.FilterCriteria) ([]model.HistoryItem, error)
	Statistics(ctx context.Context) (model.Statistics, error)
	DeleteHistoryItem(ctx context.Context, id string) error
	ClearHistory(ctx context.Context) error
}

// Snapshotter records successful fetches for offline viewing. store.Store satisfies it.
type Snapshotter interface {
	SaveHistory(ctx context.Context, filter model.FilterCriteria, items []model.HistoryItem, fetchedAt time.Time) error
	SaveStatistics(ctx context.Context, stats model.Statistics, fetchedAt time.Time) error
	Clear(ctx context.Context) error
}

// Snapshot is the store's view after a round trip.
type Snapshot struct {
	Filter   model.FilterCriteria
	Items    []model.HistoryItem
	Stats    model.Statistics
	HasStats bool
	// ListErr and StatsErr report the fetches that failed; the matching fields keep their previous values.
	ListErr  error
	StatsErr error
}

// Store is a read-through cache over Remote. Every change is a full
// replacement after a successful round trip; items are never edited in place.
// It is safe for concurrent use.
type Store struct {
	remote Remote
	snap   Snapshotter
	now    func() time.Time

	// persistMu orders cache and snapshot writes against deletions.
	persistMu sync.Mutex
	mu        sync.Mutex
	// gen counts successful deletions; fetches started before one are not cached.
	gen      uint64
	filter   model.FilterCriteria
	items    []model.HistoryItem
	stats    model.Statistics
	hasStats bool
}

// NewStore builds a store. snap may be nil.
func NewStore(remote Remote, snap Snapshotter) *Store {
	return &Store{remote: remote, snap: snap, now: time.Now}
}

func (s *Store) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// List fetches items matching filter and replaces the cached list.
// Ordering is preserved as received.
func (s *Store) List(ctx context.Context, filter model.FilterCriteria) ([]model.HistoryItem, error) {
	gen := s.generation()
	items, err := s.remote.ListHistory(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	current := gen == s.gen
	if current {
		s.filter = filter
		s.items = items
	}
	s.mu.Unlock()

	if current && s.snap != nil {
		if err := s.snap.SaveHistory(ctx, filter, items, s.now()); err != nil {
			logging.Warnf("failed to save history snapshot: %v", err)
		}
	}
	return cloneItems(items), nil
}

// Statistics fetches aggregate counts over the whole collection, ignoring any filter.
func (s *Store) Statistics(ctx context.Context) (model.Statistics, error) {
	gen := s.generation()
	stats, err := s.remote.Statistics(ctx)
	if err != nil {
		return model.Statistics{}, err
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	current := gen == s.gen
	if current {
		s.stats = stats
		s.hasStats = true
	}
	s.mu.Unlock()

	if current && s.snap != nil {
		if err := s.snap.SaveStatistics(ctx, stats, s.now()); err != nil {
			logging.Warnf("failed to save statistics snapshot: %v", err)
		}
	}
	return stats, nil
}

// Refresh fetches the list for filter and the statistics. The snapshot holds
// what this call fetched; a failed fetch falls back to the cache.
func (s *Store) Refresh(ctx context.Context, filter model.FilterCriteria) Snapshot {
	items, listErr := s.List(ctx, filter)
	stats, statsErr := s.Statistics(ctx)
	if statsErr != nil {
		logging.Warnf("failed to fetch statistics: %v", statsErr)
	}

	snap := Snapshot{Filter: filter, ListErr: listErr, StatsErr: statsErr}
	cached := s.Cached()
	if listErr == nil {
		snap.Items = items
	} else if cached.Filter == filter {
		snap.Items = cached.Items
	}
	if statsErr == nil {
		snap.Stats = stats
		snap.HasStats = true
	} else {
		snap.Stats = cached.Stats
		snap.HasStats = cached.HasStats
	}
	return snap
}

// DeleteOne removes id remotely, then refreshes. On failure the cache is untouched.
func (s *Store) DeleteOne(ctx context.Context, id string, filter model.FilterCriteria) (Snapshot, error) {
	if err := s.remote.DeleteHistoryItem(ctx, id); err != nil {
		return s.Cached(), err
	}
	s.invalidate(ctx)
	return s.Refresh(ctx, filter), nil
}

// DeleteAll clears the remote collection regardless of filter, then refreshes.
func (s *Store) DeleteAll(ctx context.Context, filter model.FilterCriteria) (Snapshot, error) {
	if err := s.remote.ClearHistory(ctx); err != nil {
		return s.Cached(), err
	}
	s.invalidate(ctx)
	return s.Refresh(ctx, filter), nil
}

// invalidate drops the snapshots and discards results of fetches already in flight.
func (s *Store) invalidate(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()

	if s.snap == nil {
		return
	}
	if err := s.snap.Clear(ctx); err != nil {
		logging.Warnf("failed to clear history snapshots: %v", err)
	}
}

// Cached returns the last successfully fetched state.
func (s *Store) Cached() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Filter:   s.filter,
		Items:    cloneItems(s.items),
		Stats:    s.stats,
		HasStats: s.hasStats,
	}
}

func cloneItems(items []model.HistoryItem) []model.HistoryItem {
	if items == nil {
		return nil
	}
	return append([]model.HistoryItem(nil), items...)
}
