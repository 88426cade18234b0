package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "voyage/pkg/platform/audit"
)

// InMemoryStore is an append-only audit store backed by a slice. Entries are
// kept in arrival order and read back newest first.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.LogEntry
	now     func() time.Time
}

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clear removes every entry. Test helper only.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// AppendBatch stores every entry of the batch with the same timestamp and
// network metadata.
func (s *InMemoryStore) AppendBatch(_ context.Context, batch []audit.PendingEntry, meta audit.NetworkMetadata) ([]audit.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC()
	stored := make([]audit.LogEntry, 0, len(batch))
	for _, e := range batch {
		stored = append(stored, audit.LogEntry{
			ID:           uuid.NewString(),
			Timestamp:    ts,
			PendingEntry: e,
			IPAddress:    meta.IPAddress,
			UserAgent:    meta.UserAgent,
		})
	}
	s.entries = append(s.entries, stored...)
	return stored, nil
}

// ListByResource returns every entry for one resource, newest first.
func (s *InMemoryStore) ListByResource(_ context.Context, resourceType audit.ResourceType, resourceID string) ([]audit.LogEntry, error) {
	return s.filter(audit.Filters{ResourceType: resourceType, ResourceID: resourceID}), nil
}

// ListByUser returns every entry recorded for one user, newest first.
func (s *InMemoryStore) ListByUser(_ context.Context, userID string) ([]audit.LogEntry, error) {
	return s.filter(audit.Filters{UserID: userID}), nil
}

// Search returns one page of matching entries, newest first.
func (s *InMemoryStore) Search(_ context.Context, q audit.SearchQuery) (audit.Page, error) {
	q = q.Normalize()
	matches := s.filter(q.Filters)

	start := min(q.Offset(), len(matches))
	end := min(start+q.Limit, len(matches))
	return audit.NewPage(matches[start:end], len(matches), q), nil
}

// Count aggregates matching entries by action and resource type.
func (s *InMemoryStore) Count(_ context.Context, f audit.Filters) (audit.Counts, error) {
	counts := audit.NewCounts()
	for _, e := range s.filter(f) {
		counts.Add(e)
	}
	return counts, nil
}

// ListRange returns every matching entry, newest first.
func (s *InMemoryStore) ListRange(_ context.Context, f audit.Filters) ([]audit.LogEntry, error) {
	return s.filter(f), nil
}

func (s *InMemoryStore) filter(f audit.Filters) []audit.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []audit.LogEntry{}
	for _, e := range slices.Backward(s.entries) {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}
