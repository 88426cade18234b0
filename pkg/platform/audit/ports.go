//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Transmitter,Reader,Exporter

package audit

import "context"

// Transmitter delivers a batch of pending entries to the ingestion endpoint.
// Any returned error means the whole batch was not accepted.
type Transmitter interface {
	SendBatch(ctx context.Context, batch []PendingEntry) error
}

// Reader is the read side of the store as seen by callers.
type Reader interface {
	ListByResource(ctx context.Context, resourceType ResourceType, resourceID string) ([]LogEntry, error)
	ListByUser(ctx context.Context, userID string) ([]LogEntry, error)
	Search(ctx context.Context, q SearchQuery) (Page, error)
	Count(ctx context.Context, f Filters) (Counts, error)
}

// Blob is a downloadable export body.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// Exporter produces a compliance export for the given filters.
type Exporter interface {
	Export(ctx context.Context, f Filters) (Blob, error)
}

// Store is the append-only ingestion store. Reads return entries newest first.
type Store interface {
	AppendBatch(ctx context.Context, entries []PendingEntry, meta NetworkMetadata) ([]LogEntry, error)
	ListByResource(ctx context.Context, resourceType ResourceType, resourceID string) ([]LogEntry, error)
	ListByUser(ctx context.Context, userID string) ([]LogEntry, error)
	Search(ctx context.Context, q SearchQuery) (Page, error)
	Count(ctx context.Context, f Filters) (Counts, error)
	ListRange(ctx context.Context, f Filters) ([]LogEntry, error)
}
