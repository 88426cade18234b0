// Package query is the read side of the audit subsystem. Reads go straight to
// the store; nothing is buffered locally.
//
// Service reports failures to the caller. FailSoft is the binding for screens
// that prefer an empty result over an error; it cannot tell "no matches" from
// "query failed" apart, so anything that needs the difference uses Service.
package query

import (
	"context"
	"fmt"
	"log/slog"

	audit "voyage/pkg/platform/audit"
	"voyage/pkg/platform/sentinel"
)

// Service proxies reads to the store, validating filters on the way.
type Service struct {
	reader audit.Reader
}

// New creates a query service over reader.
func New(reader audit.Reader) *Service {
	return &Service{reader: reader}
}

// ListForResource returns every entry for one resource, newest first.
func (s *Service) ListForResource(ctx context.Context, resourceType audit.ResourceType, resourceID string) ([]audit.LogEntry, error) {
	if !resourceType.IsValid() || resourceID == "" {
		return nil, fmt.Errorf("list for resource %q/%q: %w", resourceType, resourceID, sentinel.ErrInvalidInput)
	}
	logs, err := s.reader.ListByResource(ctx, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list for resource: %w", err)
	}
	return nonNil(logs), nil
}

// ListForUser returns every entry recorded for userID, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]audit.LogEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("list for user: %w", sentinel.ErrInvalidInput)
	}
	logs, err := s.reader.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list for user: %w", err)
	}
	return nonNil(logs), nil
}

// Search runs a filtered, paginated query. Page and limit are normalised
// before the store sees them.
func (s *Service) Search(ctx context.Context, q audit.SearchQuery) (audit.Page, error) {
	q = q.Normalize()
	if err := validate(q.Filters); err != nil {
		return audit.Page{}, fmt.Errorf("search: %w", err)
	}
	page, err := s.reader.Search(ctx, q)
	if err != nil {
		return audit.Page{}, fmt.Errorf("search: %w", err)
	}
	page.Logs = nonNil(page.Logs)
	return page, nil
}

// Count aggregates the entries matching f.
func (s *Service) Count(ctx context.Context, f audit.Filters) (audit.Counts, error) {
	if err := validate(f); err != nil {
		return audit.Counts{}, fmt.Errorf("count: %w", err)
	}
	counts, err := s.reader.Count(ctx, f)
	if err != nil {
		return audit.Counts{}, fmt.Errorf("count: %w", err)
	}
	return counts, nil
}

func validate(f audit.Filters) error {
	if f.Action != "" && !f.Action.IsValid() {
		return fmt.Errorf("unknown action %q: %w", f.Action, sentinel.ErrInvalidInput)
	}
	if f.ResourceType != "" && !f.ResourceType.IsValid() {
		return fmt.Errorf("unknown resource type %q: %w", f.ResourceType, sentinel.ErrInvalidInput)
	}
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.EndDate.Before(f.StartDate) {
		return fmt.Errorf("end date before start date: %w", sentinel.ErrInvalidInput)
	}
	return nil
}

func nonNil(logs []audit.LogEntry) []audit.LogEntry {
	if logs == nil {
		return []audit.LogEntry{}
	}
	return logs
}

// FailSoft wraps a Service and swallows every read error, logging it and
// returning an empty result instead.
type FailSoft struct {
	svc    *Service
	logger *slog.Logger
}

// NewFailSoft creates the fail-soft binding.
func NewFailSoft(svc *Service, logger *slog.Logger) *FailSoft {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailSoft{svc: svc, logger: logger}
}

// ListForResource returns an empty slice on error.
func (f *FailSoft) ListForResource(ctx context.Context, resourceType audit.ResourceType, resourceID string) []audit.LogEntry {
	logs, err := f.svc.ListForResource(ctx, resourceType, resourceID)
	if err != nil {
		f.logger.ErrorContext(ctx, "failed to fetch audit logs for resource",
			"resource_type", resourceType,
			"resource_id", resourceID,
			"error", err,
		)
		return []audit.LogEntry{}
	}
	return logs
}

// ListForUser returns an empty slice on error.
func (f *FailSoft) ListForUser(ctx context.Context, userID string) []audit.LogEntry {
	logs, err := f.svc.ListForUser(ctx, userID)
	if err != nil {
		f.logger.ErrorContext(ctx, "failed to fetch audit logs for user",
			"user_id", userID,
			"error", err,
		)
		return []audit.LogEntry{}
	}
	return logs
}

// Search returns a zeroed page on error, echoing the requested page number.
func (f *FailSoft) Search(ctx context.Context, q audit.SearchQuery) audit.Page {
	page, err := f.svc.Search(ctx, q)
	if err != nil {
		f.logger.ErrorContext(ctx, "failed to search audit logs", "error", err)
		return audit.Page{Logs: []audit.LogEntry{}, Page: q.Normalize().Page}
	}
	return page
}

// Count returns zero counts on error.
func (f *FailSoft) Count(ctx context.Context, filters audit.Filters) audit.Counts {
	counts, err := f.svc.Count(ctx, filters)
	if err != nil {
		f.logger.ErrorContext(ctx, "failed to count audit logs", "error", err)
		return audit.NewCounts()
	}
	return counts
}
