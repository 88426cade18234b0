// Package export produces downloadable audit reports and audits the download.
package export

import (
	"context"
	"fmt"
	"time"

	audit "voyage/pkg/platform/audit"
	"voyage/pkg/platform/sentinel"
)

// DefaultWindow is how far back an export reaches when no start date is given.
const DefaultWindow = 90 * 24 * time.Hour

// ReportResourceID is the resource id every export entry is recorded against.
const ReportResourceID = "audit-logs"

const csvContentType = "text/csv"

// Recorder is the slice of the publisher the export facade needs.
type Recorder interface {
	Record(ctx context.Context, action audit.Action, resourceType audit.ResourceType, resourceID string, details map[string]any)
}

// Request selects what to export. Zero dates are filled in by the service.
type Request struct {
	StartDate    time.Time
	EndDate      time.Time
	UserID       string
	Action       audit.Action
	ResourceType audit.ResourceType
}

// Service delegates exports to the store and records one export entry per
// successful download.
type Service struct {
	exporter audit.Exporter
	recorder Recorder
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for default dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates an export service.
func New(exporter audit.Exporter, recorder Recorder, opts ...Option) *Service {
	s := &Service{
		exporter: exporter,
		recorder: recorder,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export fetches the report. Errors are returned to the caller and nothing is
// recorded for a failed export.
func (s *Service) Export(ctx context.Context, req Request) (audit.Blob, error) {
	filters, err := s.filters(req)
	if err != nil {
		return audit.Blob{}, err
	}

	blob, err := s.exporter.Export(ctx, filters)
	if err != nil {
		return audit.Blob{}, fmt.Errorf("export audit logs: %w", err)
	}
	if blob.Name == "" {
		blob.Name = FileName(filters.ResourceType, filters.EndDate)
	}
	if blob.ContentType == "" {
		blob.ContentType = csvContentType
	}

	s.recorder.Record(ctx, audit.ActionExport, audit.ResourceReport, ReportResourceID, details(filters))
	return blob, nil
}

func (s *Service) filters(req Request) (audit.Filters, error) {
	end := req.EndDate
	if end.IsZero() {
		end = s.now()
	}
	start := req.StartDate
	if start.IsZero() {
		start = end.Add(-DefaultWindow)
	}
	if end.Before(start) {
		return audit.Filters{}, fmt.Errorf("export: end date before start date: %w", sentinel.ErrInvalidInput)
	}
	if req.Action != "" && !req.Action.IsValid() {
		return audit.Filters{}, fmt.Errorf("export: unknown action %q: %w", req.Action, sentinel.ErrInvalidInput)
	}
	if req.ResourceType != "" && !req.ResourceType.IsValid() {
		return audit.Filters{}, fmt.Errorf("export: unknown resource type %q: %w", req.ResourceType, sentinel.ErrInvalidInput)
	}
	return audit.Filters{
		UserID:       req.UserID,
		Action:       req.Action,
		ResourceType: req.ResourceType,
		StartDate:    start,
		EndDate:      end,
	}, nil
}

func details(f audit.Filters) map[string]any {
	d := map[string]any{
		"startDate": f.StartDate.UTC().Format(time.RFC3339),
		"endDate":   f.EndDate.UTC().Format(time.RFC3339),
	}
	if f.UserID != "" {
		d["userId"] = f.UserID
	}
	if f.Action != "" {
		d["action"] = string(f.Action)
	}
	if f.ResourceType != "" {
		d["resourceType"] = string(f.ResourceType)
	}
	return d
}

// FileName is the download name for a report, e.g.
// audit-log-booking-audit-logs-2024-03-01.csv.
func FileName(resourceType audit.ResourceType, day time.Time) string {
	scope := "all"
	if resourceType != "" {
		scope = string(resourceType)
	}
	return fmt.Sprintf("audit-log-%s-%s-%s.csv", scope, ReportResourceID, day.UTC().Format(time.DateOnly))
}
