package handler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	audit "voyage/pkg/platform/audit"
	"voyage/pkg/platform/sentinel"
)

// MaxBatchSize bounds one ingestion request.
const MaxBatchSize = audit.MaxBatchSize

// BatchRequest is the body of POST /api/audit-logs/batch.
type BatchRequest struct {
	Logs []audit.PendingEntry `json:"logs"`
}

// Validate rejects the whole batch if any entry is malformed.
func (r *BatchRequest) Validate() error {
	if len(r.Logs) == 0 {
		return fmt.Errorf("logs is required: %w", sentinel.ErrInvalidInput)
	}
	if len(r.Logs) > MaxBatchSize {
		return fmt.Errorf("batch of %d exceeds limit of %d: %w", len(r.Logs), MaxBatchSize, sentinel.ErrInvalidInput)
	}
	for i, e := range r.Logs {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("logs[%d]: %w", i, err)
		}
	}
	return nil
}

// parseFilters reads the shared filter parameters. A bare-date endDate covers
// the whole day.
func parseFilters(q url.Values) (audit.Filters, error) {
	f := audit.Filters{
		UserID:       strings.TrimSpace(q.Get("userId")),
		Action:       audit.Action(strings.TrimSpace(q.Get("action"))),
		ResourceType: audit.ResourceType(strings.TrimSpace(q.Get("resourceType"))),
		ResourceID:   strings.TrimSpace(q.Get("resourceId")),
	}
	if f.Action != "" && !f.Action.IsValid() {
		return audit.Filters{}, fmt.Errorf("unknown action %q: %w", f.Action, sentinel.ErrInvalidInput)
	}
	if f.ResourceType != "" && !f.ResourceType.IsValid() {
		return audit.Filters{}, fmt.Errorf("unknown resourceType %q: %w", f.ResourceType, sentinel.ErrInvalidInput)
	}

	var err error
	if f.StartDate, err = parseDate(q.Get("startDate"), false); err != nil {
		return audit.Filters{}, fmt.Errorf("startDate: %w", err)
	}
	if f.EndDate, err = parseDate(q.Get("endDate"), true); err != nil {
		return audit.Filters{}, fmt.Errorf("endDate: %w", err)
	}
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.EndDate.Before(f.StartDate) {
		return audit.Filters{}, fmt.Errorf("endDate before startDate: %w", sentinel.ErrInvalidInput)
	}
	return f, nil
}

func parseDate(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, sentinel.ErrInvalidInput)
	}
	if endOfDay {
		return day.Add(24*time.Hour - time.Nanosecond), nil
	}
	return day, nil
}

func parseSearch(q url.Values) (audit.SearchQuery, error) {
	f, err := parseFilters(q)
	if err != nil {
		return audit.SearchQuery{}, err
	}
	page, err := parseInt(q.Get("page"))
	if err != nil {
		return audit.SearchQuery{}, fmt.Errorf("page: %w", err)
	}
	limit, err := parseInt(q.Get("limit"))
	if err != nil {
		return audit.SearchQuery{}, fmt.Errorf("limit: %w", err)
	}
	return audit.SearchQuery{Filters: f, Page: page, Limit: limit}.Normalize(), nil
}

func parseInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", raw, sentinel.ErrInvalidInput)
	}
	return n, nil
}
