package audit

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"voyage/pkg/platform/sentinel"
)

// Action is the closed set of auditable actions. The string values are the
// wire literals shared with the ingestion store.
type Action string

const (
	ActionCreate          Action = "create"
	ActionRead            Action = "read"
	ActionUpdate          Action = "update"
	ActionDelete          Action = "delete"
	ActionLogin           Action = "login"
	ActionLogout          Action = "logout"
	ActionExport          Action = "export"
	ActionImport          Action = "import"
	ActionPrint           Action = "print"
	ActionSearch          Action = "search"
	ActionPayment         Action = "payment"
	ActionRefund          Action = "refund"
	ActionBookingCreate   Action = "booking_create"
	ActionBookingUpdate   Action = "booking_update"
	ActionBookingCancel   Action = "booking_cancel"
	ActionBookingView     Action = "booking_view"
	ActionSensitiveAction Action = "sensitive_action"
)

var validActions = map[Action]bool{
	ActionCreate:          true,
	ActionRead:            true,
	ActionUpdate:          true,
	ActionDelete:          true,
	ActionLogin:           true,
	ActionLogout:          true,
	ActionExport:          true,
	ActionImport:          true,
	ActionPrint:           true,
	ActionSearch:          true,
	ActionPayment:         true,
	ActionRefund:          true,
	ActionBookingCreate:   true,
	ActionBookingUpdate:   true,
	ActionBookingCancel:   true,
	ActionBookingView:     true,
	ActionSensitiveAction: true,
}

// IsValid reports whether a is one of the known action literals.
func (a Action) IsValid() bool {
	return validActions[a]
}

func (a Action) String() string { return string(a) }

// ResourceType is the closed set of resource kinds an entry can point at.
type ResourceType string

const (
	ResourceUser      ResourceType = "user"
	ResourceBooking   ResourceType = "booking"
	ResourceTrip      ResourceType = "trip"
	ResourcePayment   ResourceType = "payment"
	ResourceCustomer  ResourceType = "customer"
	ResourceSystem    ResourceType = "system"
	ResourceReport    ResourceType = "report"
	ResourceItinerary ResourceType = "itinerary"
)

var validResourceTypes = map[ResourceType]bool{
	ResourceUser:      true,
	ResourceBooking:   true,
	ResourceTrip:      true,
	ResourcePayment:   true,
	ResourceCustomer:  true,
	ResourceSystem:    true,
	ResourceReport:    true,
	ResourceItinerary: true,
}

// IsValid reports whether r is one of the known resource literals.
func (r ResourceType) IsValid() bool {
	return validResourceTypes[r]
}

func (r ResourceType) String() string { return string(r) }

// Well-known detail keys.
const (
	DetailTwoFactorVerified = "twoFactorVerified"
	DetailSensitiveAction   = "sensitiveAction"
	DetailCancelReason      = "reason"
	DetailChanges           = "changes"
)

// Actor is the identity snapshot taken when an entry is built. It is copied by
// value so later profile edits never reach entries already recorded.
type Actor struct {
	UserID     string
	Name       string
	Email      string
	EmployeeID string
}

// IsZero reports whether no identity is present.
func (a Actor) IsZero() bool {
	return a.UserID == ""
}

// MaxBatchSize is the largest batch the ingestion store accepts.
const MaxBatchSize = 1000

// PendingEntry is an entry that has not been acknowledged by the store yet.
// It carries no id, timestamp or network metadata; the store assigns those.
type PendingEntry struct {
	UserID       string         `json:"userId"`
	UserName     string         `json:"userName"`
	UserEmail    string         `json:"userEmail"`
	EmployeeID   string         `json:"employeeId,omitempty"`
	Action       Action         `json:"action"`
	ResourceType ResourceType   `json:"resourceType"`
	ResourceID   string         `json:"resourceId"`
	Details      map[string]any `json:"details,omitempty"`
}

// NewPendingEntry builds an entry from an actor snapshot. details is shallow
// copied so the caller can keep mutating its own map.
func NewPendingEntry(actor Actor, action Action, resourceType ResourceType, resourceID string, details map[string]any) PendingEntry {
	var d map[string]any
	if len(details) > 0 {
		d = maps.Clone(details)
	}
	return PendingEntry{
		UserID:       actor.UserID,
		UserName:     actor.Name,
		UserEmail:    actor.Email,
		EmployeeID:   actor.EmployeeID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      d,
	}
}

// Validate reports the first field the ingestion store would reject. The
// error wraps sentinel.ErrInvalidInput.
func (e PendingEntry) Validate() error {
	switch {
	case strings.TrimSpace(e.UserID) == "":
		return fmt.Errorf("userId is required: %w", sentinel.ErrInvalidInput)
	case !e.Action.IsValid():
		return fmt.Errorf("unknown action %q: %w", e.Action, sentinel.ErrInvalidInput)
	case !e.ResourceType.IsValid():
		return fmt.Errorf("unknown resourceType %q: %w", e.ResourceType, sentinel.ErrInvalidInput)
	case strings.TrimSpace(e.ResourceID) == "":
		return fmt.Errorf("resourceId is required: %w", sentinel.ErrInvalidInput)
	}
	return nil
}

// Actor returns the identity snapshot stored on the entry.
func (e PendingEntry) Actor() Actor {
	return Actor{
		UserID:     e.UserID,
		Name:       e.UserName,
		Email:      e.UserEmail,
		EmployeeID: e.EmployeeID,
	}
}

// LogEntry is an entry as stored and returned by the store. Once it has an ID
// it is never mutated or deleted.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	PendingEntry
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// NetworkMetadata is attached by the ingestion endpoint, never by the client.
type NetworkMetadata struct {
	IPAddress string
	UserAgent string
}

// Filters narrows reads. Zero-valued fields mean no constraint.
type Filters struct {
	UserID       string
	Action       Action
	ResourceType ResourceType
	ResourceID   string
	StartDate    time.Time
	EndDate      time.Time
}

// Matches reports whether entry satisfies every set filter field. The date
// range is inclusive on both ends.
func (f Filters) Matches(entry LogEntry) bool {
	if f.UserID != "" && entry.UserID != f.UserID {
		return false
	}
	if f.Action != "" && entry.Action != f.Action {
		return false
	}
	if f.ResourceType != "" && entry.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != "" && entry.ResourceID != f.ResourceID {
		return false
	}
	if !f.StartDate.IsZero() && entry.Timestamp.Before(f.StartDate) {
		return false
	}
	if !f.EndDate.IsZero() && entry.Timestamp.After(f.EndDate) {
		return false
	}
	return true
}

// Pagination defaults.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// SearchQuery is a filtered, paginated read. Page is 1-based.
type SearchQuery struct {
	Filters
	Page  int
	Limit int
}

// Normalize clamps page and limit into their valid ranges.
func (q SearchQuery) Normalize() SearchQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	return q
}

// Offset returns the number of entries skipped before this page.
func (q SearchQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Page is one page of a search result.
type Page struct {
	Logs       []LogEntry `json:"logs"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
}

// NewPage builds the pagination envelope for a result of total matches.
func NewPage(logs []LogEntry, total int, q SearchQuery) Page {
	if logs == nil {
		logs = []LogEntry{}
	}
	totalPages := 0
	if q.Limit > 0 {
		totalPages = (total + q.Limit - 1) / q.Limit
	}
	return Page{Logs: logs, Total: total, Page: q.Page, TotalPages: totalPages}
}

// Counts aggregates the entries matching a filter set.
type Counts struct {
	Total          int                  `json:"total"`
	ByAction       map[Action]int       `json:"byAction"`
	ByResourceType map[ResourceType]int `json:"byResourceType"`
}

// NewCounts returns an empty aggregate with initialised maps.
func NewCounts() Counts {
	return Counts{
		ByAction:       make(map[Action]int),
		ByResourceType: make(map[ResourceType]int),
	}
}

// Add folds one entry into the aggregate.
func (c *Counts) Add(entry LogEntry) {
	c.Total++
	c.ByAction[entry.Action]++
	c.ByResourceType[entry.ResourceType]++
}
