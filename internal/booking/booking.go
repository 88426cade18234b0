// Package booking is the vacation-booking domain as far as auditing needs it:
// every mutation and every read of a booking emits an audit entry.
package booking

import (
	"fmt"
	"strings"
	"time"

	"voyage/pkg/platform/sentinel"
)

// Status of a booking.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Booking is one reservation of a trip for a customer.
type Booking struct {
	ID           string
	CustomerID   string
	TripID       string
	Destination  string
	Travelers    int
	DepartureAt  time.Time
	Status       Status
	CancelReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateRequest describes a new booking.
type CreateRequest struct {
	CustomerID  string
	TripID      string
	Destination string
	Travelers   int
	DepartureAt time.Time
}

// Validate checks the required fields.
func (r CreateRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.CustomerID) == "":
		return fmt.Errorf("customer id is required: %w", sentinel.ErrInvalidInput)
	case strings.TrimSpace(r.TripID) == "":
		return fmt.Errorf("trip id is required: %w", sentinel.ErrInvalidInput)
	case r.Travelers < 1:
		return fmt.Errorf("at least one traveler is required: %w", sentinel.ErrInvalidInput)
	}
	return nil
}

// UpdateRequest changes a booking. Nil fields are left alone.
type UpdateRequest struct {
	Destination *string
	Travelers   *int
	DepartureAt *time.Time
}

// apply mutates b and returns the changed fields as old/new pairs.
func (r UpdateRequest) apply(b *Booking) (map[string]any, error) {
	changes := map[string]any{}
	if r.Destination != nil && *r.Destination != b.Destination {
		changes["destination"] = map[string]any{"from": b.Destination, "to": *r.Destination}
		b.Destination = *r.Destination
	}
	if r.Travelers != nil && *r.Travelers != b.Travelers {
		if *r.Travelers < 1 {
			return nil, fmt.Errorf("at least one traveler is required: %w", sentinel.ErrInvalidInput)
		}
		changes["travelers"] = map[string]any{"from": b.Travelers, "to": *r.Travelers}
		b.Travelers = *r.Travelers
	}
	if r.DepartureAt != nil && !r.DepartureAt.Equal(b.DepartureAt) {
		changes["departureAt"] = map[string]any{
			"from": b.DepartureAt.UTC().Format(time.RFC3339),
			"to":   r.DepartureAt.UTC().Format(time.RFC3339),
		}
		b.DepartureAt = *r.DepartureAt
	}
	return changes, nil
}

// snapshot is the detail payload recorded for a created booking.
func (b Booking) snapshot() map[string]any {
	return map[string]any{
		"customerId":  b.CustomerID,
		"tripId":      b.TripID,
		"destination": b.Destination,
		"travelers":   b.Travelers,
		"departureAt": b.DepartureAt.UTC().Format(time.RFC3339),
	}
}
