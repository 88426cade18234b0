//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks AuditRecorder

package booking

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"voyage/pkg/platform/sentinel"
	"voyage/pkg/requestcontext"
)

// AuditRecorder is the audit port the booking service depends on. Calls must
// not block and never fail.
type AuditRecorder interface {
	BookingCreated(ctx context.Context, bookingID string, booking map[string]any)
	BookingUpdated(ctx context.Context, bookingID string, changes map[string]any)
	BookingCancelled(ctx context.Context, bookingID, reason string)
	BookingViewed(ctx context.Context, bookingID string)
}

// Service manages bookings held in memory.
type Service struct {
	mu       sync.RWMutex
	bookings map[string]Booking
	audit    AuditRecorder
}

// NewService creates a booking service that reports to recorder.
func NewService(recorder AuditRecorder) *Service {
	return &Service{
		bookings: make(map[string]Booking),
		audit:    recorder,
	}
}

// Create stores a new confirmed booking.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Booking, error) {
	if err := req.Validate(); err != nil {
		return Booking{}, err
	}
	now := requestcontext.Now(ctx)
	b := Booking{
		ID:          uuid.NewString(),
		CustomerID:  req.CustomerID,
		TripID:      req.TripID,
		Destination: req.Destination,
		Travelers:   req.Travelers,
		DepartureAt: req.DepartureAt,
		Status:      StatusConfirmed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.bookings[b.ID] = b
	s.mu.Unlock()

	s.audit.BookingCreated(ctx, b.ID, b.snapshot())
	return b, nil
}

// Get returns one booking and records the view.
func (s *Service) Get(ctx context.Context, id string) (Booking, error) {
	s.mu.RLock()
	b, ok := s.bookings[id]
	s.mu.RUnlock()
	if !ok {
		return Booking{}, fmt.Errorf("booking %s: %w", id, sentinel.ErrNotFound)
	}

	s.audit.BookingViewed(ctx, id)
	return b, nil
}

// List returns every booking of a customer, oldest first. Listing is not
// audited per booking.
func (s *Service) List(_ context.Context, customerID string) []Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Booking{}
	for _, b := range s.bookings {
		if b.CustomerID == customerID {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b Booking) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// Update applies req. Only fields that actually changed are recorded; a no-op
// update records nothing.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (Booking, error) {
	s.mu.Lock()
	b, ok := s.bookings[id]
	if !ok {
		s.mu.Unlock()
		return Booking{}, fmt.Errorf("booking %s: %w", id, sentinel.ErrNotFound)
	}
	if b.Status == StatusCancelled {
		s.mu.Unlock()
		return Booking{}, fmt.Errorf("booking %s is cancelled: %w", id, sentinel.ErrInvalidInput)
	}
	changes, err := req.apply(&b)
	if err != nil {
		s.mu.Unlock()
		return Booking{}, err
	}
	if len(changes) > 0 {
		b.UpdatedAt = requestcontext.Now(ctx)
		s.bookings[id] = b
	}
	s.mu.Unlock()

	if len(changes) > 0 {
		s.audit.BookingUpdated(ctx, id, maps.Clone(changes))
	}
	return b, nil
}

// Cancel cancels a confirmed booking with a reason.
func (s *Service) Cancel(ctx context.Context, id, reason string) (Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Booking{}, fmt.Errorf("cancellation reason is required: %w", sentinel.ErrInvalidInput)
	}

	s.mu.Lock()
	b, ok := s.bookings[id]
	if !ok {
		s.mu.Unlock()
		return Booking{}, fmt.Errorf("booking %s: %w", id, sentinel.ErrNotFound)
	}
	if b.Status == StatusCancelled {
		s.mu.Unlock()
		return Booking{}, fmt.Errorf("booking %s already cancelled: %w", id, sentinel.ErrInvalidInput)
	}
	b.Status = StatusCancelled
	b.CancelReason = reason
	b.UpdatedAt = requestcontext.Now(ctx)
	s.bookings[id] = b
	s.mu.Unlock()

	s.audit.BookingCancelled(ctx, id, reason)
	return b, nil
}
