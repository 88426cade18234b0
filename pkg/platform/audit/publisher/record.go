package publisher

import (
	"context"
	"maps"

	audit "voyage/pkg/platform/audit"
)

// Record builds a pending entry for the authenticated actor and queues it.
// Without an actor the record is dropped with a warning; it is not retried,
// since there is nobody to attribute it to. An entry the store would reject
// (unknown action or resource type, empty resource id) is dropped the same
// way so it can never hold up the entries queued behind it.
func (p *Publisher) Record(ctx context.Context, action audit.Action, resourceType audit.ResourceType, resourceID string, details map[string]any) {
	actor, ok := p.actor(ctx, action)
	if !ok {
		return
	}
	p.enqueueValid(ctx, audit.NewPendingEntry(actor, action, resourceType, resourceID, details))
}

func (p *Publisher) enqueueValid(ctx context.Context, entry audit.PendingEntry) {
	if err := entry.Validate(); err != nil {
		p.metrics.incInvalid()
		p.logger.WarnContext(ctx, "audit record dropped, invalid entry",
			"action", entry.Action,
			"resource_type", entry.ResourceType,
			"error", err,
		)
		return
	}
	p.enqueue(ctx, entry)
}

func (p *Publisher) actor(ctx context.Context, action audit.Action) (audit.Actor, bool) {
	actor, ok := p.identity.Actor(ctx)
	if !ok || actor.IsZero() {
		p.metrics.incUnattributed()
		p.logger.WarnContext(ctx, "audit record dropped, no authenticated actor",
			"action", action,
		)
		return audit.Actor{}, false
	}
	return actor, true
}

// BookingCreated records a new booking.
func (p *Publisher) BookingCreated(ctx context.Context, bookingID string, booking map[string]any) {
	p.Record(ctx, audit.ActionBookingCreate, audit.ResourceBooking, bookingID, booking)
}

// BookingUpdated records the fields changed on a booking.
func (p *Publisher) BookingUpdated(ctx context.Context, bookingID string, changes map[string]any) {
	p.Record(ctx, audit.ActionBookingUpdate, audit.ResourceBooking, bookingID, map[string]any{
		audit.DetailChanges: maps.Clone(changes),
	})
}

// BookingCancelled records a cancellation and its reason.
func (p *Publisher) BookingCancelled(ctx context.Context, bookingID, reason string) {
	p.Record(ctx, audit.ActionBookingCancel, audit.ResourceBooking, bookingID, map[string]any{
		audit.DetailCancelReason: reason,
	})
}

// BookingViewed records that a booking was opened.
func (p *Publisher) BookingViewed(ctx context.Context, bookingID string) {
	p.Record(ctx, audit.ActionBookingView, audit.ResourceBooking, bookingID, nil)
}

// SensitiveAction records a gated action. The two-factor flag is always
// present in the details, whatever the caller passed.
func (p *Publisher) SensitiveAction(ctx context.Context, name string, resourceType audit.ResourceType, resourceID string, twoFactorVerified bool, details map[string]any) {
	d := make(map[string]any, len(details)+2)
	maps.Copy(d, details)
	d[audit.DetailSensitiveAction] = name
	d[audit.DetailTwoFactorVerified] = twoFactorVerified
	p.Record(ctx, audit.ActionSensitiveAction, resourceType, resourceID, d)
}

// Login records a sign-in against the actor's own user resource.
func (p *Publisher) Login(ctx context.Context, details map[string]any) {
	p.recordSelf(ctx, audit.ActionLogin, details)
}

// Logout records a sign-out against the actor's own user resource.
func (p *Publisher) Logout(ctx context.Context) {
	p.recordSelf(ctx, audit.ActionLogout, nil)
}

// Payment records a payment.
func (p *Publisher) Payment(ctx context.Context, paymentID string, details map[string]any) {
	p.Record(ctx, audit.ActionPayment, audit.ResourcePayment, paymentID, details)
}

// Refund records a refund.
func (p *Publisher) Refund(ctx context.Context, paymentID string, details map[string]any) {
	p.Record(ctx, audit.ActionRefund, audit.ResourcePayment, paymentID, details)
}

func (p *Publisher) recordSelf(ctx context.Context, action audit.Action, details map[string]any) {
	actor, ok := p.actor(ctx, action)
	if !ok {
		return
	}
	p.enqueueValid(ctx, audit.NewPendingEntry(actor, action, audit.ResourceUser, actor.UserID, details))
}
