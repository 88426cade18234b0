// Package identity resolves the authenticated actor that audit entries are
// attributed to.
package identity

import (
	"context"

	audit "voyage/pkg/platform/audit"
	"voyage/pkg/requestcontext"
)

// Provider returns the currently authenticated actor, if any.
type Provider interface {
	Actor(ctx context.Context) (audit.Actor, bool)
}

// ContextProvider reads the actor that auth middleware stored in the context.
type ContextProvider struct{}

// Actor implements Provider.
func (ContextProvider) Actor(ctx context.Context) (audit.Actor, bool) {
	return requestcontext.Actor(ctx)
}

// Static always returns the same actor. A zero actor means unauthenticated.
type Static audit.Actor

// Actor implements Provider.
func (s Static) Actor(context.Context) (audit.Actor, bool) {
	actor := audit.Actor(s)
	if actor.IsZero() {
		return audit.Actor{}, false
	}
	return actor, true
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (audit.Actor, bool)

// Actor implements Provider.
func (f ProviderFunc) Actor(ctx context.Context) (audit.Actor, bool) {
	return f(ctx)
}
