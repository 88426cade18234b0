package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, transports and the
// ingestion handler return these (optionally wrapped) so callers can branch
// with errors.Is without depending on a concrete implementation:
//   - ErrNotFound: entity does not exist in store
//   - ErrInvalidInput: request rejected before reaching the store
//   - ErrUnauthorized: caller identity missing or invalid
//   - ErrUnavailable: service or resource temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("unavailable")
)
