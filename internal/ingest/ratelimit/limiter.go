package ratelimit

import (
	"sync"
	"time"
)

// Result describes the outcome of a single Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds
}

// Limiter is an in-memory sliding-window limiter keyed by an arbitrary string
// (the client IP for ingestion). It is not shared across processes.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*slidingWindow
	now     func() time.Time
}

type slidingWindow struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the limiter time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a limiter that admits limit requests per window for each key.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*slidingWindow),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records one request for key if the window has room.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	sw := l.windows[key]
	if sw == nil {
		sw = &slidingWindow{}
		l.windows[key] = sw
	}
	sw.cleanup(now, l.window)
	sw.lastSeen = now

	if len(sw.timestamps) < l.limit {
		sw.timestamps = append(sw.timestamps, now)
		return Result{
			Allowed:   true,
			Limit:     l.limit,
			Remaining: l.limit - len(sw.timestamps),
			ResetAt:   sw.timestamps[0].Add(l.window),
		}
	}

	resetAt := sw.timestamps[0].Add(l.window)
	retry := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	if retry < 1 {
		retry = 1
	}
	return Result{
		Allowed:    false,
		Limit:      l.limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retry,
	}
}

// Prune drops keys idle for longer than one window and returns how many were
// removed.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	removed := 0
	for key, sw := range l.windows {
		if !sw.lastSeen.After(cutoff) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// cleanup removes timestamps that have left the window.
func (sw *slidingWindow) cleanup(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}
