// Package publisher records audit entries and delivers them in batches.
//
// Record never blocks on the network and never fails the caller. Entries are
// held in a bounded queue and flushed on a fixed interval, or eagerly once the
// queue reaches a threshold. At most one delivery is in flight; a failed batch
// is put back ahead of newer entries and retried on the next flush.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	audit "voyage/pkg/platform/audit"
	"voyage/pkg/platform/audit/queue"
	"voyage/pkg/platform/circuit"
	"voyage/pkg/platform/identity"
	"voyage/pkg/platform/sentinel"
)

// ErrFlushInFlight is returned by Flush when another delivery holds the guard.
var ErrFlushInFlight = errors.New("audit flush already in flight")

// finalFlushPoll is how often Stop retries acquiring the delivery guard.
const finalFlushPoll = 10 * time.Millisecond

// Publisher is the write side of the audit subsystem. Construct one per
// process (or per test) with New, then Start it.
type Publisher struct {
	transmitter audit.Transmitter
	identity    identity.Provider
	queue       *queue.Queue
	logger      *slog.Logger
	metrics     *Metrics
	breaker     *circuit.Breaker
	cfg         Config

	inFlight atomic.Bool

	mu      sync.Mutex // guards started, stopped and flushes.Add
	started bool
	stopped bool
	flushes sync.WaitGroup
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithConfig replaces all tunables at once.
func WithConfig(cfg Config) Option {
	return func(p *Publisher) {
		p.cfg = cfg
	}
}

// WithCapacity sets the queue capacity.
func WithCapacity(n int) Option {
	return func(p *Publisher) {
		p.cfg.Capacity = n
	}
}

// WithEagerThreshold sets the queue length that triggers an immediate flush.
func WithEagerThreshold(n int) Option {
	return func(p *Publisher) {
		p.cfg.EagerThreshold = n
	}
}

// WithFlushInterval sets the background flush period.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		p.cfg.FlushInterval = d
	}
}

// WithSendTimeout bounds each delivery attempt.
func WithSendTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.cfg.SendTimeout = d
	}
}

// WithBreaker replaces the breaker that tracks ingestion store health.
func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

// New creates a publisher that delivers through transmitter and attributes
// entries to the actor returned by ids.
func New(transmitter audit.Transmitter, ids identity.Provider, opts ...Option) *Publisher {
	p := &Publisher{
		transmitter: transmitter,
		identity:    ids,
		logger:      slog.Default(),
		cfg:         DefaultConfig(),
		breaker:     circuit.New("audit-store", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(1)),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.breaker == nil {
		p.breaker = circuit.New("audit-store")
	}
	defaults := DefaultConfig()
	if p.cfg.EagerThreshold <= 0 {
		p.cfg.EagerThreshold = defaults.EagerThreshold
	}
	if p.cfg.FlushInterval <= 0 {
		p.cfg.FlushInterval = defaults.FlushInterval
	}
	if p.cfg.SendTimeout <= 0 {
		p.cfg.SendTimeout = defaults.SendTimeout
	}
	// A full queue is drained as one batch, so it must fit the store's limit.
	if p.cfg.Capacity > audit.MaxBatchSize {
		p.cfg.Capacity = audit.MaxBatchSize
	}
	p.queue = queue.New(p.cfg.Capacity)
	p.cfg.Capacity = p.queue.Capacity()
	return p
}

// Start launches the periodic flush. Calling it more than once is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)
}

func (p *Publisher) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.trigger()
		}
	}
}

// Stop cancels the periodic flush, waits for any delivery in flight, then
// makes one best-effort attempt to deliver what remains. Entries that fail in
// that last attempt are not requeued; they are counted and reported.
func (p *Publisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	if started {
		p.cancel()
		<-p.done
	}

	waited := make(chan struct{})
	go func() {
		p.flushes.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return fmt.Errorf("wait for audit flush: %w", ctx.Err())
	}

	return p.finalFlush(ctx)
}

// Flush drains the queue and delivers it now. It returns ErrFlushInFlight
// without touching the queue if another delivery is running.
func (p *Publisher) Flush(ctx context.Context) error {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.metrics.incFlush(resultSkipped)
		return ErrFlushInFlight
	}
	defer p.inFlight.Store(false)
	return p.deliver(ctx)
}

// Pending returns the number of queued entries.
func (p *Publisher) Pending() int {
	return p.queue.Len()
}

// Degraded reports whether recent deliveries have kept failing.
func (p *Publisher) Degraded() bool {
	return p.breaker.IsOpen()
}

// Dropped returns how many entries were evicted by the capacity bound.
func (p *Publisher) Dropped() int64 {
	return p.queue.Dropped()
}

// enqueue adds entry and fires an eager flush at the threshold.
func (p *Publisher) enqueue(ctx context.Context, entry audit.PendingEntry) {
	n, evicted := p.queue.Enqueue(entry)
	p.metrics.incEnqueued()
	p.metrics.setDepth(n)
	if evicted > 0 {
		p.metrics.addDropped(evicted)
		p.logger.WarnContext(ctx, "audit queue full, dropped oldest entry",
			"capacity", p.cfg.Capacity,
			"action", entry.Action,
		)
	}
	if n >= p.cfg.EagerThreshold {
		p.trigger()
	}
}

// trigger starts an asynchronous delivery unless one is already running or the
// publisher is stopping. Ignored triggers are not queued.
func (p *Publisher) trigger() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		p.metrics.incFlush(resultSkipped)
		return
	}

	p.flushes.Add(1)
	go func() {
		defer p.flushes.Done()
		defer p.inFlight.Store(false)
		_ = p.deliver(context.Background())
	}()
}

// deliver must be called with the in-flight guard held.
func (p *Publisher) deliver(ctx context.Context) error {
	batch := p.queue.DrainAll()
	if len(batch) == 0 {
		return nil
	}
	p.metrics.setDepth(p.queue.Len())

	if err := p.send(ctx, batch); err != nil {
		if rejected(err) {
			p.discardRejected(ctx, batch, err)
			return fmt.Errorf("deliver audit batch: %w", err)
		}
		evicted := p.queue.Requeue(batch)
		p.metrics.incFlush(resultFailure)
		p.metrics.addDropped(evicted)
		p.metrics.setDepth(p.queue.Len())
		p.logger.WarnContext(ctx, "audit batch delivery failed, requeued",
			"batch_size", len(batch),
			"evicted", evicted,
			"error", err,
		)
		return fmt.Errorf("deliver audit batch: %w", err)
	}

	p.metrics.incFlush(resultSuccess)
	return nil
}

func (p *Publisher) send(ctx context.Context, batch []audit.PendingEntry) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
	defer cancel()

	start := time.Now()
	err := p.transmitter.SendBatch(ctx, batch)
	if err != nil && !rejected(err) {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.metrics.setDegraded(true)
			p.logger.ErrorContext(ctx, "audit store unreachable, holding entries locally",
				"pending", p.queue.Len()+len(batch),
				"error", err,
			)
		}
		return err
	}

	if err == nil {
		p.metrics.observeBatch(len(batch), time.Since(start).Seconds())
	}
	// A rejection still proves the store is reachable.
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.metrics.setDegraded(false)
		p.logger.InfoContext(ctx, "audit store reachable again")
	}
	return err
}

// rejected reports whether the store refused the batch as malformed. Sending
// it again would fail the same way.
func rejected(err error) bool {
	return errors.Is(err, sentinel.ErrInvalidInput)
}

func (p *Publisher) discardRejected(ctx context.Context, batch []audit.PendingEntry, err error) {
	p.metrics.incFlush(resultRejected)
	p.metrics.addRejected(len(batch))
	p.metrics.setDepth(p.queue.Len())
	p.logger.ErrorContext(ctx, "audit batch rejected by store, discarded",
		"batch_size", len(batch),
		"error", err,
	)
}

// finalFlush waits for the guard, then delivers once without requeue.
func (p *Publisher) finalFlush(ctx context.Context) error {
	for !p.inFlight.CompareAndSwap(false, true) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("final audit flush: %w", ctx.Err())
		case <-time.After(finalFlushPoll):
		}
	}
	defer p.inFlight.Store(false)

	batch := p.queue.DrainAll()
	p.metrics.setDepth(0)
	if len(batch) == 0 {
		return nil
	}

	if err := p.send(ctx, batch); err != nil {
		p.metrics.incFlush(resultFailure)
		p.metrics.addFinalFlushLost(len(batch))
		p.logger.ErrorContext(ctx, "final audit flush failed, entries lost",
			"batch_size", len(batch),
			"error", err,
		)
		return fmt.Errorf("final audit flush: %w", err)
	}

	p.metrics.incFlush(resultSuccess)
	p.logger.InfoContext(ctx, "final audit flush delivered", "batch_size", len(batch))
	return nil
}
