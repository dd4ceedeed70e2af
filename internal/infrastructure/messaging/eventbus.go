// Package messaging carries domain events from the progression service to
// in-process subscribers such as the unlock view cache and the audit log.
package messaging

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic is returned when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")
)

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps every handler registered after it is added.
type Middleware func(shared.EventHandler) shared.EventHandler

// RecoveryMiddleware turns handler panics into ErrHandlerPanic.
func RecoveryMiddleware() Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				}
			}()
			return next(event)
		}
	}
}

// TimingMiddleware logs slow handlers at Warn.
func TimingMiddleware(log *logger.Logger, slow time.Duration) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)
			if d := time.Since(start); d > slow {
				log.Warn("slow event handler",
					logger.String("event_type", string(event.EventType())),
					logger.Duration("duration", d),
				)
			}
			return err
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers on a bounded worker pool instead of the
	// publishing goroutine.
	AsyncMode bool

	// WorkerPoolSize is the number of concurrent async handlers.
	WorkerPoolSize int

	Logger *logger.Logger
}

// DefaultInMemoryEventBusConfig returns synchronous delivery, so cache
// invalidation has happened by the time a mutation returns.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{WorkerPoolSize: 10}
}

// InMemoryEventBus implements shared.EventBus within one process.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	middleware  []Middleware
	closed      bool

	asyncMode  bool
	workerPool chan struct{}
	closeCh    chan struct{}
	wg         sync.WaitGroup

	log     *logger.Logger
	metrics EventBusMetrics
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(cfg InMemoryEventBusConfig) *InMemoryEventBus {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 10
	}
	return &InMemoryEventBus{
		handlers:   make(map[shared.EventType][]shared.EventHandler),
		asyncMode:  cfg.AsyncMode,
		workerPool: make(chan struct{}, cfg.WorkerPoolSize),
		closeCh:    make(chan struct{}),
		log:        cfg.Logger.With(logger.Component("event_bus")),
	}
}

// Use adds middleware applied to handlers subscribed afterwards.
func (b *InMemoryEventBus) Use(mw ...Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw...)
}

func (b *InMemoryEventBus) wrap(h shared.EventHandler) shared.EventHandler {
	for i := len(b.middleware) - 1; i >= 0; i-- {
		h = b.middleware[i](h)
	}
	return h
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[eventType] = append(b.handlers[eventType], b.wrap(handler))
	return nil
}

// SubscribeAll registers a handler for all events.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.allHandlers = append(b.allHandlers, b.wrap(handler))
	return nil
}

// Publish delivers event to its type's handlers, then to global handlers.
// Handler errors are logged, never returned to the publisher.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	handlers := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	if b.asyncMode {
		// Counted under the lock so Close cannot miss them.
		b.wg.Add(len(handlers))
	}
	b.mu.RUnlock()

	b.metrics.published.Add(1)
	for _, h := range handlers {
		if b.asyncMode {
			b.executeAsync(event, h)
			continue
		}
		b.execute(event, h)
	}
	return nil
}

func (b *InMemoryEventBus) execute(event shared.Event, h shared.EventHandler) {
	if err := h(event); err != nil {
		b.metrics.failures.Add(1)
		b.log.Error("event handler failed",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
		return
	}
	b.metrics.successes.Add(1)
}

func (b *InMemoryEventBus) executeAsync(event shared.Event, h shared.EventHandler) {
	go func() {
		defer b.wg.Done()
		select {
		case b.workerPool <- struct{}{}:
			defer func() { <-b.workerPool }()
		case <-b.closeCh:
			return
		}
		b.execute(event, h)
	}()
}

// Close stops accepting events and waits for in-flight async handlers.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	close(b.closeCh)
	b.log.Info("event bus closed",
		logger.Int64("published", b.metrics.published.Load()),
		logger.Int64("handler_failures", b.metrics.failures.Load()),
	)
	return nil
}

// Metrics returns a snapshot of the delivery counters.
func (b *InMemoryEventBus) Metrics() EventBusMetricsSnapshot {
	return b.metrics.snapshot()
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics counts deliveries.
type EventBusMetrics struct {
	published atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
}

// EventBusMetricsSnapshot is a point-in-time snapshot of metrics.
type EventBusMetricsSnapshot struct {
	Published       int64
	HandlerSuccess  int64
	HandlerFailures int64
}

func (m *EventBusMetrics) snapshot() EventBusMetricsSnapshot {
	return EventBusMetricsSnapshot{
		Published:       m.published.Load(),
		HandlerSuccess:  m.successes.Load(),
		HandlerFailures: m.failures.Load(),
	}
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
