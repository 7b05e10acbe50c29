// Package messaging implements event delivery for the learning hub:
// an in-process bus for reactions inside one instance and a RabbitMQ
// forwarder that republishes domain events for other services.
package messaging

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/pkg/logger"
)

var (
	// ErrEventBusClosed is returned by Publish and Subscribe after Close.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panicked")
)

// Observer receives the outcome of every handler invocation.
type Observer interface {
	EventHandled(eventType string, err error)
}

// InMemoryEventBusConfig configures InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// Workers drain the delivery queue. Zero delivers synchronously on the
	// publishing goroutine.
	Workers int

	// QueueSize bounds pending deliveries. When the queue is full the
	// publisher runs the handler itself.
	QueueSize int

	Logger   *logger.Logger
	Observer Observer
}

// DefaultInMemoryEventBusConfig returns the asynchronous setup used by serve.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		Workers:   4,
		QueueSize: 256,
	}
}

type delivery struct {
	event   shared.Event
	handler shared.EventHandler
}

// InMemoryEventBus fans events out to the handlers subscribed in this
// process. Handler failures are logged and never reach the publisher, so a
// committed reward is never reported as failed because of a reaction to it.
type InMemoryEventBus struct {
	mu     sync.RWMutex
	typed  map[shared.EventType][]shared.EventHandler
	all    []shared.EventHandler
	closed bool

	queue chan delivery
	wg    sync.WaitGroup

	log      *logger.Logger
	observer Observer
}

// NewInMemoryEventBus starts cfg.Workers delivery goroutines.
func NewInMemoryEventBus(cfg InMemoryEventBusConfig) *InMemoryEventBus {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	b := &InMemoryEventBus{
		typed:    make(map[shared.EventType][]shared.EventHandler),
		log:      cfg.Logger.Named("eventbus"),
		observer: cfg.Observer,
	}

	if cfg.Workers > 0 {
		b.queue = make(chan delivery, max(cfg.QueueSize, cfg.Workers))
		b.wg.Add(cfg.Workers)
		for range cfg.Workers {
			go b.worker()
		}
	}
	return b
}

// Subscribe registers handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.subscribe(handler, func() {
		b.typed[eventType] = append(b.typed[eventType], handler)
	})
}

// SubscribeAll registers handler for every event type.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.subscribe(handler, func() {
		b.all = append(b.all, handler)
	})
}

func (b *InMemoryEventBus) subscribe(handler shared.EventHandler, add func()) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	add()
	return nil
}

// Publish hands event to every matching handler. Typed handlers run
// before catch-all ones.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	// The read lock is held across enqueueing so Close cannot close the
	// queue under a sender.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrEventBusClosed
	}

	for _, h := range b.typed[event.EventType()] {
		b.dispatch(delivery{event, h})
	}
	for _, h := range b.all {
		b.dispatch(delivery{event, h})
	}
	return nil
}

func (b *InMemoryEventBus) dispatch(d delivery) {
	if b.queue != nil {
		select {
		case b.queue <- d:
			return
		default:
			b.log.Warn("event queue full, delivering inline",
				logger.EventType(string(d.event.EventType())),
			)
		}
	}
	b.deliver(d)
}

func (b *InMemoryEventBus) worker() {
	defer b.wg.Done()
	for d := range b.queue {
		b.deliver(d)
	}
}

func (b *InMemoryEventBus) deliver(d delivery) {
	err := invoke(d)
	if err != nil {
		b.log.Error("event handler failed",
			logger.EventType(string(d.event.EventType())),
			logger.String("aggregate_id", d.event.AggregateID()),
			logger.Err(err),
		)
	}
	if b.observer != nil {
		b.observer.EventHandled(string(d.event.EventType()), err)
	}
}

func invoke(d delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return d.handler(d.event)
}

// Close rejects new events, then waits until queued deliveries finish.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	if b.queue != nil {
		close(b.queue)
	}
	b.mu.Unlock()

	b.wg.Wait()
	b.log.Info("event bus closed")
	return nil
}
