package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/golearn/learning-hub/config"
	"github.com/golearn/learning-hub/internal/domain/shared"
	"github.com/golearn/learning-hub/pkg/circuitbreaker"
	"github.com/golearn/learning-hub/pkg/logger"
	"github.com/golearn/learning-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RABBITMQ FORWARDER
// Republishes committed domain events to a topic exchange. The routing key
// is the event type, e.g. "reward.achievement_unlocked".
// ══════════════════════════════════════════════════════════════════════════════

// DefaultExchange is the topic exchange events are forwarded to.
const DefaultExchange = "learning-events"

// Channel is the subset of *amqp.Channel used by the forwarder.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitForwarder forwards events from the in-process bus to RabbitMQ.
type RabbitForwarder struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  Channel
	exchange string
	features *config.FeatureFlags
	timeout  time.Duration
	breaker  *circuitbreaker.CircuitBreaker
	logger   *logger.Logger
	newID    func() string
}

// RabbitForwarderConfig contains configuration for the forwarder.
type RabbitForwarderConfig struct {
	URL      string
	Exchange string

	// PublishTimeout bounds one publish call.
	PublishTimeout time.Duration

	Features *config.FeatureFlags
	Logger   *logger.Logger
}

// DialRabbitForwarder connects to the broker and declares the exchange.
// The dial is retried with backoff so the service survives a broker that
// starts later than it does.
func DialRabbitForwarder(ctx context.Context, cfg RabbitForwarderConfig) (*RabbitForwarder, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is empty")
	}
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}

	var conn *amqp.Connection
	err := retry.BrokerRetrier().Do(ctx, func(ctx context.Context) error {
		c, err := amqp.Dial(cfg.URL)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	f := NewRabbitForwarder(ch, cfg)
	f.conn = conn
	return f, nil
}

// NewRabbitForwarder wraps an already opened channel.
func NewRabbitForwarder(ch Channel, cfg RabbitForwarderConfig) *RabbitForwarder {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	log := cfg.Logger.Named("rabbit_forwarder")
	return &RabbitForwarder{
		channel:  ch,
		exchange: cfg.Exchange,
		features: cfg.Features,
		timeout:  cfg.PublishTimeout,
		breaker: circuitbreaker.BrokerBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("broker circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
		logger: log,
		newID:  uuid.NewString,
	}
}

// Attach subscribes the forwarder to every event of the bus.
func (f *RabbitForwarder) Attach(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(f.Handle)
}

// Handle publishes one event. Implements shared.EventHandler.
func (f *RabbitForwarder) Handle(event shared.Event) error {
	if !f.features.Enabled(config.FeatureEventForwarder, event.AggregateID()) {
		return nil
	}

	envelope, err := shared.NewEventEnvelope(f.newID(), event)
	if err != nil {
		return fmt.Errorf("build envelope: %w", err)
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	// while the broker is down events are dropped without waiting for the timeout
	err = f.breaker.Execute(ctx, func(ctx context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()

		// amqp channels are not safe for concurrent publishing
		return f.channel.PublishWithContext(
			ctx,
			f.exchange,            // exchange
			string(envelope.Type), // routing key
			false,                 // mandatory
			false,                 // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    envelope.ID,
				Timestamp:    envelope.Timestamp,
				Type:         string(envelope.Type),
				Body:         body,
			},
		)
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", envelope.Type, err)
	}

	f.logger.Debug("event forwarded",
		logger.EventType(string(envelope.Type)),
		logger.String("message_id", envelope.ID),
	)
	return nil
}

// Close closes the channel and the connection.
func (f *RabbitForwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	if f.channel != nil {
		errs = append(errs, f.channel.Close())
	}
	if f.conn != nil {
		errs = append(errs, f.conn.Close())
	}
	return errors.Join(errs...)
}
