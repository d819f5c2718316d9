package eventpublisher

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/splitledger/internal/domain"
)

// ErrQueueFull is returned when the dispatcher cannot accept more events.
var ErrQueueFull = errors.New("event queue is full")

// Publisher defines the interface for publishing events to external systems.
type Publisher interface {
	Publish(ctx context.Context, event *domain.Event) error
}

// Dispatcher decouples event delivery from request handling. Publish only
// enqueues; a worker started with Start delivers events in order.
type Dispatcher struct {
	publisher     Publisher
	logger        zerolog.Logger
	queue         chan *domain.Event
	maxAttempts   uint64
	retryInterval time.Duration
	drainTimeout  time.Duration
}

// Config for Dispatcher.
type Config struct {
	Publisher     Publisher
	Logger        zerolog.Logger
	QueueSize     int           // Number of events buffered before Publish fails
	MaxAttempts   int           // Delivery attempts per event
	RetryInterval time.Duration // Pause between attempts
	DrainTimeout  time.Duration // Time allowed to flush the queue on shutdown
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 1024
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 5 * time.Second
	}

	return &Dispatcher{
		publisher:     cfg.Publisher,
		logger:        cfg.Logger,
		queue:         make(chan *domain.Event, cfg.QueueSize),
		maxAttempts:   uint64(cfg.MaxAttempts),
		retryInterval: cfg.RetryInterval,
		drainTimeout:  cfg.DrainTimeout,
	}
}

// Publish enqueues the event without blocking.
func (d *Dispatcher) Publish(ctx context.Context, event *domain.Event) error {
	select {
	case d.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the delivery worker until ctx is cancelled, then flushes what
// is still queued.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info().
		Int("queue_size", cap(d.queue)).
		Uint64("max_attempts", d.maxAttempts).
		Msg("event dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.drain()
			d.logger.Info().Msg("event dispatcher shutting down")
			return ctx.Err()
		case event := <-d.queue:
			d.deliver(ctx, event)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()

	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		default:
			return
		}
	}
}

// deliver publishes a single event, retrying failures. Events that still
// fail are logged and dropped.
func (d *Dispatcher) deliver(ctx context.Context, event *domain.Event) {
	d.logger.Debug().
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Str("aggregate_type", event.AggregateType).
		Str("aggregate_id", event.AggregateID).
		Msg("publishing event")

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(d.retryInterval), d.maxAttempts-1),
		ctx,
	)

	err := backoff.Retry(func() error {
		return d.publisher.Publish(ctx, event)
	}, b)
	if err != nil {
		d.logger.Error().
			Err(err).
			Str("event_id", event.ID).
			Str("event_type", event.EventType).
			Msg("failed to publish event")
		return
	}

	d.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Msg("event published")
}

// LogPublisher is a simple publisher that logs events.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event *domain.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	p.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Str("aggregate_type", event.AggregateType).
		Str("aggregate_id", event.AggregateID).
		RawJSON("payload", payload).
		Msg("event")

	return nil
}
