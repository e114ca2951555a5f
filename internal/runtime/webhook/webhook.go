// Package webhook delivers authorized bus events to audience callbacks.
//
// Delivery goes through the watermill HTTP publisher: the callback URL is the
// topic and the event payload is the request body, unmodified.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/protogate/internal/runtime/ids"
	"github.com/drblury/protogate/internal/runtime/logging"
	"github.com/drblury/protogate/internal/runtime/metadata"
)

var (
	// ErrQueueFull is returned by Enqueue when the delivery buffer is full.
	ErrQueueFull = errors.New("webhook: delivery queue is full")
	// ErrClosed is returned by Enqueue after the deliverer stopped.
	ErrClosed = errors.New("webhook: deliverer is closed")
)

const (
	DefaultQueueSize = 1024
	DefaultTimeout   = 5 * time.Second
)

// Message is a single delivery task.
type Message struct {
	Payload     json.RawMessage
	Destination string
	Metadata    metadata.Metadata
}

// Config tunes the deliverer.
type Config struct {
	// Timeout bounds each POST. Zero means DefaultTimeout.
	Timeout time.Duration
	// QueueSize is the capacity of the hand-off buffer. Zero means DefaultQueueSize.
	QueueSize int
	// Workers is the number of concurrent senders. Zero means one.
	Workers int
}

// Observer receives the outcome of every delivery attempt.
type Observer func(destination string, err error)

// PublisherFactory allows overriding the HTTP publisher creation for testing.
var PublisherFactory = func(cfg http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(cfg, logger)
}

// Deliverer POSTs queued messages to their destination. Failed deliveries are
// logged and dropped.
type Deliverer struct {
	publisher message.Publisher
	logger    logging.ServiceLogger
	queue     chan Message
	workers   int
	observe   Observer

	mu     sync.RWMutex
	closed bool
}

// NewDeliverer builds a Deliverer backed by a watermill HTTP publisher.
func NewDeliverer(cfg Config, logger logging.ServiceLogger, observe Observer) (*Deliverer, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	publisher, err := PublisherFactory(http.PublisherConfig{
		MarshalMessageFunc: marshalWebhook,
		Client:             &nethttp.Client{Timeout: cfg.Timeout},
	}, logging.NewWatermillAdapter(logger))
	if err != nil {
		return nil, fmt.Errorf("webhook: creating http publisher: %w", err)
	}

	return &Deliverer{
		publisher: publisher,
		logger:    logger,
		queue:     make(chan Message, cfg.QueueSize),
		workers:   cfg.Workers,
		observe:   observe,
	}, nil
}

func marshalWebhook(url string, msg *message.Message) (*nethttp.Request, error) {
	req, err := http.DefaultMarshalMessageFunc(url, msg)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Enqueue hands msg over for delivery without blocking.
func (d *Deliverer) Enqueue(msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len returns the number of queued deliveries.
func (d *Deliverer) Len() int {
	return len(d.queue)
}

// Run sends queued messages until ctx is cancelled. Messages still queued at
// that point are dropped.
func (d *Deliverer) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	wg.Wait()

	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	if dropped := len(d.queue); dropped > 0 {
		d.logger.Info("Dropping undelivered webhooks on shutdown", logging.LogFields{"count": dropped})
	}
	return d.publisher.Close()
}

func (d *Deliverer) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			d.deliver(msg)
		}
	}
}

func (d *Deliverer) deliver(msg Message) {
	out := message.NewMessage(ids.CreateULID(), message.Payload(msg.Payload))
	out.Metadata = metadata.ToWatermill(msg.Metadata)

	err := d.publisher.Publish(msg.Destination, out)
	if d.observe != nil {
		d.observe(msg.Destination, err)
	}
	if err != nil {
		d.logger.Error("Webhook delivery failed", err, logging.LogFields{
			"destination": msg.Destination,
			"payload":     string(msg.Payload),
		})
		return
	}
	d.logger.Debug("Webhook delivered", logging.LogFields{"destination": msg.Destination})
}
