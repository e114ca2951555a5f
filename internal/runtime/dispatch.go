package runtime

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/protogate/internal/runtime/correlation"
	"github.com/drblury/protogate/internal/runtime/envelope"
	"github.com/drblury/protogate/internal/runtime/events"
	"github.com/drblury/protogate/internal/runtime/inbox"
	loggingpkg "github.com/drblury/protogate/internal/runtime/logging"
	"github.com/drblury/protogate/internal/runtime/metadata"
	"github.com/drblury/protogate/internal/runtime/webhook"
)

// Notification is one inbound bus message as handed to the dispatcher. UUID
// is the bus message id and Metadata the delivery headers.
type Notification struct {
	Topic    string
	Payload  []byte
	UUID     string
	Metadata metadata.Metadata
}

// WebhookQueue accepts authorized events for delivery.
type WebhookQueue interface {
	Enqueue(msg webhook.Message) error
}

// Dispatcher drains the inbox one notification at a time, resolving responses
// and forwarding authorized events.
type Dispatcher struct {
	inbox   *inbox.Queue[Notification]
	store   *correlation.Store
	router  *events.Router
	hooks   WebhookQueue
	logger  loggingpkg.ServiceLogger
	metrics *GatewayMetrics
}

// NewDispatcher returns a Dispatcher with an empty inbox.
func NewDispatcher(store *correlation.Store, router *events.Router, hooks WebhookQueue, logger loggingpkg.ServiceLogger, metrics *GatewayMetrics) *Dispatcher {
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	return &Dispatcher{
		inbox:   inbox.New[Notification](),
		store:   store,
		router:  router,
		hooks:   hooks,
		logger:  logger,
		metrics: metrics,
	}
}

// QueueDepth returns the number of notifications waiting to be dispatched.
func (d *Dispatcher) QueueDepth() int {
	return d.inbox.Len()
}

// Forwarder returns the router handler feeding messages received on topic
// into the inbox. Pushing never blocks, so returning nil acks every message
// with the broker straight away.
func (d *Dispatcher) Forwarder(topic string) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		n := Notification{
			Topic:    topic,
			Payload:  append([]byte(nil), msg.Payload...),
			UUID:     msg.UUID,
			Metadata: metadata.FromWatermill(msg.Metadata),
		}
		if err := d.inbox.Push(n); err != nil {
			d.logger.Error("Dropping inbound message", err, loggingpkg.LogFields{
				"topic": n.Topic,
				"uuid":  n.UUID,
			})
		}
		return nil
	}
}

// Run dispatches notifications in arrival order until ctx is cancelled or
// Close is called.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		n, err := d.inbox.Pop(ctx)
		if err != nil {
			if errors.Is(err, inbox.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		d.Handle(ctx, n)
	}
}

// Close stops accepting notifications. Run returns once the inbox is drained.
func (d *Dispatcher) Close() {
	d.inbox.Close()
}

// Handle processes one notification. Failures are logged and the
// notification dropped.
func (d *Dispatcher) Handle(ctx context.Context, n Notification) {
	_, span := otel.Tracer(tracerName).Start(ctx, "Dispatch", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("message.topic", n.Topic),
		attribute.String("message.uuid", n.UUID),
	)

	log := d.logger.With(loggingpkg.LogFields{"topic": n.Topic, "uuid": n.UUID})
	log.Info("Incoming message", loggingpkg.LogFields{"metadata": map[string]string(n.Metadata)})
	log.Debug("Incoming message payload", loggingpkg.LogFields{"payload": string(n.Payload)})

	in, err := envelope.Decode(n.Payload)
	if err != nil {
		span.RecordError(err)
		d.metrics.ObserveDispatch(envelope.KindUnknown.String(), DispatchMalformed)
		log.Error("Error processing a message", err, loggingpkg.LogFields{"payload": string(n.Payload)})
		return
	}
	span.SetAttributes(attribute.String("message.kind", in.Kind.String()))

	switch in.Kind {
	case envelope.KindResponse:
		if d.store.Resolve(in.CorrelationID, in) {
			d.metrics.ObserveDispatch(in.Kind.String(), DispatchResolved)
			return
		}
		d.metrics.ObserveDispatch(in.Kind.String(), DispatchUnmatched)
		log.Debug("Unmatched response", loggingpkg.LogFields{"correlation_id": in.CorrelationID})

	case envelope.KindEvent:
		source := in.Sender.AccountID()
		out, err := d.router.Handle(n.Topic, in.Payload, source)
		if err == nil {
			err = d.hooks.Enqueue(out)
		}
		if err != nil {
			span.RecordError(err)
			d.metrics.ObserveDispatch(in.Kind.String(), DispatchRejected)
			log.Error("Error processing a message", err, loggingpkg.LogFields{
				"payload": string(n.Payload),
				"source":  source.String(),
			})
			return
		}
		d.metrics.ObserveDispatch(in.Kind.String(), DispatchForwarded)

	default:
		d.metrics.ObserveDispatch(in.Kind.String(), DispatchUnsupported)
		log.Error("Error processing a message", errUnsupported, loggingpkg.LogFields{
			"payload": string(n.Payload),
			"type":    in.Properties.Type,
		})
	}
}

var errUnsupported = errors.New("unsupported message type")
