package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/protogate/internal/runtime/correlation"
	"github.com/drblury/protogate/internal/runtime/envelope"
	"github.com/drblury/protogate/internal/runtime/identity"
	"github.com/drblury/protogate/internal/runtime/ids"
	loggingpkg "github.com/drblury/protogate/internal/runtime/logging"
	"github.com/drblury/protogate/internal/runtime/metadata"
	"github.com/drblury/protogate/internal/runtime/topics"
)

const tracerName = "github.com/drblury/protogate"

// RequestBody is the JSON body of POST /api/v1/request.
type RequestBody struct {
	Me          identity.AgentID   `json:"me"`
	Destination identity.AccountID `json:"destination"`
	Payload     json.RawMessage    `json:"payload"`
	Method      string             `json:"method"`
}

// Requester turns HTTP calls into bus requests and waits for their response.
type Requester struct {
	agent   identity.AgentID
	gate    *PublishGate
	store   *correlation.Store
	timeout time.Duration
	logger  loggingpkg.ServiceLogger
}

// NewRequester returns a Requester publishing as agent. Responses are expected
// on the unicast responses topic of agent.
func NewRequester(agent identity.AgentID, gate *PublishGate, store *correlation.Store, timeout time.Duration, logger loggingpkg.ServiceLogger) *Requester {
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	return &Requester{
		agent:   agent,
		gate:    gate,
		store:   store,
		timeout: timeout,
		logger:  logger,
	}
}

// Request publishes body on behalf of caller and returns the payload of the
// matching response. Every failure is an *Error.
func (r *Requester) Request(ctx context.Context, caller identity.AccountID, body RequestBody) (json.RawMessage, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Request", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	if me := body.Me.AccountID(); me != caller {
		detail := fmt.Sprintf("account id = '%s' from the access token doesn't match the one in the payload = '%s'", caller, me)
		span.SetStatus(codes.Error, detail)
		return nil, NewValidationError(detail)
	}

	correlationID := ids.NewCorrelationID()
	span.SetAttributes(
		attribute.String("request.correlation_id", correlationID),
		attribute.String("request.method", body.Method),
		attribute.String("request.destination", body.Destination.String()),
	)

	data, err := envelope.Request{
		Method:        body.Method,
		Destination:   body.Destination,
		Payload:       body.Payload,
		ResponseTopic: topics.Responses(r.agent),
		CorrelationID: correlationID,
		Sender:        body.Me,
	}.Encode()
	if err != nil {
		span.RecordError(err)
		return nil, NewPublishError(err)
	}

	// The slot is registered before publishing so a fast response always
	// finds it.
	var slot <-chan envelope.Incoming
	err = r.gate.WithLock(ctx, func(pub message.Publisher) error {
		ch, err := r.store.Register(correlationID)
		if err != nil {
			return err
		}

		msg := message.NewMessage(ids.CreateULID(), data)
		msg.Metadata = metadata.ToWatermill(metadata.New(
			metadata.KeyCorrelationID, correlationID,
			metadata.KeyMethod, body.Method,
		))
		msg.SetContext(ctx)

		if err := pub.Publish(topics.Request(r.agent, body.Destination), msg); err != nil {
			r.store.Remove(correlationID)
			return err
		}
		slot = ch
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		r.logger.Error("Failed to publish request", err, loggingpkg.LogFields{
			"correlation_id": correlationID,
			"destination":    body.Destination.String(),
			"method":         body.Method,
		})
		return nil, NewPublishError(err)
	}

	r.logger.Debug("Request published", loggingpkg.LogFields{
		"correlation_id": correlationID,
		"destination":    body.Destination.String(),
		"method":         body.Method,
	})

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case resp := <-slot:
		return resp.Payload, nil
	case <-timer.C:
		err = context.DeadlineExceeded
	case <-ctx.Done():
		err = ctx.Err()
	}

	if !r.store.Remove(correlationID) {
		// Resolve already claimed the slot and is about to fill it.
		resp := <-slot
		return resp.Payload, nil
	}

	span.SetStatus(codes.Error, "timeout")
	r.logger.Info("Request timed out", loggingpkg.LogFields{
		"correlation_id": correlationID,
		"destination":    body.Destination.String(),
		"method":         body.Method,
		"timeout":        r.timeout.String(),
	})
	return nil, NewTimeoutError(err)
}
