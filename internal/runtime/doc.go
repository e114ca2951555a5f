/*
Package runtime implements the gateway core for protogate.

# Architecture Overview

The runtime package bridges a Watermill bus and the HTTP request API. A single
publisher is shared by every HTTP worker, while inbound bus traffic is
serialized through one dispatch loop.

# Package Structure

## Core Service (service.go)

The Service struct is the central orchestrator that wires together:
  - Watermill router with one consumer handler per subscription
  - PublishGate around the bus publisher
  - Dispatcher, CorrelationStore and EventRouter
  - Webhook deliverer
  - HTTP server for the request API, health and metrics

## Publish Gate (publishgate.go)

PublishGate gives one HTTP worker at a time access to the bus publisher. A
holder that panics poisons the gate so later requests fail with 422 instead
of publishing through a broken handle.

## Request Gateway (request.go)

Requester checks the caller identity, registers a correlation slot, publishes
the bus request and waits for the response with a timeout. Timed out slots
are removed so late responses are dropped.

## Dispatch Loop (dispatch.go)

Router handlers copy every inbound message into an unbounded inbox and ack
it. Dispatcher.Run drains the inbox in arrival order: responses resolve their
correlation slot, authorized events are queued for webhook delivery and
everything else is logged and dropped.

## Bus Middleware (middleware.go)

Every router handler runs behind a trace-level receive log and the Watermill
panic recoverer.

## HTTP Surface (http.go, problem.go)

chi router with CORS, bearer token authentication and
application/problem+json errors.

## Metrics (metrics.go)

Prometheus collectors in the protogate namespace.

# Sub-packages

  - auth/: bearer JWT verification
  - config/: gateway configuration with validation
  - correlation/: correlation id to response slot store
  - envelope/: bus message envelope codec
  - errors/: sentinel errors and error types
  - events/: audience authorization and webhook routing
  - identity/: account and agent identities
  - ids/: ULID message ids and correlation ids
  - inbox/: unbounded FIFO between bus readers and the dispatcher
  - jsoncodec/: JSON marshaling utilities
  - logging/: logger interface and adapters
  - metadata/: message metadata utilities
  - topics/: bus topic names
  - transport/: transport factory over the modular registry
  - webhook/: webhook delivery queue

# Usage Example

	cfg, err := config.Load("App.yaml")
	if err != nil {
		return err
	}

	svc, err := runtime.TryNewService(ctx, cfg, logger, runtime.ServiceDependencies{})
	if err != nil {
		return err
	}

	return svc.Start(ctx)
*/
package runtime
