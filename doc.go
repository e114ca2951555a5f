// Package protogate bridges a publish/subscribe message bus and a synchronous
// HTTP API.
//
// HTTP clients POST to /api/v1/request. The gateway turns the body into a bus
// request addressed to a remote account, publishes it and holds the HTTP call
// open until the matching response arrives on the gateway's unicast responses
// topic or the request times out. Responses are matched by correlation id.
//
// Independently, the gateway subscribes to the events topics of every
// configured (audience, source account) pair. Each event is authorized against
// the audience allow-list and its payload is POSTed, byte for byte, to the
// audience callback.
//
// # Transports
//
// The bus is any Watermill Publisher/Subscriber pair. Five transports are
// registered out of the box:
//   - channel: in-memory Go channels for tests and demos
//   - nats: core NATS with queue groups
//   - kafka: consumer groups, topics sanitized to the Kafka alphabet
//   - rabbitmq: durable AMQP queues per topic and group
//   - aws: SNS topics fanned out to SQS queues, with LocalStack support
//
// Every instance of a gateway account joins the same shared group
// (loadbalancer.{account}) so each response and event is handled by exactly
// one instance.
//
// # Configuration
//
// Config is read from a YAML file (App.yaml by default) with ${VAR}
// expansion and APP_* environment overrides. See cmd/protogate for the binary
// and examples/echo for an in-process round trip.
//
// ServiceDependencies lets callers bring their own TransportFactory, token
// Verifier or Prometheus registerer.
package protogate
