package transport

// Capabilities describes the features supported by a transport backend.
type Capabilities struct {
	// SupportsSharedGroups indicates that subscribers sharing a group name
	// split the deliveries of a topic between them. Without it every gateway
	// instance sees every response, so only a single instance may run.
	SupportsSharedGroups bool

	// SupportsOrdering indicates the transport guarantees message ordering.
	SupportsOrdering bool

	// SupportsAck indicates the transport supports explicit message acknowledgment.
	SupportsAck bool

	// SupportsNack indicates the transport supports negative acknowledgment (redelivery).
	SupportsNack bool

	// MapsTopics indicates bus topic names are rewritten to fit the broker's
	// naming rules (see TopicMapper).
	MapsTopics bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64

	// Name is the human-readable name of the transport.
	Name string
}

// SupportsReliableDelivery returns true if the transport supports at-least-once
// delivery semantics (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// SupportsHorizontalScaling reports whether several gateway instances can
// share the bus.
func (c Capabilities) SupportsHorizontalScaling() bool {
	return c.SupportsSharedGroups
}

// Predefined capability sets for the built-in transports.
var (
	// ChannelCapabilities for in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// KafkaCapabilities for Apache Kafka transport.
	KafkaCapabilities = Capabilities{
		Name:                 "kafka",
		SupportsSharedGroups: true,
		SupportsOrdering:     true,
		SupportsAck:          true,
		MapsTopics:           true,
		MaxMessageSize:       1048576, // Default 1MB
	}

	// RabbitMQCapabilities for RabbitMQ/AMQP transport.
	RabbitMQCapabilities = Capabilities{
		Name:                 "rabbitmq",
		SupportsSharedGroups: true,
		SupportsOrdering:     true,
		SupportsAck:          true,
		SupportsNack:         true,
	}

	// NATSCapabilities for NATS Core transport.
	NATSCapabilities = Capabilities{
		Name:                 "nats",
		SupportsSharedGroups: true,
		MaxMessageSize:       1048576, // Default 1MB
	}

	// AWSCapabilities for AWS SNS/SQS transport.
	AWSCapabilities = Capabilities{
		Name:                 "aws",
		SupportsSharedGroups: true,
		SupportsAck:          true,
		SupportsNack:         true,
		MapsTopics:           true,
		MaxMessageSize:       262144, // 256KB
	}
)

// GetCapabilities returns the capabilities for a transport by name.
// Returns a zero Capabilities struct if the transport is unknown.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
