// Package kafka provides a Kafka bus transport. The shared group becomes the
// Kafka consumer group; topic names are rewritten to Kafka's legal alphabet.
package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/protogate/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "kafka"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return kafka.NewSubscriber(cfg, logger)
}

// TopicName maps a bus topic onto Kafka's [a-zA-Z0-9._-] alphabet.
var TopicName = transport.ReplaceDisallowed(func(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r == '.' || r == '_' || r == '-'
}, '_')

func init() {
	transport.Register(TransportName, Build, transport.KafkaCapabilities)
}

// publisherConfig waits for every in-sync replica so an acknowledged request
// publish is not lost on leader failover.
func publisherConfig(clientID string) *sarama.Config {
	conf := kafka.DefaultSaramaSyncPublisherConfig()
	conf.Producer.RequiredAcks = sarama.WaitForAll
	if clientID != "" {
		conf.ClientID = TopicName(clientID)
	}
	return conf
}

// subscriberConfig starts a new consumer group at the newest offset. Requests
// and responses published before the gateway joined are already stale.
func subscriberConfig(clientID string) *sarama.Config {
	conf := kafka.DefaultSaramaSubscriberConfig()
	conf.Consumer.Offsets.Initial = sarama.OffsetNewest
	if clientID != "" {
		conf.ClientID = TopicName(clientID)
	}
	return conf
}

// Build creates a Kafka transport. Both sides are traced with OpenTelemetry.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	brokers := cfg.GetKafkaBrokers()
	group := cfg.GetSharedGroup()

	publisher, err := PublisherFactory(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: publisherConfig(group),
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			ConsumerGroup:         group,
			OverwriteSaramaConfig: subscriberConfig(group),
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.WithTopicMapper(transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, TopicName), nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.KafkaCapabilities
}
