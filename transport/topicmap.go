package transport

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
)

// TopicMapper rewrites a bus topic into a name the broker accepts. Mappers
// must be deterministic so publishers and subscribers agree on the name.
type TopicMapper func(topic string) string

// ReplaceDisallowed returns a mapper that replaces every rune not accepted
// by allowed with replacement.
func ReplaceDisallowed(allowed func(r rune) bool, replacement rune) TopicMapper {
	return func(topic string) string {
		return strings.Map(func(r rune) rune {
			if allowed(r) {
				return r
			}
			return replacement
		}, topic)
	}
}

// WithTopicMapper wraps t so that every publish and subscribe goes through
// mapper. Messages keep their payload and metadata; only the broker-side
// name changes.
func WithTopicMapper(t Transport, mapper TopicMapper) Transport {
	if mapper == nil {
		return t
	}
	return Transport{
		Publisher:  mappedPublisher{Publisher: t.Publisher, mapper: mapper},
		Subscriber: mappedSubscriber{Subscriber: t.Subscriber, mapper: mapper},
	}
}

type mappedPublisher struct {
	message.Publisher
	mapper TopicMapper
}

func (p mappedPublisher) Publish(topic string, messages ...*message.Message) error {
	return p.Publisher.Publish(p.mapper(topic), messages...)
}

type mappedSubscriber struct {
	message.Subscriber
	mapper TopicMapper
}

func (s mappedSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.Subscriber.Subscribe(ctx, s.mapper(topic))
}
