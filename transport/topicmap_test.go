package transport

import (
	"context"
	"testing"
	"unicode"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPubSub struct {
	published  []string
	subscribed []string
}

func (r *recordingPubSub) Publish(topic string, _ ...*message.Message) error {
	r.published = append(r.published, topic)
	return nil
}

func (r *recordingPubSub) Subscribe(_ context.Context, topic string) (<-chan *message.Message, error) {
	r.subscribed = append(r.subscribed, topic)
	return make(chan *message.Message), nil
}

func (r *recordingPubSub) Close() error { return nil }

func TestReplaceDisallowed(t *testing.T) {
	mapper := ReplaceDisallowed(func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.'
	}, '_')
	assert.Equal(t, "agents_alpha.gw.example.org_api_v1_responses", mapper("agents/alpha.gw.example.org/api/v1/responses"))
}

func TestWithTopicMapper(t *testing.T) {
	rec := &recordingPubSub{}
	mapped := WithTopicMapper(Transport{Publisher: rec, Subscriber: rec}, func(topic string) string {
		return "mapped-" + topic
	})

	require.NoError(t, mapped.Publisher.Publish("a/b", message.NewMessage("1", nil)))
	_, err := mapped.Subscriber.Subscribe(context.Background(), "c/d")
	require.NoError(t, err)

	assert.Equal(t, []string{"mapped-a/b"}, rec.published)
	assert.Equal(t, []string{"mapped-c/d"}, rec.subscribed)
	assert.NoError(t, mapped.Close())
}

func TestWithNilMapperIsIdentity(t *testing.T) {
	rec := &recordingPubSub{}
	tr := Transport{Publisher: rec, Subscriber: rec}
	assert.Equal(t, tr, WithTopicMapper(tr, nil))
}
