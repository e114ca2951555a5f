package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/protogate/internal/runtime/metadata"
)

type received struct {
	body        string
	contentType string
}

func TestDelivererPostsPayloadUnmodified(t *testing.T) {
	got := make(chan received, 1)
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{body: string(body), contentType: r.Header.Get("Content-Type")}
		w.WriteHeader(nethttp.StatusNoContent)
	}))
	defer srv.Close()

	var (
		mu       sync.Mutex
		outcomes []error
	)
	d, err := NewDeliverer(Config{Timeout: time.Second}, nil, func(_ string, err error) {
		mu.Lock()
		outcomes = append(outcomes, err)
		mu.Unlock()
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	payload := json.RawMessage(`{ "spaced" : [1, 2] }`)
	require.NoError(t, d.Enqueue(Message{
		Payload:     payload,
		Destination: srv.URL + "/hook",
		Metadata:    metadata.New(metadata.KeyAudience, "ACME"),
	}))

	select {
	case r := <-got:
		assert.Equal(t, string(payload), r.body)
		assert.Equal(t, "application/json", r.contentType)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was not delivered")
	}

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, outcomes, 1)
	assert.NoError(t, outcomes[0])
	assert.ErrorIs(t, d.Enqueue(Message{}), ErrClosed)
}

type stubPublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (s *stubPublisher) Publish(topic string, _ ...*message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topic)
	return s.err
}

func (s *stubPublisher) Close() error { return nil }

func withStubPublisher(t *testing.T, stub *stubPublisher) {
	t.Helper()
	orig := PublisherFactory
	PublisherFactory = func(http.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
		return stub, nil
	}
	t.Cleanup(func() { PublisherFactory = orig })
}

func TestEnqueueReportsFullQueue(t *testing.T) {
	withStubPublisher(t, &stubPublisher{})

	d, err := NewDeliverer(Config{QueueSize: 1}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, d.Enqueue(Message{Destination: "http://a"}))
	assert.ErrorIs(t, d.Enqueue(Message{Destination: "http://b"}), ErrQueueFull)
	assert.Equal(t, 1, d.Len())
}

func TestFailedDeliveryIsObservedAndDropped(t *testing.T) {
	stub := &stubPublisher{err: errors.New("connection refused")}
	withStubPublisher(t, stub)

	failures := make(chan error, 2)
	d, err := NewDeliverer(Config{}, nil, func(_ string, err error) { failures <- err })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	require.NoError(t, d.Enqueue(Message{Payload: json.RawMessage(`1`), Destination: "http://cb"}))

	select {
	case err := <-failures:
		assert.EqualError(t, err, "connection refused")
	case <-time.After(5 * time.Second):
		t.Fatal("delivery outcome not observed")
	}

	stub.mu.Lock()
	assert.Equal(t, []string{"http://cb"}, stub.topics)
	stub.mu.Unlock()
}

func TestPublisherFactoryError(t *testing.T) {
	orig := PublisherFactory
	PublisherFactory = func(http.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
		return nil, errors.New("boom")
	}
	t.Cleanup(func() { PublisherFactory = orig })

	_, err := NewDeliverer(Config{}, nil, nil)
	assert.ErrorContains(t, err, "boom")
}
