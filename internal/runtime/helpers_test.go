package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/protogate/internal/runtime/config"
	"github.com/drblury/protogate/internal/runtime/identity"
	loggingpkg "github.com/drblury/protogate/internal/runtime/logging"
)

type testPublisher struct {
	mu        sync.Mutex
	published []string
	messages  []*message.Message
	err       error
	onPublish func(topic string, msg *message.Message)
}

func (p *testPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return p.err
	}
	p.published = append(p.published, topic)
	p.messages = append(p.messages, messages...)
	hook := p.onPublish
	p.mu.Unlock()

	if hook != nil {
		for _, msg := range messages {
			hook(topic, msg)
		}
	}
	return nil
}

func (p *testPublisher) Close() error { return nil }

func (p *testPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]string, len(p.published))
	copy(clone, p.published)
	return clone
}

func (p *testPublisher) Messages() []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]*message.Message, len(p.messages))
	copy(clone, p.messages)
	return clone
}

type testSubscriber struct {
	err error
}

func (s *testSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan *message.Message)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (s *testSubscriber) Close() error { return nil }

func testLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NopLogger()
}

func testConfig() *configpkg.Config {
	cfg := configpkg.Default()
	cfg.ID = "gateway.svc.example.org"
	cfg.AgentLabel = "alpha"
	cfg.Bus.System = configpkg.BusChannel
	cfg.HTTP.ListenerAddress = "127.0.0.1:0"
	cfg.HTTPClient.Timeout = time.Second
	cfg.Metrics.Enabled = false
	return cfg
}

func mustAccount(t *testing.T, s string) identity.AccountID {
	t.Helper()
	id, err := identity.ParseAccountID(s)
	require.NoError(t, err)
	return id
}

func mustAgent(t *testing.T, s string) identity.AgentID {
	t.Helper()
	id, err := identity.ParseAgentID(s)
	require.NoError(t, err)
	return id
}
