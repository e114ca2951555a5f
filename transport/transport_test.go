package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransport_Close(t *testing.T) {
	pub := &mockPublisher{}
	tr := Transport{Publisher: pub, Subscriber: &mockSubscriber{}}
	assert.NoError(t, tr.Close())
	assert.True(t, pub.closed)
}

func TestTransport_CloseReportsSubscriberErrorButClosesPublisher(t *testing.T) {
	pub := &mockPublisher{}
	tr := Transport{Publisher: pub, Subscriber: &mockSubscriber{closeErr: errors.New("sub")}}
	assert.EqualError(t, tr.Close(), "sub")
	assert.True(t, pub.closed)
}

func TestTransport_CloseEmpty(t *testing.T) {
	assert.NoError(t, Transport{}.Close())
}

type testProvider struct{}

func (testProvider) Capabilities() Capabilities {
	return Capabilities{Name: "test"}
}

func TestInterfaces(t *testing.T) {
	var _ Config = (*mockConfig)(nil)
	var _ CapabilitiesProvider = testProvider{}

	cfg := &mockConfig{busSystem: "test", sharedGroup: "loadbalancer.gw.example.org"}
	assert.Equal(t, "test", cfg.GetBusSystem())
	assert.Equal(t, "loadbalancer.gw.example.org", cfg.GetSharedGroup())
}
