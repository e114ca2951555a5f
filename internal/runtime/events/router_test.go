package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/protogate/internal/runtime/identity"
	"github.com/drblury/protogate/internal/runtime/metadata"
)

var (
	sourceA = identity.AccountID{Label: "a", Audience: "svc.example.org"}
	sourceB = identity.AccountID{Label: "b", Audience: "svc.example.org"}
)

func TestExtractAudience(t *testing.T) {
	audience, err := ExtractAudience("a/b/audiences/ACME/events")
	require.NoError(t, err)
	assert.Equal(t, "ACME", audience)

	audience, err = ExtractAudience("apps/a.svc.example.org/api/v1/audiences/example.org/events")
	require.NoError(t, err)
	assert.Equal(t, "example.org", audience)

	for _, topic := range []string{
		"a/b/audiences",
		"a/b/audiences/events",
		"a/b/audience/ACME/events",
		"a/b/audiences/ACME/event",
		"events",
		"",
		"audiences/\xff/events",
	} {
		_, err := ExtractAudience(topic)
		require.Error(t, err, topic)
		assert.True(t, errors.Is(err, ErrTopicPattern), topic)
		assert.Contains(t, err.Error(), "audiences/AUDIENCE/events")
		assert.Contains(t, err.Error(), topic)
	}
}

func newTestRouter() *Router {
	return NewRouter(map[string]AudienceConfig{
		"ACME": {Callback: "http://cb", Sources: []identity.AccountID{sourceA}},
	})
}

func TestHandleForwardsAllowedSource(t *testing.T) {
	payload := json.RawMessage(`{"x": 1}`)
	msg, err := newTestRouter().Handle("a/b/audiences/ACME/events", payload, sourceA)
	require.NoError(t, err)
	assert.Equal(t, "http://cb", msg.Destination)
	assert.Equal(t, string(payload), string(msg.Payload))
	assert.Equal(t, "ACME", msg.Metadata[metadata.KeyAudience])
	assert.Equal(t, sourceA.String(), msg.Metadata[metadata.KeySourceAccount])
}

func TestHandleRejectsUnknownSource(t *testing.T) {
	_, err := newTestRouter().Handle("a/b/audiences/ACME/events", json.RawMessage(`1`), sourceB)
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.False(t, authErr.Unconfigured)
	assert.Contains(t, err.Error(), sourceB.String())
	assert.Contains(t, err.Error(), "ACME")
}

func TestHandleRejectsUnconfiguredAudience(t *testing.T) {
	_, err := newTestRouter().Handle("a/b/audiences/OTHER/events", json.RawMessage(`1`), sourceA)
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.True(t, authErr.Unconfigured)
	assert.EqualError(t, err, "events for audience OTHER not allowed")
}

func TestHandleRejectsBadTopic(t *testing.T) {
	_, err := newTestRouter().Handle("a/b/audiences", json.RawMessage(`1`), sourceA)
	assert.ErrorIs(t, err, ErrTopicPattern)
}

func TestRouterIsImmutableCopy(t *testing.T) {
	cfg := map[string]AudienceConfig{
		"ACME": {Callback: "http://cb", Sources: []identity.AccountID{sourceA}},
	}
	router := NewRouter(cfg)
	cfg["ACME"].Sources[0] = sourceB
	cfg["OTHER"] = AudienceConfig{Callback: "http://other", Sources: []identity.AccountID{sourceB}}

	_, err := router.Handle("x/audiences/ACME/events", json.RawMessage(`1`), sourceA)
	assert.NoError(t, err)
	_, err = router.Handle("x/audiences/OTHER/events", json.RawMessage(`1`), sourceB)
	assert.Error(t, err)
}

func TestSubscriptionsSorted(t *testing.T) {
	router := NewRouter(map[string]AudienceConfig{
		"zeta": {Callback: "http://z", Sources: []identity.AccountID{sourceB, sourceA}},
		"ACME": {Callback: "http://cb", Sources: []identity.AccountID{sourceA}},
	})
	subs := router.Subscriptions()
	require.Len(t, subs, 3)
	assert.Equal(t, "ACME", subs[0].Audience)
	assert.Equal(t, "apps/a.svc.example.org/api/v1/audiences/ACME/events", subs[0].Topic)
	assert.Equal(t, sourceA, subs[1].Source)
	assert.Equal(t, sourceB, subs[2].Source)
	assert.Equal(t, "zeta", subs[2].Audience)
}
