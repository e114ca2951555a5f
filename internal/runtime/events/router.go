// Package events authorizes bus events and turns them into webhook deliveries.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/drblury/protogate/internal/runtime/identity"
	"github.com/drblury/protogate/internal/runtime/metadata"
	"github.com/drblury/protogate/internal/runtime/topics"
	"github.com/drblury/protogate/internal/runtime/webhook"
)

const audiencePattern = "audiences/AUDIENCE/events"

// ErrTopicPattern is wrapped by ExtractAudience failures.
var ErrTopicPattern = errors.New("topic does not match the pattern '" + audiencePattern + "'")

// AuthorizationError rejects an event that is not allowed to be forwarded.
type AuthorizationError struct {
	Audience string
	Source   identity.AccountID
	// Unconfigured is set when the audience has no routing entry at all.
	Unconfigured bool
}

func (e *AuthorizationError) Error() string {
	if e.Unconfigured {
		return fmt.Sprintf("events for audience %s not allowed", e.Audience)
	}
	return fmt.Sprintf("events from %s for audience %s not allowed", e.Source, e.Audience)
}

// AudienceConfig routes the events of one audience.
type AudienceConfig struct {
	Callback string
	Sources  []identity.AccountID
}

type route struct {
	callback string
	sources  map[identity.AccountID]struct{}
}

// Subscription is one (audience, source) pair the gateway listens to.
type Subscription struct {
	Audience string
	Source   identity.AccountID
	Topic    string
}

// Router holds an immutable copy of the audience routing table.
type Router struct {
	routes map[string]route
}

// NewRouter copies cfg into a Router. Later changes to cfg are not observed.
func NewRouter(cfg map[string]AudienceConfig) *Router {
	routes := make(map[string]route, len(cfg))
	for audience, ac := range cfg {
		sources := make(map[identity.AccountID]struct{}, len(ac.Sources))
		for _, src := range ac.Sources {
			sources[src] = struct{}{}
		}
		routes[audience] = route{callback: ac.Callback, sources: sources}
	}
	return &Router{routes: routes}
}

// ExtractAudience returns AUDIENCE from a topic ending in
// audiences/AUDIENCE/events.
func ExtractAudience(topic string) (string, error) {
	var segments []string
	for _, s := range strings.Split(topic, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	n := len(segments)
	if n < 3 || segments[n-1] != "events" || segments[n-3] != "audiences" {
		return "", fmt.Errorf("%w: %s", ErrTopicPattern, topic)
	}
	audience := segments[n-2]
	if !utf8.ValidString(audience) {
		return "", fmt.Errorf("%w: %s", ErrTopicPattern, topic)
	}
	return audience, nil
}

// Handle authorizes an event published by source on topic and returns the
// delivery task for the audience callback.
func (r *Router) Handle(topic string, payload json.RawMessage, source identity.AccountID) (webhook.Message, error) {
	audience, err := ExtractAudience(topic)
	if err != nil {
		return webhook.Message{}, err
	}

	rt, ok := r.routes[audience]
	if !ok {
		return webhook.Message{}, &AuthorizationError{Audience: audience, Source: source, Unconfigured: true}
	}
	if _, ok := rt.sources[source]; !ok {
		return webhook.Message{}, &AuthorizationError{Audience: audience, Source: source}
	}

	return webhook.Message{
		Payload:     payload,
		Destination: rt.callback,
		Metadata: metadata.New(
			metadata.KeyAudience, audience,
			metadata.KeySourceAccount, source.String(),
		),
	}, nil
}

// Subscriptions lists every event topic to subscribe to, ordered by
// audience and source.
func (r *Router) Subscriptions() []Subscription {
	var subs []Subscription
	for audience, rt := range r.routes {
		for src := range rt.sources {
			subs = append(subs, Subscription{
				Audience: audience,
				Source:   src,
				Topic:    topics.Events(src, audience),
			})
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Audience != subs[j].Audience {
			return subs[i].Audience < subs[j].Audience
		}
		return subs[i].Source.String() < subs[j].Source.String()
	})
	return subs
}
