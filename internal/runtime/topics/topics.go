// Package topics builds the bus topic names the gateway publishes to and
// subscribes on.
package topics

import (
	"fmt"

	"github.com/drblury/protogate/internal/runtime/identity"
)

const apiVersion = "v1"

// Request is the topic a request from agent to the destination account is
// published on.
func Request(agent identity.AgentID, destination identity.AccountID) string {
	return fmt.Sprintf("agents/%s/api/%s/out/%s", agent, apiVersion, destination)
}

// Responses is the unicast topic on which responses to agent requests arrive.
// Every gateway instance of an account subscribes to the same topic in a
// shared group, so the agent identity of the original caller travels inside
// the envelope rather than in the topic.
func Responses(agent identity.AgentID) string {
	return fmt.Sprintf("agents/%s/api/%s/responses", agent, apiVersion)
}

// Events is the broadcast topic on which source publishes events for audience.
func Events(source identity.AccountID, audience string) string {
	return fmt.Sprintf("apps/%s/api/%s/audiences/%s/events", source, apiVersion, audience)
}

// SharedGroup names the load-balancing group all instances of the gateway
// account join.
func SharedGroup(account identity.AccountID) string {
	return "loadbalancer." + account.String()
}
