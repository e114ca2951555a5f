// Package transport bridges the gateway configuration to the modular
// transport registry in github.com/drblury/protogate/transport.
package transport

import (
	bus "github.com/drblury/protogate/transport"
)

// Capabilities is an alias for the modular transport Capabilities.
type Capabilities = bus.Capabilities

// GetCapabilities returns the capabilities for a transport by name.
func GetCapabilities(transportName string) Capabilities {
	return bus.GetCapabilities(transportName)
}
