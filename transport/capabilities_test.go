package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuiltinCapabilities(t *testing.T) {
	tests := []struct {
		caps         Capabilities
		sharedGroups bool
		mapsTopics   bool
		reliable     bool
	}{
		{ChannelCapabilities, false, false, true},
		{NATSCapabilities, true, false, false},
		{KafkaCapabilities, true, true, false},
		{RabbitMQCapabilities, true, false, true},
		{AWSCapabilities, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.caps.Name, func(t *testing.T) {
			assert.Equal(t, tt.sharedGroups, tt.caps.SupportsHorizontalScaling())
			assert.Equal(t, tt.mapsTopics, tt.caps.MapsTopics)
			assert.Equal(t, tt.reliable, tt.caps.SupportsReliableDelivery())
		})
	}
}
