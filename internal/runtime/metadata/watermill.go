package metadata

import (
	"maps"

	"github.com/ThreeDotsLabs/watermill/message"
)

// FromWatermill copies message headers. The result is never nil.
func FromWatermill(md message.Metadata) Metadata {
	if md == nil {
		return Metadata{}
	}
	return Metadata(maps.Clone(md))
}

// ToWatermill copies m into headers suitable for message.Message.Metadata.
func ToWatermill(m Metadata) message.Metadata {
	if m == nil {
		return message.Metadata{}
	}
	return message.Metadata(maps.Clone(m))
}
