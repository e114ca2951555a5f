package metadata

import "maps"

// Metadata represents the headers carried alongside a bus or webhook message.
type Metadata map[string]string

// Reserved keys set by the gateway on outgoing messages.
const (
	// KeyCorrelationID links a bus request with its response.
	KeyCorrelationID = "correlation_id"

	// KeyMethod is the remote method a bus request invokes.
	KeyMethod = "method"

	// KeyAudience names the audience a forwarded event belongs to.
	KeyAudience = "audience"

	// KeySourceAccount identifies the account that published a forwarded event.
	KeySourceAccount = "source_account"
)

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := make(Metadata, len(m)+1)
	maps.Copy(cloned, m)
	cloned[key] = value
	return cloned
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}
