// Package envelope encodes and decodes the JSON envelope carried by every bus
// message:
//
//	{"payload": <any JSON>, "properties": {"type": "request", ...}}
//
// Payloads are kept as json.RawMessage and never re-encoded, so whatever a
// remote account publishes is forwarded byte for byte.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	perrors "github.com/drblury/protogate/internal/runtime/errors"
	"github.com/drblury/protogate/internal/runtime/identity"
	"github.com/drblury/protogate/internal/runtime/jsoncodec"
)

// ErrMalformed is wrapped by every decoding failure.
var ErrMalformed = errors.New("malformed envelope")

// Kind discriminates decoded envelopes.
type Kind int

const (
	KindUnknown Kind = iota
	KindRequest
	KindResponse
	KindEvent
)

const (
	typeRequest  = "request"
	typeResponse = "response"
	typeEvent    = "event"
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return typeRequest
	case KindResponse:
		return typeResponse
	case KindEvent:
		return typeEvent
	default:
		return "unknown"
	}
}

// Properties are the envelope headers.
type Properties struct {
	Type            string `json:"type"`
	Method          string `json:"method,omitempty"`
	CorrelationData string `json:"correlation_data,omitempty"`
	ResponseTopic   string `json:"response_topic,omitempty"`
	AgentID         string `json:"agent_id,omitempty"`
	Status          string `json:"status,omitempty"`
}

type wireEnvelope struct {
	Payload    json.RawMessage `json:"payload"`
	Properties Properties      `json:"properties"`
}

// Incoming is a decoded bus message.
type Incoming struct {
	Kind          Kind
	CorrelationID string
	Payload       json.RawMessage
	Sender        identity.AgentID
	Properties    Properties
}

// Decode parses a bus message. Responses must carry correlation data and
// events must name the sending agent. Unrecognised types decode to
// KindUnknown without error so callers can reject them explicitly.
func Decode(data []byte) (Incoming, error) {
	var wire wireEnvelope
	if err := jsoncodec.Unmarshal(data, &wire); err != nil {
		return Incoming{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(wire.Payload) == 0 {
		return Incoming{}, fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	if wire.Properties.Type == "" {
		return Incoming{}, fmt.Errorf("%w: missing properties.type", ErrMalformed)
	}

	in := Incoming{
		Kind:       KindUnknown,
		Payload:    wire.Payload,
		Properties: wire.Properties,
	}

	if wire.Properties.AgentID != "" {
		sender, err := identity.ParseAgentID(wire.Properties.AgentID)
		if err != nil {
			return Incoming{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		in.Sender = sender
	}

	switch wire.Properties.Type {
	case typeResponse:
		if wire.Properties.CorrelationData == "" {
			return Incoming{}, fmt.Errorf("%w: response without correlation_data", ErrMalformed)
		}
		in.Kind = KindResponse
		in.CorrelationID = wire.Properties.CorrelationData
	case typeEvent:
		if in.Sender.IsZero() {
			return Incoming{}, fmt.Errorf("%w: event without agent_id", ErrMalformed)
		}
		in.Kind = KindEvent
	case typeRequest:
		in.Kind = KindRequest
		in.CorrelationID = wire.Properties.CorrelationData
	}

	return in, nil
}

// Request is an outgoing call to a remote account.
type Request struct {
	Method        string
	Destination   identity.AccountID
	Payload       json.RawMessage
	ResponseTopic string
	CorrelationID string
	Sender        identity.AgentID
}

// Encode renders the request envelope.
func (r Request) Encode() ([]byte, error) {
	if r.Method == "" {
		return nil, perrors.ErrMethodRequired
	}
	if r.ResponseTopic == "" {
		return nil, perrors.ErrTopicRequired
	}
	return encode(r.Payload, Properties{
		Type:            typeRequest,
		Method:          r.Method,
		CorrelationData: r.CorrelationID,
		ResponseTopic:   r.ResponseTopic,
		AgentID:         r.Sender.String(),
	})
}

// NewResponse renders a response envelope as a remote account would publish it.
func NewResponse(correlationID string, sender identity.AgentID, status int, payload json.RawMessage) ([]byte, error) {
	if correlationID == "" {
		return nil, fmt.Errorf("%w: response without correlation_data", ErrMalformed)
	}
	return encode(payload, Properties{
		Type:            typeResponse,
		CorrelationData: correlationID,
		AgentID:         sender.String(),
		Status:          strconv.Itoa(status),
	})
}

// NewEvent renders an event envelope published by sender.
func NewEvent(sender identity.AgentID, label string, payload json.RawMessage) ([]byte, error) {
	if sender.IsZero() {
		return nil, fmt.Errorf("%w: event without agent_id", ErrMalformed)
	}
	return encode(payload, Properties{
		Type:    typeEvent,
		Method:  label,
		AgentID: sender.String(),
	})
}

func encode(payload json.RawMessage, props Properties) ([]byte, error) {
	if len(payload) == 0 {
		return nil, perrors.ErrPayloadRequired
	}
	if !jsoncodec.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrMalformed)
	}
	return jsoncodec.Marshal(wireEnvelope{Payload: payload, Properties: props})
}
