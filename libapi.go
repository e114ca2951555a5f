package protogate

import (
	runtimepkg "github.com/drblury/protogate/internal/runtime"
	"github.com/drblury/protogate/internal/runtime/auth"
	configpkg "github.com/drblury/protogate/internal/runtime/config"
	"github.com/drblury/protogate/internal/runtime/correlation"
	"github.com/drblury/protogate/internal/runtime/envelope"
	errspkg "github.com/drblury/protogate/internal/runtime/errors"
	"github.com/drblury/protogate/internal/runtime/events"
	"github.com/drblury/protogate/internal/runtime/identity"
	idspkg "github.com/drblury/protogate/internal/runtime/ids"
	jsoncodec "github.com/drblury/protogate/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/protogate/internal/runtime/logging"
	metadatapkg "github.com/drblury/protogate/internal/runtime/metadata"
	"github.com/drblury/protogate/internal/runtime/topics"
	transportpkg "github.com/drblury/protogate/internal/runtime/transport"
	"github.com/drblury/protogate/internal/runtime/webhook"
	newtransport "github.com/drblury/protogate/transport"
)

type (
	Config               = configpkg.Config
	Service              = runtimepkg.Service
	ServiceDependencies  = runtimepkg.ServiceDependencies
	Transport            = transportpkg.Transport
	TransportFactory     = transportpkg.Factory
	TransportFactoryFunc = transportpkg.FactoryFunc

	AccountID = identity.AccountID
	AgentID   = identity.AgentID

	RequestBody    = runtimepkg.RequestBody
	Requester      = runtimepkg.Requester
	PublishGate    = runtimepkg.PublishGate
	Dispatcher     = runtimepkg.Dispatcher
	Notification   = runtimepkg.Notification
	GatewayMetrics = runtimepkg.GatewayMetrics
	Error          = runtimepkg.Error

	CorrelationStore = correlation.Store
	EventRouter      = events.Router
	AudienceConfig   = events.AudienceConfig
	WebhookMessage   = webhook.Message

	BusRequest       = envelope.Request
	IncomingEnvelope = envelope.Incoming

	Verifier           = auth.Verifier
	IssuerConfig       = auth.IssuerConfig
	AuthnConfig        = configpkg.AuthnConfig
	AuthorizationError = events.AuthorizationError

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError

	// Modular transport types
	TransportBuilder      = newtransport.Builder
	TransportConfig       = newtransport.Config
	TransportRegistry     = newtransport.Registry
	TransportCapabilities = newtransport.Capabilities
)

var (
	NewService    = runtimepkg.NewService
	TryNewService = runtimepkg.TryNewService
	LoadConfig    = configpkg.Load
	ParseConfig   = configpkg.Parse
	DefaultConfig = configpkg.Default

	NewCorrelationStore = correlation.NewStore
	NewPublishGate      = runtimepkg.NewPublishGate
	NewRequester        = runtimepkg.NewRequester
	NewDispatcher       = runtimepkg.NewDispatcher
	NewEventRouter      = events.NewRouter
	ExtractAudience     = events.ExtractAudience
	NewJWTVerifier      = auth.NewJWTVerifier
	SignHS256           = auth.SignHS256

	ParseAccountID = identity.ParseAccountID
	ParseAgentID   = identity.ParseAgentID
	NewAgentID     = identity.NewAgentID

	RequestTopic   = topics.Request
	ResponsesTopic = topics.Responses
	EventsTopic    = topics.Events
	SharedGroup    = topics.SharedGroup

	DecodeEnvelope = envelope.Decode
	NewResponse    = envelope.NewResponse
	NewEvent       = envelope.NewEvent

	GetCapabilities = transportpkg.GetCapabilities

	// Use RegisterTransport and BuildTransport to work with the modular transport packages.
	// Import individual transports via: _ "github.com/drblury/protogate/transport/kafka"
	DefaultTransportRegistry = newtransport.DefaultRegistry
	RegisterTransport        = newtransport.Register
	BuildTransport           = newtransport.Build

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal
	Encode    = jsoncodec.Encode
	Decode    = jsoncodec.Decode

	ErrGateUnavailable    = runtimepkg.ErrGateUnavailable
	ErrDuplicateID        = correlation.ErrDuplicateID
	ErrTopicPattern       = events.ErrTopicPattern
	ErrMalformed          = envelope.ErrMalformed
	ErrPublisherRequired  = errspkg.ErrPublisherRequired
	ErrSubscriberRequired = errspkg.ErrSubscriberRequired
	ErrTopicRequired      = errspkg.ErrTopicRequired
	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrLoggerRequired     = errspkg.ErrLoggerRequired

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewLogger            = loggingpkg.New

	NewMetadata = metadatapkg.New

	CreateULID       = idspkg.CreateULID
	NewCorrelationID = idspkg.NewCorrelationID
)

// RequestPath is the HTTP route accepting gateway requests.
const RequestPath = runtimepkg.RequestPath

// Metadata keys set by the gateway on outgoing messages.
const (
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyMethod        = metadatapkg.KeyMethod
	MetadataKeyAudience      = metadatapkg.KeyAudience
	MetadataKeySourceAccount = metadatapkg.KeySourceAccount
)

// Supported bus systems.
const (
	BusChannel  = configpkg.BusChannel
	BusNATS     = configpkg.BusNATS
	BusKafka    = configpkg.BusKafka
	BusRabbitMQ = configpkg.BusRabbitMQ
	BusAWS      = configpkg.BusAWS
)
