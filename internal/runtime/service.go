package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/drblury/protogate/internal/runtime/auth"
	configpkg "github.com/drblury/protogate/internal/runtime/config"
	"github.com/drblury/protogate/internal/runtime/correlation"
	perrors "github.com/drblury/protogate/internal/runtime/errors"
	"github.com/drblury/protogate/internal/runtime/events"
	"github.com/drblury/protogate/internal/runtime/identity"
	loggingpkg "github.com/drblury/protogate/internal/runtime/logging"
	"github.com/drblury/protogate/internal/runtime/topics"
	transportpkg "github.com/drblury/protogate/internal/runtime/transport"
	"github.com/drblury/protogate/internal/runtime/webhook"
)

const shutdownTimeout = 10 * time.Second

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to use the defaults derived from the configuration.
type ServiceDependencies struct {
	TransportFactory transportpkg.Factory
	// Verifier replaces the JWT verifier built from the authn section.
	Verifier auth.Verifier
	// MetricsRegisterer defaults to prometheus.DefaultRegisterer. When it is
	// also a prometheus.Gatherer it backs the metrics endpoint.
	MetricsRegisterer prometheus.Registerer
}

// Service wires the bus transport, the dispatcher and the HTTP API.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	agent     identity.AgentID
	transport transportpkg.Transport
	router    *message.Router

	store      *correlation.Store
	gate       *PublishGate
	events     *events.Router
	deliverer  *webhook.Deliverer
	dispatcher *Dispatcher
	requester  *Requester
	metrics    *GatewayMetrics

	server *http.Server

	ready chan struct{}
	addr  string
	mu    sync.Mutex
}

// NewService constructs a Service for the supplied configuration. It panics
// when the service cannot be built; use TryNewService to handle the error.
func NewService(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) *Service {
	s, err := TryNewService(ctx, conf, log, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewService validates conf, connects the bus transport and builds every
// component. Nothing is subscribed or served until Start.
func TryNewService(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, perrors.ErrConfigRequired
	}
	if log == nil {
		return nil, perrors.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, perrors.NewConfigValidationError(err)
	}

	agent, err := conf.Agent()
	if err != nil {
		return nil, err
	}

	log.Info("Creating gateway service", loggingpkg.LogFields{
		"agent_id":   agent.String(),
		"bus_system": conf.GetBusSystem(),
		"config":     conf,
	})

	verifier := deps.Verifier
	if verifier == nil {
		verifier, err = newVerifier(conf)
		if err != nil {
			return nil, err
		}
	}

	audiences, err := audienceConfig(conf)
	if err != nil {
		return nil, err
	}

	registerer := deps.MetricsRegisterer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	factory := deps.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}
	wmLogger := loggingpkg.NewWatermillAdapter(log)
	transport, err := factory.Build(ctx, conf, wmLogger)
	if err != nil {
		return nil, err
	}
	if transport.Publisher == nil {
		return nil, perrors.ErrPublisherRequired
	}
	if transport.Subscriber == nil {
		return nil, perrors.ErrSubscriberRequired
	}

	caps := transportpkg.GetCapabilities(conf.GetBusSystem())
	log.Info("Bus transport connected", loggingpkg.LogFields{
		"transport":       caps.Name,
		"shared_groups":   caps.SupportsSharedGroups,
		"maps_topics":     caps.MapsTopics,
		"reliable":        caps.SupportsReliableDelivery(),
		"max_message_len": caps.MaxMessageSize,
	})
	if !caps.SupportsHorizontalScaling() {
		log.Info("Bus transport does not load balance subscriptions, run a single gateway instance", nil)
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: shutdownTimeout}, wmLogger)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	router.AddMiddleware(busMiddlewares(log)...)

	publisher := transport.Publisher
	if conf.Metrics.Enabled {
		builder := metrics.NewPrometheusMetricsBuilder(registerer, metricsNamespace, "bus")
		builder.AddPrometheusRouterMetrics(router)
		if publisher, err = builder.DecoratePublisher(publisher); err != nil {
			_ = transport.Close()
			return nil, err
		}
	}

	s := &Service{
		Conf:      conf,
		Logger:    log,
		agent:     agent,
		transport: transport,
		router:    router,
		store:     correlation.NewStore(),
		events:    events.NewRouter(audiences),
		ready:     make(chan struct{}),
	}

	if s.gate, err = NewPublishGate(publisher); err != nil {
		_ = transport.Close()
		return nil, err
	}

	s.dispatcher = NewDispatcher(s.store, s.events, nil, log, nil)
	s.metrics = NewGatewayMetrics(registerer, s.store.Len, s.dispatcher.QueueDepth, s.webhookDepth)

	s.deliverer, err = webhook.NewDeliverer(webhook.Config{
		Timeout:   conf.HTTPClient.Timeout,
		QueueSize: conf.HTTPClient.QueueSize,
		Workers:   conf.HTTPClient.Workers,
	}, log, s.metrics.ObserveWebhook)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	s.dispatcher.hooks = s.deliverer
	s.dispatcher.metrics = s.metrics

	s.requester = NewRequester(agent, s.gate, s.store, conf.EffectiveRequestTimeout(), log)

	httpOpts := HTTPOptions{
		Requester: s.requester,
		Verifier:  verifier,
		CORS:      conf.HTTP.CORS,
		Logger:    log,
		Metrics:   s.metrics,
	}
	if conf.Metrics.Enabled {
		if err := s.metrics.Register(); err != nil {
			_ = transport.Close()
			return nil, err
		}
		httpOpts.MetricsHandler = metricsHandler(registerer)
		httpOpts.MetricsPath = conf.Metrics.Path
	}
	s.server = &http.Server{
		Addr:              conf.HTTP.ListenerAddress,
		Handler:           NewHTTPHandler(httpOpts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.addSubscriptions()
	return s, nil
}

func metricsHandler(registerer prometheus.Registerer) http.Handler {
	if gatherer, ok := registerer.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

func newVerifier(conf *configpkg.Config) (auth.Verifier, error) {
	issuers := make(map[string]auth.IssuerConfig, len(conf.Authn))
	for name, a := range conf.Authn {
		issuers[name] = auth.IssuerConfig{
			Algorithm: a.Algorithm,
			Key:       a.Key,
			Audience:  a.Audience,
		}
	}
	return auth.NewJWTVerifier(issuers)
}

func audienceConfig(conf *configpkg.Config) (map[string]events.AudienceConfig, error) {
	out := make(map[string]events.AudienceConfig, len(conf.Events))
	for audience, ac := range conf.Events {
		sources := make([]identity.AccountID, 0, len(ac.Sources))
		for _, raw := range ac.Sources {
			src, err := identity.ParseAccountID(raw)
			if err != nil {
				return nil, fmt.Errorf("events %s: source %q: %w", audience, raw, err)
			}
			sources = append(sources, src)
		}
		out[audience] = events.AudienceConfig{Callback: ac.Callback, Sources: sources}
	}
	return out, nil
}

// addSubscriptions registers one router handler for the unicast responses
// topic and one per (audience, source) events topic. The transport joins the
// shared group on each of them.
func (s *Service) addSubscriptions() {
	responses := topics.Responses(s.agent)
	s.router.AddConsumerHandler("responses", responses, s.transport.Subscriber, s.dispatcher.Forwarder(responses))

	for _, sub := range s.events.Subscriptions() {
		name := fmt.Sprintf("events.%s.%s", sub.Audience, sub.Source)
		s.router.AddConsumerHandler(name, sub.Topic, s.transport.Subscriber, s.dispatcher.Forwarder(sub.Topic))
	}
}

// Ready is closed once the subscriptions are established and the HTTP
// listener accepts connections.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the address the HTTP listener is bound to. Empty before Ready.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start subscribes to the bus, then serves HTTP until ctx is cancelled or a
// component fails. Subscription failures are returned before anything is
// served.
//
// The bus router, the dispatcher and the webhook deliverer run on a context
// that outlives ctx: on shutdown the HTTP server drains first, so requests in
// flight still receive their responses, then the subscriptions close and the
// inbox is drained.
func (s *Service) Start(ctx context.Context) error {
	defer func() {
		if err := s.transport.Close(); err != nil {
			s.Logger.Error("Failed to close transport", err, nil)
		}
	}()

	ln, err := net.Listen("tcp", s.Conf.HTTP.ListenerAddress)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.Conf.HTTP.ListenerAddress, err)
	}

	busCtx, busCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer busCancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.router.Run(busCtx)
		if err == nil && gctx.Err() == nil {
			err = errors.New("bus subscriptions stopped")
		}
		return err
	})

	select {
	case <-s.router.Running():
	case <-gctx.Done():
		busCancel()
		_ = ln.Close()
		s.dispatcher.Close()
		if err := g.Wait(); err != nil {
			return fmt.Errorf("subscribing: %w", err)
		}
		return nil
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	dispatched := make(chan struct{})
	g.Go(func() error {
		defer close(dispatched)
		return s.dispatcher.Run(busCtx)
	})
	g.Go(func() error { return s.deliverer.Run(busCtx) })
	g.Go(func() error {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.Logger.Info("Shutting down gateway", loggingpkg.LogFields{"pending": s.store.Len()})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := s.server.Shutdown(shutdownCtx)

		s.gate.Close()
		if closeErr := s.router.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		s.dispatcher.Close()
		select {
		case <-dispatched:
		case <-shutdownCtx.Done():
		}
		busCancel()
		return err
	})

	s.Logger.Info("Gateway started", loggingpkg.LogFields{
		"agent_id":      s.agent.String(),
		"address":       s.Addr(),
		"subscriptions": len(s.router.Handlers()),
	})
	close(s.ready)

	return g.Wait()
}

// Handler returns the HTTP handler of the gateway.
func (s *Service) Handler() http.Handler {
	return s.server.Handler
}

func (s *Service) webhookDepth() int {
	if s.deliverer == nil {
		return 0
	}
	return s.deliverer.Len()
}

// Pending returns the number of requests waiting for a response.
func (s *Service) Pending() int {
	return s.store.Len()
}
