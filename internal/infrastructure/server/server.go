package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/gridproxy/internal/api/http"
	"github.com/GriffinCanCode/gridproxy/internal/api/middleware"
	"github.com/GriffinCanCode/gridproxy/internal/domain/session"
	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/config"
	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/logging"
	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/gridproxy/internal/providers/hub"
	"github.com/GriffinCanCode/gridproxy/internal/providers/sessionstore"
	"github.com/GriffinCanCode/gridproxy/internal/proxy"
)

const (
	spanBuffer   = 1024
	probeTimeout = 5 * time.Second
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	http      *http.Server
	config    *config.Config
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	tracer    *tracing.Tracer
	transport *http.Transport
	extractor *session.Extractor
	store     sessionstore.Store
	breaker   *resilience.Breaker
	probe     *hub.Probe
}

// Option configures a Server.
type Option func(*Server)

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new server instance
func NewServer(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{config: cfg}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		logger, err := logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		s.logger = logger
	}
	logger := s.logger

	logger.Info("Initializing grid proxy",
		zap.String("listen", cfg.Server.Listen),
		zap.String("forward", cfg.Upstream.Forward),
		zap.Duration("timeout", cfg.Upstream.Timeout()),
		zap.String("session_route", cfg.Session.Route),
	)

	s.metrics = monitoring.NewMetrics()
	s.tracer = tracing.New(logger.Component("trace"), spanBuffer)

	store, err := sessionstore.Open(ctx, cfg.Store, s.metrics)
	if err != nil {
		s.tracer.Close()
		return nil, err
	}
	s.store = store
	if store != nil {
		logger.Info("Session store ready", zap.String("backend", cfg.Store.Backend))
	}

	if cfg.Breaker.Enabled {
		s.breaker = s.newBreaker()
		logger.Info("Circuit breaker enabled",
			zap.Uint32("consecutive_failures", cfg.Breaker.ConsecutiveFailures),
			zap.Duration("open_timeout", cfg.Breaker.OpenTimeout.Duration),
		)
	}

	route := session.NewRoute(cfg.Session.Route)
	extractorOpts := []session.Option{session.WithLogger(logger.Component("session"))}
	if store != nil {
		extractorOpts = append(extractorOpts, session.WithStore(store, cfg.Store.WriteTimeout.Duration))
	}
	s.extractor = session.NewExtractor(route, extractorOpts...)

	s.transport = proxy.NewTransport(cfg.Upstream)
	dispatcher := proxy.NewDispatcher(s.transport,
		proxy.WithBreaker(s.breaker),
		proxy.WithDispatcherMetrics(s.metrics),
		proxy.WithDispatcherLogger(logger.Component("dispatch")),
	)
	policies := proxy.NewPolicies(route, cfg.Upstream.Timeout(), cfg.Retry.MaxRetries, cfg.Retry.Delay.Duration)
	handler := proxy.NewHandler(dispatcher, s.extractor, policies, cfg.Upstream.Forward,
		proxy.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		proxy.WithHandlerMetrics(s.metrics),
		proxy.WithHandlerLogger(logger.Component("proxy")),
	)

	s.probe = hub.NewProbe(cfg.Upstream.Forward, cfg.Upstream.StatusPath, probeTimeout, s.metrics)

	router, err := s.newRouter(handler)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.router = router
	s.http = &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Logger),
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

func (s *Server) newBreaker() *resilience.Breaker {
	return resilience.New("hub", resilience.Settings{
		OpenTimeout: s.config.Breaker.OpenTimeout.Duration,
		ReadyToTrip: resilience.ConsecutiveFailures(s.config.Breaker.ConsecutiveFailures),
		OnStateChange: func(name string, from, to resilience.State) {
			s.metrics.SetBreakerOpen(to == resilience.StateOpen)
			s.logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
}

func (s *Server) newRouter(handler *proxy.Handler) (*gin.Engine, error) {
	cfg := s.config
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	// Paths belong to the hub: never rewrite or redirect them.
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.HandleMethodNotAllowed = false
	// Client IPs come from the TCP peer unless it is a configured proxy.
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error("Handler panicked",
			zap.Any("panic", recovered),
			zap.String(logging.FieldRequestID, c.GetString(tracing.ContextKey)),
		)
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	if cfg.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	ops := router.Group(apihttp.Prefix)
	if cfg.CORS.Enabled {
		ops.Use(middleware.CORS(middleware.CORSFromConfig(cfg.CORS)))
	}
	apihttp.NewOps(s.probe, s.metrics, s.store, s.breaker).Register(ops)

	var chain []gin.HandlerFunc
	if cfg.Auth.Enabled() {
		s.logger.Info("Basic auth enabled", zap.String("realm", cfg.Auth.Realm))
		chain = append(chain, middleware.BasicAuth(cfg.Auth))
	}
	chain = append(chain, handler.Handle)
	router.NoRoute(chain...)

	return router, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.config.Server.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Listen, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", ln.Addr().String()),
		zap.String("forward", s.config.Upstream.Forward),
	)
	go s.checkHub()

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// checkHub logs whether the hub answers at startup. The proxy serves
// either way.
func (s *Server) checkHub() {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	status := s.probe.Check(ctx)
	if !status.Ready {
		s.logger.Warn("Hub is not ready",
			zap.String("forward", s.config.Upstream.Forward),
			zap.Bool("reachable", status.Reachable),
			zap.Int("status_code", status.StatusCode),
			zap.String("message", status.Message),
		)
		return
	}
	s.logger.Info("Hub is ready", zap.Duration("latency", status.Latency))
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.http.Shutdown(ctx)
}

// Close releases everything the server owns. Call after Shutdown.
func (s *Server) Close() error {
	var errs []error

	s.extractor.Wait()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("Failed to close session store", zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to close session store: %w", err))
		}
	}
	s.transport.CloseIdleConnections()
	s.tracer.Close()

	_ = s.logger.Sync()
	return errors.Join(errs...)
}
