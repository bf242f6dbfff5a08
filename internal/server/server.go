// Package server is the block-explorer balance proxy behind
// `dappastra serve`. It keeps explorer API keys on the server side.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/chain"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/config"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/explorer"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
)

// Endpoint paths. The second keeps old serverless clients working.
const (
	BalancesPath      = "/api/token-balances"
	LegacyBalancePath = "/.netlify/functions/getTokenBalances"
)

// Fetcher loads an address's token transfers from an explorer.
type Fetcher interface {
	Fetch(ctx context.Context, network, address string) (*explorer.Response, error)
}

// Server wraps the HTTP server and its lifecycle.
type Server struct {
	cfg        *config.ServerConfig
	registry   *chain.Registry
	fetcher    Fetcher
	metrics    *Metrics
	log        zerolog.Logger
	mux        *chi.Mux
	handler    http.Handler
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics shares a metrics set, typically one whose ObserveUpstream is
// also hooked into the explorer client.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New builds the router. A nil cfg uses config.DefaultServerConfig.
func New(cfg *config.ServerConfig, reg *chain.Registry, f Fetcher, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultServerConfig()
	}
	s := &Server{
		cfg:      cfg,
		registry: reg,
		fetcher:  f,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	if cfg.MetricsEnabled && s.metrics == nil {
		s.metrics = NewMetrics()
	}

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(accessLog(s.log))
	mux.Use(recoverer(s.log))

	if cfg.RequestsPerMinute > 0 {
		mux.Use(httprate.Limit(cfg.RequestsPerMinute, time.Minute,
			httprate.WithKeyByIP(),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusTooManyRequests, errorBody("Too many requests"))
			})))
	}
	if cfg.MaxConcurrent > 0 {
		mux.Use(middleware.Throttle(cfg.MaxConcurrent))
	}

	balances := http.HandlerFunc(s.handleBalances)
	mux.With(endpointHeaders).Handle(BalancesPath, balances)
	mux.With(endpointHeaders).Handle(LegacyBalancePath, balances)

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "dappastra-balances"})
	})
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("Not found"))
	})

	s.mux = mux
	s.handler = newCORSHandler(mux)
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout.Duration + 15*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the full middleware stack, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics returns the server's metrics, nil when disabled.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start listens on the configured address.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.log.Info().Str("address", l.Addr().String()).Msg("balance proxy starting")
	s.log.Info().Msgf("\tBalances: %s", BalancesPath)
	s.log.Info().Msg("\tHealth: /health")
	if s.cfg.MetricsEnabled {
		s.log.Info().Msg("\tMetrics: /metrics")
	}
	err := s.httpServer.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down balance proxy...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("error shutting down HTTP server")
		return err
	}
	s.log.Info().Msg("server shutdown complete")
	return nil
}

// Run serves until ctx is cancelled, then shuts down within
// config.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
