// Package server wires the recorder, the catch-all sink and the admin
// endpoints behind one HTTP listener.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wudi/dummy/internal/admin"
	"github.com/wudi/dummy/internal/capture"
	"github.com/wudi/dummy/internal/config"
	"github.com/wudi/dummy/internal/filter"
	"github.com/wudi/dummy/internal/logging"
	"github.com/wudi/dummy/internal/middleware"
	"github.com/wudi/dummy/internal/proxy"
	"github.com/wudi/dummy/internal/recorder"
	"github.com/wudi/dummy/internal/sink"
	"github.com/wudi/dummy/internal/tracing"
)

// Server owns the process-wide state and the HTTP server.
type Server struct {
	cfg        *config.Config
	store      *recorder.Store
	policy     *filter.Policy
	forwarder  *proxy.Forwarder
	sink       *sink.Handler
	admin      *admin.Handler
	tracer     *tracing.Tracer
	handler    http.Handler
	httpServer *http.Server
}

// New builds a server from cfg. tracer may be nil.
func New(cfg *config.Config, tracer *tracing.Tracer) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		store:  recorder.NewStore(cfg.History.MaxEntries),
		policy: filter.New(cfg.Filter),
		tracer: tracer,
	}

	if cfg.Upstream.Enabled() {
		f, err := proxy.New(cfg.Upstream, tracer)
		if err != nil {
			return nil, fmt.Errorf("failed to create upstream forwarder: %w", err)
		}
		s.forwarder = f
	}

	var decoder *capture.Decoder
	if cfg.Capture.DecodeContentEncoding {
		decoder = capture.NewDecoder(cfg.Capture.MaxDecodedSize)
	}

	s.sink = sink.New(sink.Options{
		Normalizer: capture.NewNormalizer(capture.Options{
			DecodeContentEncoding: cfg.Capture.DecodeContentEncoding,
			MaxDecodedSize:        cfg.Capture.MaxDecodedSize,
		}),
		Policy:    s.policy,
		Store:     s.store,
		Forwarder: s.forwarder,
		Mock:      cfg.Mock,
		Decoder:   decoder,
	})
	s.admin = admin.NewHandler(s.store, nil)
	s.handler = s.buildHandler()

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Listen.Port)),
		Handler:           s.handler,
		ReadHeaderTimeout: cfg.Listen.ReadHeaderTimeout,
		IdleTimeout:       cfg.Listen.IdleTimeout,
		ErrorLog:          zap.NewStdLog(logging.Global()),
	}
	return s, nil
}

// buildHandler assembles the route table and middleware. Admin routes are GET
// only; every other method and path goes to the sink.
func (s *Server) buildHandler() http.Handler {
	router := httprouter.New()
	router.HandleMethodNotAllowed = false
	router.HandleOPTIONS = false
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.NotFound = s.sink
	s.admin.RegisterRoutes(router)

	return middleware.NewBuilder().
		Use(middleware.Annotate()).
		Use(middleware.LoggingWithConfig(middleware.LoggingConfig{
			SkipPaths: []string{admin.PathHealth},
		})).
		UseIf(s.tracer.IsEnabled(), s.tracer.Middleware()).
		Use(middleware.Recovery()).
		Handler(router)
}

// Handler returns the complete request handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Store returns the recorded state.
func (s *Server) Store() *recorder.Store {
	return s.store
}

// Mode reports "mock" or "proxy".
func (s *Server) Mode() string {
	return s.sink.Mode()
}

// Run listens on the configured port and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done or the server fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	fields := []zap.Field{
		zap.String("addr", ln.Addr().String()),
		zap.String("mode", s.Mode()),
		zap.Strings("ignore_paths", s.policy.IgnorePaths()),
		zap.Bool("ignore_health_check", s.cfg.Filter.IgnoreHealthCheck),
		zap.Int("history_max_entries", s.cfg.History.MaxEntries),
	}
	if s.forwarder != nil {
		fields = append(fields, zap.String("upstream", s.forwarder.Target()))
	}
	logging.Info("Starting dummy server", fields...)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Shutting down gracefully...")
		return s.Shutdown(s.cfg.Listen.ShutdownTimeout)
	})

	return g.Wait()
}

// Shutdown stops accepting requests, waits up to timeout for in-flight ones,
// and releases upstream connections.
func (s *Server) Shutdown(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		logging.Error("HTTP server shutdown error", zap.Error(err))
	}
	if s.forwarder != nil {
		s.forwarder.Close()
	}

	summary := s.store.Summary()
	logging.Info("Server shutdown complete",
		zap.Int("interactions", summary.Interactions),
		zap.Int("path_keys", summary.PathKeys),
	)
	return err
}
