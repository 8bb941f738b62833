package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nao1215/sitesearch/internal/model"
	"github.com/nao1215/sitesearch/internal/search"
)

// Default server settings.
const (
	DefaultRequestTimeout  = 2 * time.Minute
	DefaultShutdownTimeout = 10 * time.Second

	readHeaderTimeout = 10 * time.Second
	saveTimeout       = 5 * time.Second
)

// ReportStore persists finished reports and looks them up again.
// *database.SearchDB implements it.
type ReportStore interface {
	SaveReport(ctx context.Context, report *model.SearchReport) error
	FindReport(ctx context.Context, idPrefix string) (*model.SearchReport, error)
}

// Server serves the search API.
type Server struct {
	mux     *http.ServeMux
	factory search.ServiceFactory
	store   ReportStore
	logger  *slog.Logger

	requestTimeout  time.Duration
	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithRequestTimeout bounds each search. When it expires the reply holds
// the pages processed so far and "timed_out": true.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithShutdownTimeout sets how long Run waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithStore saves every report and enables GET /reports/{id}.
func WithStore(store ReportStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a Server. factory returns the search.Service used for each
// request, which lets callers apply per-site configuration.
func New(factory search.ServiceFactory, opts ...Option) *Server {
	s := &Server{
		mux:             http.NewServeMux(),
		factory:         factory,
		requestTimeout:  DefaultRequestTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.mux.HandleFunc("GET /search", s.handleSearch)
	s.mux.HandleFunc("GET /reports/{id}", s.handleGetReport)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
// ready, if not nil, is called with the bound address once listening.
func (s *Server) Run(ctx context.Context, addr string, ready func(net.Addr)) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("server listening", "addr", ln.Addr().String())
	if ready != nil {
		ready(ln.Addr())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
