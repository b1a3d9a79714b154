package stub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
)

const (
	actionInsert     = "insert"
	actionInsertMany = "insertMany"
)

type fixtureKey struct {
	collection string
	action     string
}

// Request is one request the stub server accepted.
type Request struct {
	Method     string          `json:"method"`
	Path       string          `json:"path"`
	Collection string          `json:"collection"`
	Action     string          `json:"action"`
	Body       json.RawMessage `json:"body"`
}

// Server answers document database queries from fixtures. It is meant for
// tests and local development, not for storing anything.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	fixtures map[fixtureKey]Fixture

	mu       sync.Mutex
	requests []Request
}

func NewServer(cfg Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	fixtures := make(map[fixtureKey]Fixture, len(cfg.Fixtures))
	for _, f := range cfg.Fixtures {
		fixtures[fixtureKey{f.Collection, f.Action}] = f
	}

	return &Server{
		cfg:      cfg,
		logger:   logger,
		fixtures: fixtures,
	}, nil
}

// Handler returns the server's routes wrapped in its middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthcheck", s.healthCheckHandler)
	mux.Handle("POST /{$}", s.authMiddleware(http.HandlerFunc(s.queryHandler)))
	mux.Handle("PUT /{collection}", s.authMiddleware(http.HandlerFunc(s.insertHandler)))
	mux.Handle("PUT /{collection}/batch", s.authMiddleware(http.HandlerFunc(s.insertManyHandler)))

	return s.recoverPanicMiddleware(s.requestLoggerMiddleware(s.corsMiddleware(mux)))
}

// Requests returns the requests accepted so far, oldest first.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.requests)
}

func (s *Server) remember(req Request) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
}

func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down server", "addr", s.cfg.Addr)
		if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("failed to shutdown server", "addr", s.cfg.Addr, "error", err)
		}
	}()

	var serverErr error
	if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
		s.logger.Info("starting server with TLS", "addr", s.cfg.Addr)
		serverErr = srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
	} else {
		s.logger.Info("starting server without TLS", "addr", s.cfg.Addr)
		serverErr = srv.ListenAndServe()
	}

	if serverErr != nil && serverErr != http.ErrServerClosed {
		return serverErr
	}

	return nil
}
