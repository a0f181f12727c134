package whisperlive

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cherrries/WhisperLive/providers"
)

const (
	// DefaultMaxClients bounds concurrent transcription sessions when the
	// client config does not request a limit.
	DefaultMaxClients = 4

	// DefaultMaxConnectionTime bounds one session's lifetime when the
	// client config does not request a limit.
	DefaultMaxConnectionTime = 600 * time.Second
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.srv.Addr = addr }
}

// WithServerLogger sets the server logger.
func WithServerLogger(logger *log.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithDetectedLanguage sets the language the server reports back to clients
// that asked for auto-detection.
func WithDetectedLanguage(lang string, prob float64) ServerOption {
	return func(s *Server) {
		s.detectLanguage = lang
		s.detectProb = prob
	}
}

// WithCapacity sets the concurrent session limit used when the client
// config does not request one.
func WithCapacity(maxClients int) ServerOption {
	return func(s *Server) {
		if maxClients > 0 {
			s.maxClients = maxClients
		}
	}
}

// WithMaxConnectionTime sets the session lifetime used when the client
// config does not request one.
func WithMaxConnectionTime(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.maxConnTime = d
		}
	}
}

// Server speaks the streaming wire protocol for development and testing:
// config handshake, SERVER_READY, WAIT when over capacity, float32 audio in,
// segment batches out, DISCONNECT on overtime. Transcription itself is
// delegated to a backend provider; real model inference stays out of scope.
type Server struct {
	srv      *http.Server
	logger   *log.Logger
	provider providers.Provider

	detectLanguage string
	detectProb     float64
	maxClients     int
	maxConnTime    time.Duration

	mu     sync.Mutex
	active int
}

// NewServer creates a server bridging clients to the given backend.
func NewServer(provider providers.Provider, opts ...ServerOption) *Server {
	mux := http.NewServeMux()

	server := &Server{
		srv: &http.Server{
			Addr:        ":9090",
			IdleTimeout: 60 * time.Second,
			Handler:     mux,
		},
		logger:         log.Default(),
		provider:       provider,
		detectLanguage: "en",
		detectProb:     0.99,
		maxClients:     DefaultMaxClients,
		maxConnTime:    DefaultMaxConnectionTime,
	}
	for _, opt := range opts {
		opt(server)
	}

	mux.HandleFunc("/", server.handleWebSocket)

	return server
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.srv.Addr, "backend", s.provider.Name())
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop() error {
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.srv.Shutdown(ctx)
}

// tryAcquire claims a session slot, failing when maxClients are already
// connected. A positive client-requested limit overrides the server's.
func (s *Server) tryAcquire(maxClients int) bool {
	if maxClients <= 0 {
		maxClients = s.maxClients
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active >= maxClients {
		return false
	}
	s.active++
	return true
}

func (s *Server) release() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
}
