package livereload

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/conneroisu/torx/internal/logging"
)

// Path is where the WebSocket endpoint is mounted.
const Path = "/livereload"

// Server serves a Hub over HTTP.
type Server struct {
	hub      *Hub
	server   *http.Server
	listener net.Listener
	logger   logging.Logger
}

// NewServer creates a server that will listen on addr.
func NewServer(addr string, logger logging.Logger) *Server {
	hub := NewHub(logger)

	mux := http.NewServeMux()
	mux.Handle(Path, hub)

	return &Server{
		hub: hub,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.WithComponent("livereload"),
	}
}

// Start begins accepting connections in the background.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("live reload listen on %s: %w", s.server.Addr, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, err, "Live reload server stopped")
		}
	}()

	s.logger.Info(ctx, "Live reload listening", "addr", listener.Addr().String(), "path", Path)
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Handler returns the HTTP handler serving the endpoint.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Notify broadcasts a reload for outputPath.
func (s *Server) Notify(ctx context.Context, outputPath string) {
	s.hub.Notify(ctx, outputPath)
}

// Shutdown disconnects clients and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.server.Shutdown(ctx)
}
