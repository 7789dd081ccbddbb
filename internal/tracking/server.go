package tracking

import (
	"context"
	"net/http"
	"time"
)

// Server wraps the public tracking HTTP server. It is deliberately small:
// short timeouts, no keep-alive tuning, nothing admin-shaped.
type Server struct {
	handler http.Handler
	server  *http.Server
}

func NewServer(h *Handler) *Server {
	return &Server{handler: h.Routes()}
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
