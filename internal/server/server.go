package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	echo "github.com/labstack/echo/v4"

	"github.com/clickrtraining/clickrtraining/internal/hub"
)

const readHeaderTimeout = 10 * time.Second

// Server is the host's HTTP ingress: listener attach, click requests and a
// health probe, all backed by one registry.
type Server struct {
	router   *echo.Echo
	http     *http.Server
	registry *hub.Registry
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu   sync.Mutex
	addr net.Addr
	errc chan error
}

// New builds the router for registry. A nil logger discards output.
func New(registry *hub.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		router:   echo.New(),
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			// Listeners are native clients, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		errc: make(chan error, 1),
	}
	s.router.HideBanner = true
	s.router.HidePort = true
	s.router.HTTPErrorHandler = httpErrorHandler(s.router, logger)
	s.routes()

	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds addr and serves in the background. When certFile and keyFile
// are both set the listener speaks TLS.
func (s *Server) Start(addr, certFile, keyFile string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	tls := certFile != "" && keyFile != ""
	s.logger.Info("Starting click host", "addr", ln.Addr().String(), "tls", tls)

	go func() {
		defer close(s.errc)
		var err error
		if tls {
			err = s.http.ServeTLS(ln, certFile, keyFile)
		} else {
			err = s.http.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", "error", err)
			s.errc <- err
		}
	}()
	return nil
}

// Addr is the bound address once Start succeeded.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Errors reports a serve loop that ended unexpectedly. It is closed once
// the server stops.
func (s *Server) Errors() <-chan error {
	return s.errc
}

// Shutdown closes every listener session, then stops the HTTP server.
// Upgraded connections are hijacked and invisible to http.Server, so the
// registry has to release them itself.
func (s *Server) Shutdown(ctx context.Context) error {
	s.registry.Shutdown()
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("Click host stopped")
	return nil
}

func httpErrorHandler(e *echo.Echo, logger *slog.Logger) func(err error, c echo.Context) {
	return func(err error, c echo.Context) {
		status := http.StatusInternalServerError
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		}

		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request().Context(), level, "Request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", status,
			"error", err,
		)
		e.DefaultHTTPErrorHandler(err, c)
	}
}
