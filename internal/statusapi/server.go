// Package statusapi is a small Gin-based HTTP introspection surface over
// a running internal/resolver.Resolver: cache occupancy, in-flight query
// count, and per-upstream health, plus a swagger UI describing them.
//
// This is read-only scaffolding, not a management API: there is nothing
// here to configure the resolver through.
package statusapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/goresolv/internal/resolver"
	"github.com/jroosing/goresolv/internal/statusapi/middleware"
)

// Config controls the status API's bind address and access key.
type Config struct {
	Host   string
	Port   int
	APIKey string
}

// Server is the status API's HTTP server.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

// New builds a Server over res. The server is not listening until
// ListenAndServe is called.
func New(cfg Config, res *resolver.Resolver, logger *slog.Logger) *Server {
	if res == nil {
		panic("statusapi.New: res is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.SlogRequestLogger(logger, res))

	mountUI(engine)

	h := newHandler(res)
	registerRoutes(engine, h, cfg.APIKey)

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{cfg: cfg, logger: logger, engine: engine, httpServer: httpServer}
}

func (s *Server) Addr() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// ListenAndServe blocks serving requests until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
