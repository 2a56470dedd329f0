package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"

	"github.com/shopmesh/orders-service/internal/config"
	"github.com/shopmesh/orders-service/internal/metrics"
	"github.com/shopmesh/orders-service/internal/repository"
)

// Server is the operational HTTP surface: health, readiness and metrics.
// The order API itself is served over the message bus, not HTTP.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	cache      *repository.RedisOrderCache
	nats       *nats.Conn
}

// New creates the admin server.
func New(cfg *config.Config, db *sql.DB, cache *repository.RedisOrderCache, nc *nats.Conn) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		db:    db,
		cache: cache,
		nats:  nc,
	}

	router.GET("/health", s.health)
	router.GET("/ready", s.ready)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "orders-service",
	})
}

func (s *Server) ready(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if err := s.db.PingContext(c.Request.Context()); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if err := s.cache.Ping(c.Request.Context()); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	if !s.nats.IsConnected() {
		checks["nats"] = "disconnected"
		healthy = false
	} else {
		checks["nats"] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}

	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
	})
}
