package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/meetflow/config"
	"github.com/otherjamesbrown/meetflow/pkg/buildinfo"
	"github.com/otherjamesbrown/meetflow/pkg/db"
	mferrors "github.com/otherjamesbrown/meetflow/pkg/errors"
	"github.com/otherjamesbrown/meetflow/pkg/logging"
)

// Request headers carrying the delivery credentials.
const (
	HeaderSignature = "x-signature"
	HeaderAPIKey    = "x-api-key"
)

const shutdownTimeout = 10 * time.Second

// Server is the inbound HTTP surface: the webhook endpoint plus health and
// metrics endpoints.
type Server struct {
	cfg      config.ServerConfig
	verifier *Verifier
	router   *Router
	pool     *pgxpool.Pool
	rdb      *redis.Client
	registry *prometheus.Registry
	logger   logging.Logger

	httpServer *http.Server
}

// NewServer creates the webhook HTTP server.
func NewServer(
	cfg config.ServerConfig,
	verifier *Verifier,
	router *Router,
	pool *pgxpool.Pool,
	rdb *redis.Client,
	registry *prometheus.Registry,
	logger logging.Logger,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		verifier: verifier,
		router:   router,
		pool:     pool,
		rdb:      rdb,
		registry: registry,
		logger:   logger.With(logging.F("component", "webhook_server")),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.POST("/api/webhook", s.handleWebhook)
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/version", gin.WrapF(buildinfo.Handler("meetflow")))
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook server listening", logging.F("addr", s.cfg.ListenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("webhook server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webhook server shutdown failed: %w", err)
	}
	s.logger.Info("webhook server stopped")
	return nil
}

// handleWebhook is the single ingestion endpoint. Verification runs on the
// raw body before any decoding.
func (s *Server) handleWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	sig := c.GetHeader(HeaderSignature)
	key := c.GetHeader(HeaderAPIKey)
	if err := s.verifier.Verify(body, sig, key); err != nil {
		s.logger.Warn("webhook delivery rejected", logging.Err(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	event, err := Decode(body)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	if err := s.router.Dispatch(c.Request.Context(), event); err != nil {
		s.logger.Error("webhook event failed",
			logging.F("event_type", event.EventType()),
			logging.Err(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleHealthz reports liveness of the process and its dependencies.
func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok", "redis": "ok"}
	healthy := true

	if err := db.Ping(ctx, s.pool); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if s.rdb != nil {
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, checks)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, mferrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, mferrors.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, mferrors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
