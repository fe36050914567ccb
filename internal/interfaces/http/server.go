// Package http exposes the application services over a JSON HTTP API.
// Handlers only translate requests to service calls and errors to status codes.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/container"
)

const requestIDHeader = "X-Request-ID"

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// HealthChecker reports component health for GET /health
type HealthChecker interface {
	Health(ctx context.Context) *container.HealthStatus
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	logger     *zap.Logger
}

// NewServer creates a new HTTP server over the given services
func NewServer(
	config ServerConfig,
	services *container.ServiceBundle,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	router := gin.New()
	router.MaxMultipartMemory = maxUploadBytes

	server := &Server{
		config: config,
		router: router,
		logger: logger,
	}

	router.Use(gin.Recovery())
	router.Use(server.loggingMiddleware())

	server.setupRoutes(NewHandlers(services, health, logger))
	return server
}

// loggingMiddleware assigns a request id and logs every request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Error("HTTP request", fields...)
		} else {
			s.logger.Info("HTTP request", fields...)
		}
	}
}

func (s *Server) setupRoutes(h *Handlers) {
	s.router.GET("/health", h.HealthCheck)

	projects := s.router.Group("/api/v1/projects")
	{
		projects.POST("", h.CreateProject)
		projects.GET("/:projectId", h.GetProject)

		projects.POST("/:projectId/materials", h.CreateMaterial)
		projects.GET("/:projectId/materials", h.ListMaterials)

		projects.POST("/:projectId/attachments", h.UploadAttachment)
		projects.GET("/:projectId/attachments/:attachmentId", h.GetAttachment)

		projects.POST("/:projectId/invoices/extract", h.ExtractInvoice)
		projects.GET("/:projectId/invoices", h.ListInvoices)
		projects.GET("/:projectId/invoices/:invoiceId", h.GetInvoice)
		projects.PUT("/:projectId/invoices/:invoiceId", h.UpdateInvoice)
		projects.DELETE("/:projectId/invoices/:invoiceId", h.DeleteInvoice)
		projects.POST("/:projectId/invoices/:invoiceId/second-pass", h.ForceSecondPass)
		projects.POST("/:projectId/invoices/:invoiceId/confirm", h.ConfirmInvoice)

		projects.GET("/:projectId/ledger", h.ListLedger)
		projects.GET("/:projectId/ledger/export", h.ExportLedger)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
