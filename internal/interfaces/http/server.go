// Package http provides the HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application
// service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finclose/close-engine/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxLogRangeDays bounds the approval-log window; it doubles as the
	// default lookback when the caller omits a start date.
	MaxLogRangeDays int
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		MaxLogRangeDays: 366,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	approvalService service.ApprovalService,
	workflowService service.WorkflowService,
	auditService service.AuditService,
	exportService service.ExportService,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config: config,
		router: gin.New(),
		handlers: NewHandlers(approvalService, workflowService, auditService, exportService,
			config.MaxLogRangeDays, logger),
		logger: logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := s.handlers

	// Health check
	s.router.GET("/health", h.HealthCheck)

	v1 := s.router.Group("/v1")
	{
		// Batches
		v1.GET("/batches", h.ListBatches)
		v1.POST("/batches", h.CreateBatch)
		v1.GET("/batches/:batchId", h.GetBatch)

		// Approval chain. Each level gets its own literal route so the
		// role gate binds to the path, not a parameter.
		for level := 1; level <= 3; level++ {
			prefix := fmt.Sprintf("/approvals/level%d", level)
			gate := requireRole(roleForLevel(level))
			v1.GET(prefix+"/:batchId", gate, h.LevelStatus(level))
			v1.POST(prefix+"/:batchId/approve", gate, h.Approve(level))
			v1.POST(prefix+"/:batchId/reject", gate, h.Reject(level))
		}

		// Post-final reversal requires the level 3 role
		v1.GET("/approvals/reject-final", h.ListRejectFinal)
		v1.POST("/approvals/reject-final/:batchId", requireRole(RoleL3Approver), h.RejectFinal)
		v1.GET("/approvals/:batchId/history", h.History)

		// Batch comments
		v1.GET("/report-comments", h.ListComments)
		v1.POST("/report-comments", h.AddComment)

		// Cross-batch approval logs
		v1.GET("/approval-logs", h.ApprovalLogs)
		v1.GET("/approval-logs/export", h.ExportApprovalLogs)

		// Monthly workflow
		wf := v1.Group("/monthly-workflow")
		{
			wf.GET("/:batchId", h.WorkflowStatus)
			wf.GET("/:batchId/progress", h.Progress)
			wf.GET("/:batchId/export", h.ExportWorkflow)
			wf.GET("/:batchId/steps/:stepId", h.StepDetail)
			wf.POST("/:batchId/steps/:stepId/complete", h.CompleteStep)
			wf.POST("/:batchId/steps/:stepId/assign", h.AssignOwner)
			wf.POST("/:batchId/steps/:stepId/due-date", h.SetDueDate)
			wf.GET("/:batchId/steps/:stepId/comments", h.StepComments)
			wf.POST("/:batchId/steps/:stepId/comments", h.AddStepComment)
			wf.POST("/:batchId/steps/:stepId/tasks", h.AddTask)
			wf.POST("/:batchId/steps/:stepId/tasks/:taskId/toggle", h.ToggleTask)
		}
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
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
