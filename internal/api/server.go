package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/thyroid-risk-assessor/internal/domain"
	"github.com/thyroid-risk-assessor/internal/feedback"
	"github.com/thyroid-risk-assessor/internal/intake"
	"github.com/thyroid-risk-assessor/internal/middleware"
)

// Dependencies are the collaborators behind the HTTP handlers.
type Dependencies struct {
	Assessor domain.Assessor
	Parser   *intake.Parser
	Schema   domain.Schema
	// Feedback may be nil; feedback routes then answer 503.
	Feedback feedback.Store
	Logger   *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	config  domain.ServerConfig
	deps    Dependencies
	logger  *logrus.Logger
	router  *gin.Engine
	server  *http.Server
	started time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(cfg domain.ServerConfig, deps Dependencies) (*Server, error) {
	if deps.Assessor == nil {
		return nil, errors.New("assessor is required")
	}
	if deps.Parser == nil {
		deps.Parser = intake.NewParser(intake.Options{ApplyDefaults: true})
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}

	router := gin.New()
	router.Use(
		middleware.Recovery(logger),
		middleware.CorrelationID(),
		middleware.AuditLogger(logger),
		middleware.SecurityHeaders(),
		cors.New(corsConfig(cfg.AllowedOrigins)),
		middleware.BodyLimit(cfg.MaxBodyBytes),
		middleware.RequestTimeout(cfg.WriteTimeout),
	)

	server := &Server{
		config:  cfg,
		deps:    deps,
		logger:  logger,
		router:  router,
		started: time.Now(),
	}

	server.setupRoutes()

	return server, nil
}

func corsConfig(origins []string) cors.Config {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.CorrelationHeader},
		ExposeHeaders: []string{middleware.CorrelationHeader},
		MaxAge:        12 * time.Hour,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.config.TLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.WithFields(logrus.Fields{
		"addr": addr,
		"tls":  s.config.TLSEnabled,
	}).Info("HTTP server listening")

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/schema", s.handleSchema)
		v1.POST("/assess", s.handleAssess)
		v1.POST("/feedback", s.handleSubmitFeedback)
		v1.GET("/feedback", s.handleListFeedback)
		v1.GET("/feedback/export", s.handleExportFeedback)
	}
}
