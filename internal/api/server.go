package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/symptom-dx-server/internal/domain"
	"github.com/symptom-dx-server/internal/history"
	"github.com/symptom-dx-server/internal/middleware"
	"github.com/symptom-dx-server/internal/model"
	"github.com/symptom-dx-server/internal/service"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// ModelManager exposes the published model context and reloads it.
type ModelManager interface {
	Current() (*model.ModelContext, error)
	Reload(ctx context.Context) (*model.ModelContext, error)
}

// Dependencies are the collaborators the HTTP layer talks to. History and
// Cache may be nil.
type Dependencies struct {
	Service *service.DiagnosisService
	Models  ModelManager
	History history.Store
	Cache   *service.PredictionCache
	Logger  *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	router        *gin.Engine
	server        *http.Server
	logger        *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.Server.MaxUploadBytes

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestTimeout(cfg.Server.WriteTimeout))

	server := &Server{
		configManager: configManager,
		deps:          deps,
		router:        router,
		logger:        deps.Logger,
	}

	server.setupRoutes()

	return server
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	uploadLimit := middleware.RateLimit(middleware.NewUploadLimiter(
		s.configManager.GetServerConfig().UploadRateLimit,
		s.configManager.GetServerConfig().UploadBurst,
	))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)
		v1.POST("/upload", uploadLimit, s.handleUpload)
		v1.POST("/diagnose", uploadLimit, s.handleDiagnose)
		v1.POST("/predict", s.handlePredict)
		v1.GET("/symptoms", s.handleSymptoms)
		v1.GET("/diseases", s.handleDiseases)
		v1.GET("/diseases/:name", s.handleDisease)
		v1.GET("/history", s.handleListHistory)
		v1.GET("/history/export", s.handleExportHistory)
		v1.GET("/history/:id", s.handleGetHistory)
		v1.POST("/model/reload", s.handleReload)
	}
}

// writeError maps pipeline errors to HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := statusForCode(code)

	body := gin.H{
		"error":      err.Error(),
		"code":       code,
		"request_id": middleware.RequestID(c),
	}

	var de *domain.DiagnosisError
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &de):
		body["error"] = de.Message
		if de.Details != "" {
			body["details"] = de.Details
		}
	case errors.As(err, &ve):
		body["error"] = ve.Message
		body["field"] = ve.Field
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithFields(logrus.Fields{
			"request_id": middleware.RequestID(c),
			"code":       code,
			"error":      err.Error(),
		}).Error("Request failed")
		if status == http.StatusInternalServerError {
			body["error"] = "Internal server error"
		}
	}

	c.AbortWithStatusJSON(status, body)
}

func statusForCode(code string) int {
	switch code {
	case domain.ErrCodeExtractionFailed, domain.ErrCodeInvalidInput, domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
