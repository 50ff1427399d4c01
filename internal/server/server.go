package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/relayview/internal/config"
	"github.com/nao1215/relayview/internal/database"
	"github.com/nao1215/relayview/internal/metrics"
	"github.com/nao1215/relayview/internal/model"
	"github.com/nao1215/relayview/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// Navigator runs interactive navigations. *pipeline.Controller satisfies it.
type Navigator interface {
	Navigate(ctx context.Context, raw string, opts pipeline.NavigateOptions) (*model.Navigation, error)
}

// HistoryLister lists recorded navigations. *database.HistoryDB satisfies it.
type HistoryLister interface {
	List(ctx context.Context, f database.Filter) ([]database.Entry, error)
}

// Server serves the viewer shell and the render API.
type Server struct {
	router    *gin.Engine
	cfg       *config.Config
	navigator Navigator
	history   HistoryLister
	metrics   *metrics.Metrics
	logger    *slog.Logger
	version   string
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables GET /api/history.
func WithHistory(h HistoryLister) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithMetrics enables request instrumentation and GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version shown in the shell.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// New creates a Server rendering through navigator with the settings of cfg.
func New(cfg *config.Config, navigator Navigator, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		navigator: navigator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.setupRouter()
	return s
}

// setupRouter builds the gin engine with middleware and routes.
// The gin mode is a process-wide setting and is left to the caller.
func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))
	if s.metrics != nil {
		router.Use(s.metrics.Middleware())
	}

	router.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	router.GET("/", s.handleShell)
	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")
	api.GET("/render", s.handleRender)
	api.GET("/history", s.handleHistory)

	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	return router
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on cfg.ListenAddress until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("viewer listening", "address", "http://"+s.cfg.ListenAddress)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down viewer")
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger logs every request at debug level.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request served",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}
