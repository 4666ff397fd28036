// Package httpapi serves the revalidation webhook and a read-only JSON view
// of the content pipeline over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmgilman/go/errors"

	"github.com/leonardcser/folio-mcp/internal/content"
	"github.com/leonardcser/folio-mcp/internal/logger"
	"github.com/leonardcser/folio-mcp/internal/revalidate"
)

const shutdownTimeout = 5 * time.Second

// Stdout carries the MCP stream; keep gin's debug output off it.
func init() {
	gin.SetMode(gin.ReleaseMode)
}

// Server is the HTTP API.
type Server struct {
	content *content.Client
	rv      *revalidate.Handler
	router  *gin.Engine
}

// NewServer creates the server and registers its routes.
func NewServer(c *content.Client, rv *revalidate.Handler) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		content: c,
		rv:      rv,
		router:  router,
	}

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")
	{
		api.POST("/revalidate", s.handleRevalidate)
		api.GET("/articles", s.handleArticles)
		api.GET("/articles/:slug", s.handleArticle)
		api.GET("/repos", s.handleRepos)
		api.GET("/repos/:owner/:name", s.handleRepo)
		api.GET("/repos/:owner/:name/readme", s.handleReadme)
	}

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Infof("httpapi: listening on %s", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, errors.CodeNetwork, "http server on %s failed", addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("httpapi: %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// statusFor maps error codes to HTTP statuses.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeUnauthorized:
		return http.StatusUnauthorized
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("httpapi: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errors.ToJSON(err)})
}
