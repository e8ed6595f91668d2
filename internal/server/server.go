// Package server exposes the tracker Service over HTTP and pushes status
// change notifications to websocket clients.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pders01/repowatch/internal/logging"
	"github.com/pders01/repowatch/internal/tracker"
)

// Server wires the gin router to a tracker Service
type Server struct {
	svc    *tracker.Service
	logger *slog.Logger
	router *gin.Engine
	hub    *hub
	subID  string
}

// New creates a Server and subscribes its websocket hub to svc
func New(svc *tracker.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Server{
		svc:    svc,
		logger: logger,
		hub:    newHub(logger),
	}
	s.subID = svc.Subscribe(s.hub.publish)
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.POST("/repository/detect", s.detectRepository)
		api.POST("/repository/init", s.initRepository)

		api.GET("/status", s.getStatus)
		api.POST("/status/refresh", s.refreshStatus)
		api.POST("/files/status", s.getFileStatuses)

		api.POST("/stage", s.stageFile)
		api.POST("/unstage", s.unstageFile)
		api.POST("/stage-all", s.stageAll)
		api.POST("/unstage-all", s.unstageAll)
		api.POST("/discard", s.discardChanges)
		api.POST("/commit", s.commit)

		api.GET("/history", s.getHistory)
		api.GET("/diff", s.getDiff)
		api.POST("/diffs", s.getDiffs)

		api.GET("/events", s.events)
	}

	return r
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown
	s.hub.close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Close unsubscribes from the Service and disconnects websocket clients
func (s *Server) Close() {
	s.svc.Unsubscribe(s.subID)
	s.hub.close()
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
