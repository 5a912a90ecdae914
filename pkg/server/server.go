// Package server exposes the tracker over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskpilot/pkg/metrics"
	"github.com/harrisonrobin/taskpilot/pkg/tracker"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	svc      *tracker.Service
	gatherer prometheus.Gatherer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	router   *gin.Engine
}

// Mode returns the gin mode for a logging level: debug logging keeps gin's
// route dump and request warnings, anything else runs in release mode.
func Mode(level string) string {
	if strings.EqualFold(strings.TrimSpace(level), "debug") {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

// New wires the routes. gatherer backs /metrics; m may be nil.
func New(svc *tracker.Service, gatherer prometheus.Gatherer, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	registerValidations()

	s := &Server{svc: svc, gatherer: gatherer, metrics: m, logger: logger}
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	r.GET("/health", s.handleHealth)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	v1.POST("/analyze", s.handleAnalyze)
	v1.POST("/tasks", s.handleCreate)
	v1.GET("/tasks", s.handleList)
	v1.GET("/tasks/:id", s.handleGet)
	v1.PUT("/tasks/:id/status", s.handleStatus)
	v1.PUT("/tasks/:id/progress", s.handleProgress)
	v1.POST("/tasks/:id/time", s.handleLogTime)
	v1.GET("/analytics", s.handleAnalytics)
	v1.GET("/export.csv", s.handleExport)
	v1.POST("/import", s.handleImport)

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	<-errCh
	return nil
}

// observe logs each request and counts it by route template.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := c.Writer.Status()
		if s.metrics != nil {
			s.metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(code)).Inc()
		}
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", code),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
