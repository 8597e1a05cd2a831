// Package api exposes the webhook ingress and health endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/chilltask/internal/secrets"
	"github.com/chilltask/internal/store"
)

// Queue is the slice of the job queue the handlers enqueue into.
type Queue interface {
	EnqueueArchiveEvent(ctx context.Context, eventID string) error
	EnqueueChannelSync(ctx context.Context, channelID string) error
}

// EventStore persists raw inbound events for asynchronous processing.
type EventStore interface {
	InsertEvent(ctx context.Context, ev store.InboundEvent) error
	ListActive(ctx context.Context) ([]store.ChannelMapping, error)
}

// Server represents the API server.
type Server struct {
	echo *echo.Echo
	port int
}

// Deps carries the services the handlers need.
type Deps struct {
	Events       EventStore
	Queue        Queue
	SlackSecret  *secrets.Cache
	GitHubSecret *secrets.Cache
	EventTTL     time.Duration
	now          func() time.Time
}

// NewServer creates a new API server.
func NewServer(port int, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	if deps.now == nil {
		deps.now = time.Now
	}

	server := &Server{echo: e, port: port}
	server.setupRoutes(deps)
	return server
}

// setupRoutes configures all API endpoints.
func (s *Server) setupRoutes(deps Deps) {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	h := &webhookHandler{deps: deps}
	s.echo.POST("/webhooks/slack", h.handleSlack)
	s.echo.POST("/webhooks/github", h.handleGitHub)
}

// Start begins serving and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
