// Package debug exposes a local diagnostics endpoint for the client:
// liveness, Prometheus metrics, and a snapshot of session state. It is
// off by default and binds only when DEBUG_ADDR is configured.
package debug

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/howlhq/go-howl-client/internal/auth"
	"github.com/howlhq/go-howl-client/internal/config"
)

// Server is the diagnostics HTTP server.
type Server struct {
	srv *http.Server
}

// New builds the server. The auth controller supplies the session
// snapshot; pass nil to omit it.
func New(cfg config.Config, ctrl *auth.Controller) *Server {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/session", func(c *gin.Context) {
		if ctrl == nil {
			c.JSON(http.StatusNotFound, gin.H{"detail": "no session controller"})
			return
		}
		body := gin.H{"status": ctrl.Status().String()}
		if p, ok := ctrl.Profile(); ok {
			body["user_id"] = p.ID
			body["email"] = p.Email
			body["onboarding_completed"] = p.OnboardingCompleted
		}
		c.JSON(http.StatusOK, body)
	})

	return &Server{
		srv: &http.Server{
			Addr:              cfg.DebugAddr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the underlying handler, used by tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("debug server listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("debug server stopped")
		}
	}()
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
