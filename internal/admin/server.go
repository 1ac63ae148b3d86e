// Package admin serves the bot's health, readiness and metrics surface.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/ryverlive/internal/auth"
	"github.com/danmuck/ryverlive/internal/live"
	"github.com/danmuck/ryverlive/internal/observability"
	"github.com/danmuck/ryverlive/internal/protocol/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// SessionStatus is the read-only view of a live session the admin routes
// report on.
type SessionStatus interface {
	ID() string
	State() live.State
	PendingCalls() []session.PendingCall
}

type Server struct {
	Name    string
	Addr    string
	Started time.Time

	status SessionStatus
	router *gin.Engine
	guard  gin.HandlerFunc
}

// New builds the admin router. A non-empty token guards /pending and
// /metrics with a bearer token; /health and /ready stay open for health checks.
func New(name, addr string, corsOrigins []string, token string, status SessionStatus) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Name:    name,
		Addr:    addr,
		Started: time.Now(),
		status:  status,
		router:  r,
		guard:   func(c *gin.Context) { c.Next() },
	}
	if token != "" {
		s.guard = requireToken(auth.StaticToken{Token: token})
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Started).String(),
			"bot":     s.Name,
			"session": s.status.ID(),
			"state":   s.status.State().String(),
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		state := s.status.State()
		code := http.StatusOK
		if state != live.StateConnected {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"ready": state == live.StateConnected,
			"state": state.String(),
			"bot":   s.Name,
		})
	})

	s.router.GET("/pending", s.guard, func(c *gin.Context) {
		pending := s.status.PendingCalls()
		c.JSON(http.StatusOK, gin.H{
			"count":   len(pending),
			"pending": pending,
		})
	})

	s.router.GET("/metrics", s.guard, gin.WrapH(promhttp.Handler()))
}

func requireToken(v auth.StaticToken) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := v.Validate(auth.BearerToken(c.Request)); err != nil {
			c.Header("WWW-Authenticate", `Bearer realm="admin"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

// Serve listens on Addr until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("bot", s.Name).Str("addr", s.Addr).Msg("admin server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
