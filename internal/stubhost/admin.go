package stubhost

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/lvctl/internal/auth"
	"github.com/danmuck/lvctl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const component = "lvstub"

func (s *Server) newRouter() *gin.Engine {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetrics(component))
	r.Use(cors.New(cors.Config{
		AllowOrigins: s.cfg.CorsOrigins,
		AllowMethods: []string{"GET", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	s.registerRoutes(r)
	return r
}

// Router exposes the admin HTTP handler.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.started).String(),
			"component": component,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		ready := s.listening.Load()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":          ready,
			"addr":           s.Addr(),
			"active_clients": s.ActiveClients(),
			"served":         s.Served(),
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	guarded := r.Group("/")
	if s.cfg.AdminToken != "" {
		guarded.Use(auth.RequireToken(auth.StaticToken(s.cfg.AdminToken)))
	}
	guarded.GET("/handlers", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.handlers.List())
	})
	guarded.GET("/panels", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"panels": s.panels.Len()})
	})
	guarded.DELETE("/panels", func(c *gin.Context) {
		cleared := s.panels.Reset()
		log.Info().Int("cleared", cleared).Msg("stubhost panels reset")
		c.JSON(http.StatusOK, gin.H{"cleared": cleared})
	})
}

// ServeAdmin serves the admin router on addr until ctx is done.
func (s *Server) ServeAdmin(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("stubhost admin listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
