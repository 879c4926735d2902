package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chongyong/aquaview/internal/feed"
	"github.com/chongyong/aquaview/internal/quality"
	"github.com/chongyong/aquaview/services/dashboard/config"
)

// Server exposes the feed controller's state as JSON for the presentation
// layer. The quality assessment is recomputed from the latest reading on
// every request; it has no storage of its own.
type Server struct {
	cfg        config.Config
	controller *feed.Controller
	engine     *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, controller *feed.Controller) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	server := &Server{cfg: cfg, controller: controller, engine: engine}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.engine.GET("/api/live", s.handleLive)
	s.engine.GET("/api/quality", s.handleQuality)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) handleLive(c *gin.Context) {
	snap := s.controller.Snapshot()

	var assessment *quality.Assessment
	if snap.Latest != nil {
		a := quality.Analyze(*snap.Latest)
		assessment = &a
	}

	c.JSON(http.StatusOK, gin.H{
		"state":            snap.State,
		"broker_connected": snap.BrokerConnected,
		"latest":           snap.Latest,
		"assessment":       assessment,
		"series":           snap.Series,
		"count":            len(snap.Series),
	})
}

func (s *Server) handleQuality(c *gin.Context) {
	snap := s.controller.Snapshot()
	if snap.Latest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reading available yet"})
		return
	}

	assessment := quality.Analyze(*snap.Latest)
	c.JSON(http.StatusOK, gin.H{
		"timestamp":  snap.Latest.CanonicalTimestamp(),
		"location":   snap.Latest.Location,
		"assessment": assessment,
	})
}
