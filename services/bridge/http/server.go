package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/chongyong/aquaview/internal/hub"
	"github.com/chongyong/aquaview/services/bridge/config"
	"github.com/chongyong/aquaview/services/bridge/monitor"
)

// Server bundles router and dependencies for the bridge HTTP/WS API.
type Server struct {
	cfg     config.Config
	mon     *monitor.Monitor
	hub     *hub.Hub
	log     *zap.SugaredLogger
	engine  *gin.Engine
	upgrade websocket.Upgrader
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, mon *monitor.Monitor, h *hub.Hub, log *zap.SugaredLogger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	server := &Server{
		cfg: cfg,
		mon: mon,
		hub: h,
		log: log,
		upgrade: websocket.Upgrader{
			// The dashboard may be served from anywhere; access control is
			// handled upstream, like the CORS policy below.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		engine: engine,
	}
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

	s.engine.GET("/", s.handleStatus)
	s.engine.GET("/history", s.handleHistory)
	s.engine.GET("/ws", s.handleWebsocket)
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

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "running",
		"service":            "water quality bridge",
		"mqtt_broker":        s.cfg.BrokerAddr,
		"mqtt_topic":         s.cfg.Topic,
		"mqtt_connected":     s.mon.BrokerConnected(),
		"active_connections": s.hub.Count(),
		"history_size":       len(s.mon.History()),
		"history_limit":      s.mon.Limit(),
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	history := s.mon.History()
	c.JSON(http.StatusOK, gin.H{
		"data":  history,
		"count": len(history),
		"limit": s.mon.Limit(),
	})
}

// handleWebsocket upgrades the connection, replays current state and keeps
// reading (for keep-alives) until the client goes away.
func (s *Server) handleWebsocket(c *gin.Context) {
	conn, err := s.upgrade.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "error", err)
		return
	}

	client := s.hub.Add(conn)
	defer s.hub.Remove(client)

	s.mon.Greet(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
