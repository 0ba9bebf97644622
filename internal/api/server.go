// Package api exposes the engine state, trade journal and event stream
// over HTTP and WebSocket.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"options-trading-engine/internal/auth"
	"options-trading-engine/internal/events"
	"options-trading-engine/internal/fusion"
	"options-trading-engine/internal/logging"
	"options-trading-engine/internal/market"
	"options-trading-engine/internal/orchestrator"
	"options-trading-engine/internal/tradelog"
)

// EngineAPI is the orchestrator surface the handlers read from
type EngineAPI interface {
	LatestReport(index market.Index) *orchestrator.Report
	LatestDecision(index market.Index) *fusion.Decision
	Indices() []market.Index
}

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Port           int
	AllowedOrigins []string
	ProductionMode bool
}

// Server is the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig
	engine     EngineAPI
	journal    *tradelog.Journal
	authMgr    *auth.Manager
	bus        *events.Bus
	hub        *WSHub
	logger     *logging.Logger
}

// NewServer wires the router, middleware and WebSocket hub
func NewServer(config ServerConfig, engine EngineAPI, journal *tradelog.Journal,
	authMgr *auth.Manager, bus *events.Bus) *Server {

	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) == 1 && config.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = config.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:  router,
		config:  config,
		engine:  engine,
		journal: journal,
		authMgr: authMgr,
		bus:     bus,
		hub:     NewWSHub(bus),
		logger:  logging.WithComponent("api"),
	}

	server.setupRoutes()
	go server.hub.Run()

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	s.router.GET("/api/auth/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"auth_enabled": s.authMgr.Enabled()})
	})
	s.router.POST("/api/auth/login", s.handleLogin)

	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	api.Use(auth.Middleware(s.authMgr))
	{
		api.GET("/indices", s.handleIndices)
		api.GET("/analysis/:index", s.handleAnalysis)
		api.GET("/decision/:index", s.handleDecision)
		api.GET("/strategies/:index", s.handleStrategies)

		api.GET("/trades", s.handleTrades)
		api.GET("/trades/:id", s.handleTrade)
		api.POST("/trades/:id/close", s.handleCloseTrade)

		api.GET("/performance", s.handlePerformance)
		api.GET("/performance/report", s.handlePerformanceReport)
		api.GET("/performance/patterns", s.handlePatternEffectiveness)
		api.GET("/performance/psychology", s.handlePsychologyCorrelation)
		api.GET("/stats", s.handleStats)
	}
}

// Start blocks serving HTTP until the listener fails or shuts down
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("HTTP server listening", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
