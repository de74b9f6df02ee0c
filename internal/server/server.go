package server

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"pravha/api/internal/config"
	"pravha/api/internal/handler"
	"pravha/api/internal/middleware"
	"pravha/api/internal/service"
)

// Server represents the HTTP server wiring config, stores and handlers.
type Server struct {
	router *gin.Engine
	config *config.Config
	db     *gorm.DB
	redis  *redis.Client
	nats   *nats.Conn

	shelterService *service.ShelterService
	alertService   *service.AlertService
	sosService     *service.SOSService
	statsService   *service.StatsService

	feedHub   *handler.FeedHub
	wsHandler *handler.WSHandler
}

// NewServer creates a new server instance. db, redisClient and natsConn may
// all be nil; the coordination core keeps working from memory alone.
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) *Server {
	return &Server{
		config: cfg,
		db:     db,
		redis:  redisClient,
		nats:   natsConn,
	}
}

// Setup initializes services, handlers and routes.
func (s *Server) Setup() {
	// Live feed hub first, so broadcasts have somewhere to land.
	s.feedHub = handler.NewFeedHub(s.nats)
	s.wsHandler = handler.NewWSHandler(s.feedHub)

	// Core services
	s.shelterService = service.NewShelterService(s.db)
	s.alertService = service.NewAlertService(s.db, s.redis, s.nats, s.config.Risk)
	s.alertService.SetExpiryPolicy(s.config.AlertExpirySpec, s.config.AlertTTL)
	s.sosService = service.NewSOSService(s.db, s.nats, s.shelterService, s.alertService, s.config.MaxMessageLen)
	s.statsService = service.NewStatsService(s.sosService, s.shelterService, s.alertService,
		service.NewDBUserCounter(s.db), s.redis, s.nats)
	s.statsService.SetRefreshSpec(s.config.StatsRefreshSpec)
	geocodeService := service.NewGeocodeService(s.config.GeocodeURL, s.config.GeocodeTimeout, s.config.GeocodeCacheTTL)
	reportService := service.NewReportService(s.sosService, s.shelterService)

	// Handlers
	sosHandler := handler.NewSOSHandler(s.sosService, geocodeService)
	shelterHandler := handler.NewShelterHandler(s.shelterService)
	alertHandler := handler.NewAlertHandler(s.alertService)
	statsHandler := handler.NewStatsHandler(s.statsService)
	reportHandler := handler.NewReportHandler(reportService)

	// Middleware
	auth := middleware.NewAuthMiddleware(s.config.JWTSecret)
	sosRateLimit := middleware.NewRateLimitMiddleware(s.redis, s.config.SOSRateLimit, s.config.SOSRateWindow)

	go s.feedHub.Run()
	log.Println("[Server] WebSocket hub started")

	s.router = gin.Default()

	// CORS middleware
	s.router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Public routes
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// WebSocket routes - public but can add auth middleware if needed
	s.router.GET("/ws/feed", s.wsHandler.HandleFeed)
	s.router.GET("/ws/stats", s.wsHandler.GetStats)

	// Protected routes
	api := s.router.Group("/api/v1")
	api.Use(auth.Handler())
	{
		// SOS
		api.POST("/sos", sosRateLimit.Handler(), sosHandler.Submit)
		api.GET("/sos/:id", sosHandler.Get)

		// Shelters
		api.GET("/shelters", shelterHandler.List)
		api.GET("/shelters/nearby", shelterHandler.Nearby)
		api.GET("/shelters/:id", shelterHandler.Get)
		api.POST("/shelters/:id/occupancy", shelterHandler.AdjustOccupancy)

		// Alerts
		api.GET("/alerts/active", alertHandler.Active)
		api.GET("/alerts/history", alertHandler.History)
		api.GET("/alerts/:id", alertHandler.Get)

		// Operator-only routes
		admin := api.Group("/admin")
		admin.Use(middleware.RequireOperator())
		{
			admin.GET("/sos-requests", sosHandler.List)
			admin.PUT("/sos-requests/:id", sosHandler.Update)

			admin.POST("/shelters", shelterHandler.Create)
			admin.PUT("/shelters/:id", shelterHandler.Update)
			admin.POST("/shelters/:id/maintenance", shelterHandler.SetMaintenance)

			admin.POST("/alerts", alertHandler.Create)
			admin.GET("/alerts/broadcasts", alertHandler.RecentBroadcasts)
			admin.POST("/alerts/:id/broadcast", alertHandler.Broadcast)
			admin.POST("/alerts/:id/resolve", alertHandler.Resolve)

			admin.GET("/stats", statsHandler.GetStats)
			admin.GET("/reports/sos", reportHandler.ExportSOS)
		}
	}
}

// Start hydrates the stores and launches the background jobs. Call after
// Setup.
func (s *Server) Start() error {
	ctx := context.Background()
	if err := s.shelterService.Load(ctx); err != nil {
		return err
	}
	if err := s.alertService.Load(ctx); err != nil {
		return err
	}
	if err := s.sosService.Load(ctx); err != nil {
		return err
	}

	if err := s.alertService.Start(); err != nil {
		return err
	}
	return s.statsService.Start()
}

// Run starts the HTTP server.
func (s *Server) Run(addr string) error {
	log.Printf("[Server] HTTP server listening on %s", addr)
	return s.router.Run(addr)
}

// GetRouter returns the gin router for testing.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Shutdown gracefully shuts down background jobs and the feed hub.
func (s *Server) Shutdown() {
	if s.feedHub != nil {
		s.feedHub.Stop()
		log.Println("[Server] WebSocket hub stopped")
	}
	if s.alertService != nil {
		s.alertService.Stop()
		log.Println("[Server] Alert expiry job stopped")
	}
	if s.statsService != nil {
		s.statsService.Stop()
		log.Println("[Server] Stats refresher stopped")
	}
}
