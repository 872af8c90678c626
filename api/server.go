package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog/log"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/config"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/engine"
)

// Server is the HTTP server for the API
type Server struct {
	cfg        config.Config
	router     *gin.Engine
	httpServer *http.Server
	engine     *engine.Engine
	nrApp      *newrelic.Application
}

// NewServer creates a new API server. nrApp may be nil.
func NewServer(cfg config.Config, eng *engine.Engine, nrApp *newrelic.Application) *Server {
	server := &Server{
		cfg:    cfg,
		router: gin.New(),
		engine: eng,
		nrApp:  nrApp,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware adds middleware to the router
func (s *Server) setupMiddleware() {
	s.router.Use(RequestIDMiddleware())

	if s.cfg.Server.CorsEnabled {
		s.router.Use(CORSMiddleware(s.cfg.Server.CorsOrigins))
	}

	s.router.Use(gin.Recovery())

	if s.nrApp != nil {
		s.router.Use(TracingMiddleware(s.nrApp))
	}

	s.router.Use(LoggingMiddleware())
}

// setupRoutes defines the API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	v1 := s.router.Group("/api/v1")

	v1.POST("/allocations", s.addDailyAllocation)
	v1.POST("/pickups", s.recordPickup)

	partnerRoutes := v1.Group("/partners")
	{
		partnerRoutes.PUT("/:id", s.savePartner)
		partnerRoutes.GET("/:id/allocation", s.getEffectiveAllocation)
		partnerRoutes.GET("/:id/ledger", s.getDayLedger)
		partnerRoutes.GET("/:id/audit", s.auditDay)
		partnerRoutes.PUT("/:id/assignments", s.assignCustomers)
		partnerRoutes.PATCH("/:id/deliveries/status", s.updateDeliveryStatusByKey)
	}

	v1.PUT("/customers/:id", s.saveCustomer)

	deliveryRoutes := v1.Group("/deliveries")
	{
		deliveryRoutes.GET("", s.listDeliveries)
		deliveryRoutes.PATCH("/:id/status", s.updateDeliveryStatus)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Address,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.Timeout,
		WriteTimeout: s.cfg.Server.Timeout,
	}

	log.Info().Msgf("HTTP server starting on %s", s.cfg.Server.Address)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
