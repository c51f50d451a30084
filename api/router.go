package api

import (
	"net/http"

	"factoryops/api/health"
	"factoryops/api/intent"
	"factoryops/api/middleware"
	"factoryops/config"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// Router Route configuration
type Router struct {
	engine           *gin.Engine
	config           *config.Config
	healthController *health.Controller
	intentController *intent.Controller
	metrics          http.Handler
}

// NewRouter Create route configuration. metrics may be nil.
func NewRouter(
	cfg *config.Config,
	healthController *health.Controller,
	intentController *intent.Controller,
	metrics http.Handler,
) *Router {
	// Set Gin mode based on environment
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// decimal quantities in intent context must not pass through float64
	binding.EnableDecoderUseNumber = true

	engine := gin.New()

	// Add middleware (order is important)
	engine.Use(middleware.RequestIDMiddleware())                      // 1. Generate request ID first
	engine.Use(middleware.RecoveryMiddleware())                       // 2. Recovery middleware
	engine.Use(middleware.LoggingMiddleware())                        // 3. Logging middleware
	engine.Use(middleware.CORSMiddleware(&cfg.CORS))                  // 4. CORS
	engine.Use(middleware.RateLimitMiddleware(&cfg.Server.RateLimit)) // 5. Rate limiting

	return &Router{
		engine:           engine,
		config:           cfg,
		healthController: healthController,
		intentController: intentController,
		metrics:          metrics,
	}
}

// SetupRoutes Set up all routes
func (r *Router) SetupRoutes() {
	apiGroup := r.engine.Group("/api/v1")
	{
		r.healthController.RegisterRoutes(apiGroup)
		r.intentController.RegisterRoutes(apiGroup, middleware.ActorMiddleware())
	}

	if r.metrics != nil && r.config.Metrics.Enabled {
		r.engine.GET(r.config.Metrics.Path, gin.WrapH(r.metrics))
	}

	r.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    r.config.App.Name,
			"version": r.config.App.Version,
			"env":     r.config.App.Env,
			"intents": "/api/v1/intents/categories",
			"health":  "/api/v1/health",
		})
	})
}

// GetEngine Get Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
