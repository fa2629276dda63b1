package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prasenjit/go-modulus/internal/generator"
	"github.com/prasenjit/go-modulus/internal/logging"
	"github.com/prasenjit/go-modulus/internal/openapi"
	"github.com/prasenjit/go-modulus/internal/resolver"
	"github.com/prasenjit/go-modulus/internal/service"
	"github.com/prasenjit/go-modulus/internal/stats"
	"github.com/prasenjit/go-modulus/internal/storage"
	"github.com/prasenjit/go-modulus/internal/tracing"
)

// Dependencies is everything the router serves. Tracing may be nil.
type Dependencies struct {
	Store      storage.Storage
	Registry   *service.Registry
	Engine     *resolver.Engine
	Generators []*generator.Generator
	Stats      *stats.Collector
	Tracing    *tracing.Service
	DocInfo    openapi.Info
	Logger     *zap.Logger
}

// Router handles HTTP routing
type Router struct {
	engine  *gin.Engine
	deps    Dependencies
	handler *Handler
}

// NewRouter mounts every loaded service and the admin API
func NewRouter(deps Dependencies) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:  gin.New(),
		deps:    deps,
		handler: NewHandler(deps),
	}

	r.engine.Use(gin.Recovery())
	r.engine.Use(corsMiddleware())
	r.engine.Use(logging.GinLogger(deps.Logger))

	r.setupRoutes()
	r.mountServices()

	return r
}

// setupRoutes configures the admin API
func (r *Router) setupRoutes() {
	api := r.engine.Group("/_api")
	{
		api.GET("/health", r.handler.HealthCheck)

		// Services
		api.GET("/services", r.handler.ListServices)
		api.GET("/services/:name", r.handler.GetService)
		api.GET("/load-errors", r.handler.ListLoadErrors)

		// Mappings
		api.GET("/mappings", r.handler.ListMappings)
		api.POST("/mappings", r.handler.CreateMapping)
		api.DELETE("/mappings", r.handler.ClearMappings)

		// Generators
		api.GET("/generators", r.handler.ListGenerators)
		api.POST("/generators/next", r.handler.NextGeneratorValues)

		// Statistics
		api.GET("/stats", r.handler.GetGlobalStats)
		api.GET("/stats/services/:name", r.handler.GetServiceStats)
		api.POST("/stats/reset", r.handler.ResetStats)

		// Tracing
		traces := api.Group("/traces", r.handler.requireTracing)
		traces.GET("", r.handler.ListTraces)
		traces.DELETE("", r.handler.ClearTraces)
		traces.GET("/:id", r.handler.GetTrace)
		if r.deps.Tracing != nil {
			// WebSocket for live tracing
			traces.GET("/stream", gin.WrapH(tracing.NewWebSocketHandler(r.deps.Tracing, r.deps.Logger)))
		}

		// OpenAPI export
		api.GET("/openapi.json", r.handler.GetOpenAPIJSON)
		api.GET("/openapi.yaml", r.handler.GetOpenAPIYAML)
	}
}

// mountServices gives every service its own route group. A service whose
// routes cannot be mounted is logged and left out.
func (r *Router) mountServices() {
	for _, e := range r.deps.Registry.Entries() {
		group := r.engine.Group(e.Descriptor.MountPath)
		if err := e.Mount(group, r.deps.Engine.Handler(e)); err != nil {
			r.deps.Logger.Error("service not mounted", zap.String("service", e.Descriptor.Name), zap.Error(err))
			continue
		}
		r.deps.Logger.Debug("service mounted", zap.String("service", e.Descriptor.Name), zap.String("mount", e.Descriptor.MountPath))
	}
}

// Handler returns the http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// corsMiddleware adds CORS headers and answers preflight requests.
// Plain OPTIONS requests still reach mocks that declare OPTIONS.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
