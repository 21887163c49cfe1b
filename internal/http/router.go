package http

import (
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.ngs.io/forecast-frames/internal/observability"
)

// RouterConfig controls middleware on the router.
type RouterConfig struct {
	// AllowedOrigins lists CORS origins. Empty allows all origins.
	AllowedOrigins []string
	// Metrics counts requests when set and enables GET /metrics.
	Metrics *observability.Metrics
}

// SetupRouter creates and configures the Gin router.
func SetupRouter(handler *Handler, cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	if cfg.Metrics != nil {
		router.Use(requestCounter(cfg.Metrics))
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.GET("/models", handler.GetModels)
	v1.GET("/sources", handler.GetSource)

	// Named map views.
	domains := v1.Group("/domains")
	domains.GET("", handler.GetDomains)
	domains.GET("/:name", handler.GetDomain)

	// Dataset inspection.
	v1.GET("/timeaxis", handler.GetTimeAxis)
	v1.GET("/sample", handler.GetSample)

	// Health check.
	router.GET("/health", handler.HealthCheck)

	return router
}

// requestCounter counts requests by matched route and status code.
func requestCounter(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
