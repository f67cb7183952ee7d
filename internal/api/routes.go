package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up the API routes
func SetupRoutes(handler *Handler) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(RequestLogger(handler.logger))

	// Health check
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", handler.Metrics)

	// Rendered charts
	if handler.plotsDir != "" {
		router.Static("/plots", handler.plotsDir)
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/series", handler.ListSeries)

		repos := v1.Group("/repos/:owner/:name")
		{
			repos.GET("/series/:metric", handler.GetSeries)
			repos.GET("/summary/:metric", handler.GetSummary)
			repos.GET("/popularity", handler.GetPopularity)
		}
	}

	return router
}
