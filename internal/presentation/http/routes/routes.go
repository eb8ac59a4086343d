// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/tractstack-tracking/internal/application/container"
	"github.com/AtRiskMedia/tractstack-tracking/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/tractstack-tracking/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(container.Logger))
	r.Use(middleware.CORSMiddleware(container.Config.AllowedOrigins))

	attribution := middleware.Attribution(container.Config.Tracking, container.Logger)

	// Initialize handlers
	trackingHandlers := handlers.NewTrackingHandlers(container.CaptureService, container.Guarantor, container.Logger, container.PerfTracker)
	formHandlers := handlers.NewFormHandlers(container.FormBridgeService, container.Logger, container.PerfTracker)
	diagnosticsHandlers := handlers.NewDiagnosticsHandlers(container.LogBroadcaster, container.Logger, container.PerfTracker)
	pageHandlers := handlers.NewPageHandlers(container.Pipeline, container.Guarantor, container.Logger, container.PerfTracker)

	// Host pages rendered through the insertion-point pipeline
	r.GET("/", pageHandlers.GetPage)
	r.GET("/p/:slug", pageHandlers.GetPage)

	// Capture happens on the library request; its response carries the cookies
	r.GET(container.Config.Tracking.LibraryPath, attribution, trackingHandlers.GetLibrary)

	api := r.Group("/api/v1")
	{
		trackingAPI := api.Group("/tracking", attribution)
		{
			trackingAPI.GET("/params", trackingHandlers.GetParams)
			trackingAPI.GET("/params/:name", trackingHandlers.GetParam)
			trackingAPI.DELETE("", trackingHandlers.ClearTracking)
		}
		api.POST("/tracking/diagnostics", diagnosticsHandlers.ReportDelivery)

		api.POST("/forms/:variant", attribution, formHandlers.CollectForm)

		diagnosticsAPI := api.Group("/diagnostics")
		{
			diagnosticsAPI.GET("/logs", diagnosticsHandlers.StreamLogs)
			diagnosticsAPI.GET("/logs/levels", diagnosticsHandlers.GetLogLevels)
			diagnosticsAPI.POST("/logs/levels", diagnosticsHandlers.SetLogLevel)
			diagnosticsAPI.GET("/performance", diagnosticsHandlers.GetPerformance)
		}
	}

	return r
}
