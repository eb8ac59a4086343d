// Package container provides dependency injection for all singleton services
package container

import (
	"github.com/AtRiskMedia/tractstack-tracking/internal/application/services"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/formatting"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/tractstack-tracking/internal/presentation/delivery"
	"github.com/AtRiskMedia/tractstack-tracking/internal/presentation/templates"
	"github.com/AtRiskMedia/tractstack-tracking/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	Config *config.Config

	// Application Services (stateless singletons)
	CaptureService    *services.CaptureService
	FormBridgeService *services.FormBridgeService

	// Delivery
	Pipeline  *templates.Pipeline
	Guarantor *delivery.Guarantor

	// Infrastructure Dependencies
	Logger         *logging.ChanneledLogger
	PerfTracker    *performance.Tracker
	LogBroadcaster *logging.LogBroadcaster
}

// NewContainer creates and wires all singleton services. The guarantor is
// registered on the pipeline here, once per process.
func NewContainer(cfg *config.Config, logger *logging.ChanneledLogger, perfTracker *performance.Tracker, broadcaster *logging.LogBroadcaster) *Container {
	capture := services.NewCaptureService(cfg.Tracking.CookieTTL, logger)
	phone := formatting.NewPhoneFormatter(cfg.Tracking.PhoneRegion)

	pipeline := templates.NewPipeline()
	guarantor := delivery.NewGuarantor(cfg.Tracking, delivery.DefaultLoadPolicy(), delivery.DefaultScripts(), logger)
	guarantor.Register(pipeline)

	return &Container{
		Config: cfg,

		CaptureService:    capture,
		FormBridgeService: services.NewFormBridgeService(capture, phone, logger),

		Pipeline:  pipeline,
		Guarantor: guarantor,

		Logger:         logger,
		PerfTracker:    perfTracker,
		LogBroadcaster: broadcaster,
	}
}
