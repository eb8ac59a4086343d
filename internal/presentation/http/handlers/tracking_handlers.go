// Package handlers provides HTTP handlers for the tracking API.
package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/tractstack-tracking/internal/application/services"
	"github.com/AtRiskMedia/tractstack-tracking/internal/domain/attribution"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/tractstack-tracking/internal/presentation/delivery"
	"github.com/AtRiskMedia/tractstack-tracking/internal/presentation/http/middleware"
)

// TrackingHandlers serves the library script and the attribution API.
type TrackingHandlers struct {
	captureService *services.CaptureService
	guarantor      *delivery.Guarantor
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewTrackingHandlers creates tracking handlers with injected dependencies
func NewTrackingHandlers(captureService *services.CaptureService, guarantor *delivery.Guarantor, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *TrackingHandlers {
	return &TrackingHandlers{
		captureService: captureService,
		guarantor:      guarantor,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

// GetLibrary handles GET /tracking-manager.js. Capture runs here: the
// response carries the Set-Cookie headers and a script defining the entry
// point with the snapshot inlined.
func (h *TrackingHandlers) GetLibrary(c *gin.Context) {
	marker := h.perfTracker.StartOperation("library_request")
	defer marker.Complete()

	scripts := h.guarantor.Scripts()
	if !scripts.LibraryAvailable() {
		marker.SetSuccess(false)
		c.JSON(http.StatusNotFound, gin.H{"error": "tracking library not available"})
		return
	}

	page := middleware.Page(c)
	snap := h.captureService.CaptureSnapshot(page, middleware.Store(c))

	var buf bytes.Buffer
	if err := scripts.WriteLibrary(&buf, h.guarantor.LibraryData(snap)); err != nil {
		h.logger.Delivery().Error("Failed to render tracking library", "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	marker.AddMetadata("resolved", len(snap))
	marker.SetSuccess(true)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", buf.Bytes())
}

// GetParams handles GET /api/v1/tracking/params
func (h *TrackingHandlers) GetParams(c *gin.Context) {
	marker := h.perfTracker.StartOperation("get_params")
	defer marker.Complete()

	snap := h.captureService.CaptureSnapshot(middleware.Page(c), middleware.Store(c))

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, snap.Strings())
}

// GetParam handles GET /api/v1/tracking/params/:name
func (h *TrackingHandlers) GetParam(c *gin.Context) {
	marker := h.perfTracker.StartOperation("get_param")
	defer marker.Complete()

	name := c.Param("name")
	key, ok := attribution.ParseKey(name)
	if !ok {
		marker.SetSuccess(false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tracking parameter", "name": name})
		return
	}

	value, _ := h.captureService.GetValue(middleware.Page(c), middleware.Store(c), key)

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{"name": name, "value": value})
}

// ClearTracking handles DELETE /api/v1/tracking
func (h *TrackingHandlers) ClearTracking(c *gin.Context) {
	marker := h.perfTracker.StartOperation("clear_tracking")
	defer marker.Complete()

	h.captureService.ClearAll(middleware.Store(c))

	marker.SetSuccess(true)
	c.Status(http.StatusNoContent)
}
