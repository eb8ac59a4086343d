package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/tractstack-tracking/internal/presentation/delivery"
)

// DiagnosticsHandlers receive page delivery reports and expose the log
// stream and performance stats.
type DiagnosticsHandlers struct {
	broadcaster *logging.LogBroadcaster
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewDiagnosticsHandlers creates diagnostics handlers with injected dependencies
func NewDiagnosticsHandlers(broadcaster *logging.LogBroadcaster, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *DiagnosticsHandlers {
	return &DiagnosticsHandlers{broadcaster: broadcaster, logger: logger, perfTracker: perfTracker}
}

// DeliveryReport is what a fallback bootstrap posts once it reaches a
// terminal phase.
type DeliveryReport struct {
	RenderID string `json:"renderId"`
	Point    string `json:"point" binding:"required"`
	Phase    string `json:"phase" binding:"required"`
	Created  int    `json:"created"`
	Retries  int    `json:"retries"`
}

// ReportDelivery handles POST /api/v1/tracking/diagnostics
func (h *DiagnosticsHandlers) ReportDelivery(c *gin.Context) {
	var report DeliveryReport
	// Beacons may arrive as text/plain; the body is JSON either way.
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	phase, ok := delivery.ParsePhase(report.Phase)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown phase", "phase": report.Phase})
		return
	}

	marker := h.perfTracker.StartOperation("delivery_" + string(phase))
	marker.AddMetadata("point", report.Point)
	marker.SetSuccess(phase != delivery.PhaseDegraded)
	marker.Complete()

	log := h.logger.WithRender(logging.ChannelDelivery, report.RenderID)
	attrs := []any{"point", report.Point, "phase", phase, "created", report.Created, "retries", report.Retries}
	if phase == delivery.PhaseDegraded {
		log.Warn("Page finished without tracking library", attrs...)
	} else {
		log.Info("Page delivery reported", attrs...)
	}
	c.Status(http.StatusNoContent)
}

// StreamLogs handles the SSE connection for live log streaming.
func (h *DiagnosticsHandlers) StreamLogs(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Log broadcaster not available"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	filters := logging.AppliedFilters{
		Channel: logging.Channel(c.DefaultQuery("channel", "all")),
		Level:   parseLevel(c.DefaultQuery("level", "INFO")),
	}

	client := h.broadcaster.NewClient(filters)
	if err := h.broadcaster.RegisterClient(client); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	defer h.broadcaster.UnregisterClient(client)

	fmt.Fprintf(c.Writer, ": connection established\n\n")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-client.Channel:
			if !ok {
				return false
			}
			fmt.Fprintf(w, "data: %s\n\n", message)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// GetLogLevels handles GET /api/v1/diagnostics/logs/levels
func (h *DiagnosticsHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, h.logger.GetChannelLevels())
}

// SetLogLevel handles POST /api/v1/diagnostics/logs/levels
func (h *DiagnosticsHandlers) SetLogLevel(c *gin.Context) {
	var req struct {
		Channel string `json:"channel" binding:"required"`
		Level   string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.logger.SetChannelLevel(logging.Channel(req.Channel), parseLevel(req.Level)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "channel": req.Channel, "level": req.Level})
}

// GetPerformance handles GET /api/v1/diagnostics/performance
func (h *DiagnosticsHandlers) GetPerformance(c *gin.Context) {
	c.JSON(http.StatusOK, h.perfTracker.GetOverallStats())
}

func parseLevel(name string) slog.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
