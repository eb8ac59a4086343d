package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/tractstack-tracking/internal/application/services"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/tractstack-tracking/internal/presentation/http/middleware"
)

// FormHandlers exposes the consumer bridge over HTTP.
type FormHandlers struct {
	bridge      *services.FormBridgeService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewFormHandlers creates form handlers with injected dependencies
func NewFormHandlers(bridge *services.FormBridgeService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *FormHandlers {
	return &FormHandlers{bridge: bridge, logger: logger, perfTracker: perfTracker}
}

// CollectForm handles POST /api/v1/forms/:variant. The body is a form post
// or a flat JSON object keyed by element id. A body that cannot be read
// still yields the attribution values.
func (h *FormHandlers) CollectForm(c *gin.Context) {
	marker := h.perfTracker.StartOperation("collect_form")
	defer marker.Complete()

	variant, ok := services.ParseFormVariant(c.Param("variant"))
	if !ok {
		marker.SetSuccess(false)
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown form variant", "variant": c.Param("variant")})
		return
	}
	marker.AddMetadata("variant", string(variant))

	var accessor services.FormAccessor
	values, err := h.readForm(c)
	if err != nil {
		h.logger.Bridge().Warn("Form body unreadable", "variant", variant, "error", err.Error())
	} else {
		accessor = services.ValuesAccessor(values)
	}

	out := h.bridge.Collect(variant, middleware.Page(c), middleware.Store(c), accessor)

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, out)
}

func (h *FormHandlers) readForm(c *gin.Context) (url.Values, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, err
		}
		values := make(url.Values, len(body))
		for k, v := range body {
			values.Set(k, v)
		}
		return values, nil
	}
	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	return c.Request.PostForm, nil
}
