package handlers

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/tractstack-tracking/internal/application/services"
	"github.com/AtRiskMedia/tractstack-tracking/internal/domain/attribution"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/tractstack-tracking/internal/presentation/delivery"
	"github.com/AtRiskMedia/tractstack-tracking/internal/presentation/http/middleware"
	"github.com/AtRiskMedia/tractstack-tracking/internal/presentation/templates"
)

const defaultSlug = "admision"

// PageHandlers render host pages through the insertion-point pipeline.
type PageHandlers struct {
	pipeline    *templates.Pipeline
	guarantor   *delivery.Guarantor
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewPageHandlers creates page handlers with injected dependencies
func NewPageHandlers(pipeline *templates.Pipeline, guarantor *delivery.Guarantor, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *PageHandlers {
	return &PageHandlers{pipeline: pipeline, guarantor: guarantor, logger: logger, perfTracker: perfTracker}
}

// GetPage handles GET / and GET /p/:slug. The "template" query selects the
// layout and "form" the form variant.
func (h *PageHandlers) GetPage(c *gin.Context) {
	marker := h.perfTracker.StartOperation("page_render")
	defer marker.Complete()

	slug := c.Param("slug")
	if slug == "" {
		slug = defaultSlug
	}
	layout := templates.ParseLayout(c.Query("template"))
	variant, ok := services.ParseFormVariant(c.DefaultQuery("form", string(services.FormStandard)))
	if !ok {
		variant = services.FormStandard
	}

	page := attribution.NewPage(middleware.RequestURL(c.Request), c.Request.Referer())
	render := h.pipeline.NewRender(page)
	marker.AddMetadata("renderId", render.ID)
	marker.AddMetadata("layout", string(layout))

	var buf bytes.Buffer
	err := templates.RenderPage(&buf, render, layout, templates.PageData{
		Title:   strings.ReplaceAll(slug, "-", " "),
		Slug:    slug,
		Variant: variant,
		Fields:  services.FormFields(variant),
	})
	if err != nil {
		h.logger.WithRender(logging.ChannelDelivery, render.ID).Error("Page render failed", "slug", slug, "error", err.Error())
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	state := h.guarantor.StateOf(render)
	h.logger.WithRender(logging.ChannelDelivery, render.ID).Debug("Page rendered",
		"slug", slug,
		"layout", layout,
		"phase", state.Phase(),
		"fallbackPoints", state.FallbackPoints())

	marker.SetSuccess(true)
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
