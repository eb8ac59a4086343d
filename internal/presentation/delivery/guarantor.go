package delivery

import (
	"html/template"
	"net/url"

	"github.com/AtRiskMedia/tractstack-tracking/internal/application/services"
	"github.com/AtRiskMedia/tractstack-tracking/internal/domain/attribution"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-tracking/internal/presentation/templates"
	"github.com/AtRiskMedia/tractstack-tracking/pkg/config"
)

const renderStateKey = "delivery.state"

type hookRegistration struct {
	point    templates.InsertionPoint
	priority int
}

var (
	staticHooks = []hookRegistration{
		{templates.PointHead, 1},
		{templates.PointFooter, 1},
		{templates.PointEnqueueScripts, 1},
		{templates.PointPrintScripts, 1},
	}
	fallbackHooks = []hookRegistration{
		{templates.PointHead, 999},
		{templates.PointFooter, 9999},
		{templates.PointPrintFooterScripts, 9999},
		{templates.PointHead, 99999},
		{templates.PointPrintScripts, 999},
	}
	formHooks = []hookRegistration{
		{templates.PointFooter, 999},
		{templates.PointPrintFooterScripts, 999},
	}
)

// formFunctions maps the global page function to its form variant.
var formFunctions = map[string]services.FormVariant{
	"GetValue":   services.FormStandard,
	"GetValueBT": services.FormBT,
}

// Guarantor registers the delivery layers on a render pipeline.
type Guarantor struct {
	cfg     config.TrackingConfig
	policy  LoadPolicy
	scripts *Scripts
	logger  *logging.ChanneledLogger
}

// NewGuarantor creates a guarantor rendering with scripts.
func NewGuarantor(cfg config.TrackingConfig, policy LoadPolicy, scripts *Scripts, logger *logging.ChanneledLogger) *Guarantor {
	return &Guarantor{cfg: cfg, policy: policy, scripts: scripts, logger: logger}
}

// Register adds the static, fallback and form function hooks to p.
func (g *Guarantor) Register(p *templates.Pipeline) {
	for _, h := range staticHooks {
		p.Register(h.point, h.priority, "tracking-manager:static", g.staticHook)
	}
	for _, h := range fallbackHooks {
		p.Register(h.point, h.priority, "tracking-manager:fallback", g.fallbackHook)
	}
	for _, h := range formHooks {
		p.Register(h.point, h.priority, "tracking-manager:forms", g.formsHook)
	}
}

// StateOf returns the delivery state of r.
func (g *Guarantor) StateOf(r *templates.Render) *RenderState {
	return r.State(renderStateKey, func() any { return NewRenderState() }).(*RenderState)
}

// Scripts returns the script renderer.
func (g *Guarantor) Scripts() *Scripts {
	return g.scripts
}

// LibraryData builds the library script payload for snap.
func (g *Guarantor) LibraryData(snap attribution.Snapshot) LibraryData {
	persisted := attribution.PersistedKeys()
	names := make([]string, len(persisted))
	for i, k := range persisted {
		names[i] = string(k)
	}
	return LibraryData{
		Version:       g.cfg.LibraryVersion,
		EntryPoint:    g.cfg.EntryPoint,
		CookiePrefix:  g.cfg.CookiePrefix,
		PersistedKeys: names,
		Snapshot:      snap.Without(attribution.CurrentURL).Strings(),
	}
}

func (g *Guarantor) staticHook(r *templates.Render, point templates.InsertionPoint) template.HTML {
	state := g.StateOf(r)
	log := g.logger.WithRender(logging.ChannelDelivery, r.ID)

	if !g.scripts.LibraryAvailable() {
		if !state.MarkMissingNotice() {
			return ""
		}
		log.Error("Tracking library is not available, emitting console notice", "point", point)
		notice, err := g.scripts.MissingNotice()
		if err != nil {
			log.Error("Failed to render missing library notice", "error", err.Error())
			return ""
		}
		return notice
	}

	if !state.MarkStatic() {
		return ""
	}

	q := url.Values{}
	q.Set("ver", g.cfg.LibraryVersion)
	if r.Page.URL != "" {
		q.Set("u", r.Page.URL)
	}
	if r.Page.Referrer != "" {
		q.Set("r", r.Page.Referrer)
	}
	tag, err := g.scripts.StaticTag(g.cfg.LibraryPath + "?" + q.Encode())
	if err != nil {
		log.Error("Failed to render static library tag", "error", err.Error())
		return ""
	}
	log.Debug("Static library inclusion emitted", "point", point)
	return tag
}

func (g *Guarantor) fallbackHook(r *templates.Render, point templates.InsertionPoint) template.HTML {
	if !g.scripts.LibraryAvailable() {
		return ""
	}
	state := g.StateOf(r)
	if !state.MarkFallback(string(point)) {
		return ""
	}

	log := g.logger.WithRender(logging.ChannelDelivery, r.ID)
	out, err := g.scripts.Bootstrap(BootstrapData{
		Point:          string(point),
		RenderID:       r.ID,
		EntryPoint:     g.cfg.EntryPoint,
		ScriptID:       g.cfg.ScriptID,
		Src:            g.cfg.LibraryPath + "?ver=" + url.QueryEscape(g.cfg.LibraryVersion),
		DiagnosticsURL: g.cfg.DiagnosticsURL,
		Policy:         g.policy.script(),
	})
	if err != nil {
		log.Error("Failed to render fallback bootstrap", "point", point, "error", err.Error())
		return ""
	}
	log.Debug("Fallback bootstrap emitted", "point", point)
	return out
}

func (g *Guarantor) formsHook(r *templates.Render, point templates.InsertionPoint) template.HTML {
	if !g.StateOf(r).MarkForms() {
		return ""
	}

	keys := attribution.AllKeys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	variants := make(map[string][]services.FormField, len(formFunctions))
	for fn, v := range formFunctions {
		variants[fn] = services.FormFields(v)
	}

	out, err := g.scripts.Forms(FormsData{EntryPoint: g.cfg.EntryPoint, Keys: names, Variants: variants})
	if err != nil {
		g.logger.WithRender(logging.ChannelDelivery, r.ID).Error("Failed to render form functions", "point", point, "error", err.Error())
		return ""
	}
	return out
}
