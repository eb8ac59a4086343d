package templates

import (
	"bytes"
	"html/template"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/tractstack-tracking/internal/application/services"
	"github.com/AtRiskMedia/tractstack-tracking/internal/domain/attribution"
)

func emit(s string) Hook {
	return func(*Render, InsertionPoint) template.HTML { return template.HTML(s) }
}

func TestFireRunsHooksInPriorityOrder(t *testing.T) {
	p := NewPipeline()
	p.Register(PointHead, 999, "late", emit("c"))
	p.Register(PointHead, 1, "early", emit("a"))
	p.Register(PointHead, 1, "early-second", emit("b"))
	p.Register(PointFooter, 1, "footer", emit("f"))

	assert.Equal(t, []string{"early", "early-second", "late"}, p.HookNames(PointHead))

	r := p.NewRender(attribution.NewPage("https://site.example/", ""))
	assert.Equal(t, template.HTML("abc"), r.Fire(PointHead))
	assert.Equal(t, template.HTML(""), r.Fire(PointPrintScripts))
	assert.Equal(t, []InsertionPoint{PointHead, PointPrintScripts}, r.Fired())
}

func TestRenderStateIsPerRender(t *testing.T) {
	p := NewPipeline()
	calls := 0
	p.Register(PointFooter, 1, "counter", func(r *Render, _ InsertionPoint) template.HTML {
		n := r.State("count", func() any { calls++; return new(int) }).(*int)
		*n++
		return ""
	})

	first := p.NewRender(attribution.Page{})
	first.Fire(PointFooter)
	first.Fire(PointFooter)
	second := p.NewRender(attribution.Page{})
	second.Fire(PointFooter)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, *first.State("count", nil).(*int))
	assert.Equal(t, 1, *second.State("count", nil).(*int))
	assert.Equal(t, 2, calls)
}

func TestRenderPageFiresLayoutPoints(t *testing.T) {
	cases := map[Layout][]InsertionPoint{
		LayoutDefault: {PointEnqueueScripts, PointHead, PointPrintScripts, PointFooter, PointPrintFooterScripts},
		LayoutCanvas:  {PointPrintScripts, PointPrintFooterScripts},
		LayoutBare:    {PointPrintFooterScripts},
	}
	for layout, want := range cases {
		t.Run(string(layout), func(t *testing.T) {
			p := NewPipeline()
			p.Register(PointPrintFooterScripts, 1, "marker", emit("<script>/*footer*/</script>"))
			r := p.NewRender(attribution.Page{})

			var buf bytes.Buffer
			require.NoError(t, RenderPage(&buf, r, layout, PageData{
				Title:   "Admisión",
				Slug:    "admision",
				Variant: services.FormStandard,
				Fields:  services.FormFields(services.FormStandard),
			}))

			assert.Equal(t, want, r.Fired())
			assert.Contains(t, buf.String(), "<script>/*footer*/</script>")
			assert.Contains(t, buf.String(), `action="/api/v1/forms/standard"`)
			assert.Contains(t, buf.String(), `id="telefono" name="telefono" type="tel"`)
		})
	}
}

func TestParseLayout(t *testing.T) {
	assert.Equal(t, LayoutCanvas, ParseLayout("canvas"))
	assert.Equal(t, LayoutDefault, ParseLayout("nope"))
	assert.Error(t, RenderPage(&bytes.Buffer{}, NewPipeline().NewRender(attribution.Page{}), Layout("nope"), PageData{}))
}
