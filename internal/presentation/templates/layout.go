package templates

import (
	"fmt"
	"html/template"
	"io"

	"github.com/AtRiskMedia/tractstack-tracking/internal/application/services"
)

// Layout selects which insertion points a host page template fires.
type Layout string

const (
	// LayoutDefault fires every insertion point.
	LayoutDefault Layout = "default"
	// LayoutCanvas is a page-builder canvas that skips the theme head and footer.
	LayoutCanvas Layout = "canvas"
	// LayoutBare only prints footer scripts.
	LayoutBare Layout = "bare"
)

type layoutPoints struct {
	head   []InsertionPoint
	footer []InsertionPoint
}

var layouts = map[Layout]layoutPoints{
	LayoutDefault: {
		head:   []InsertionPoint{PointEnqueueScripts, PointHead, PointPrintScripts},
		footer: []InsertionPoint{PointFooter, PointPrintFooterScripts},
	},
	LayoutCanvas: {
		head:   []InsertionPoint{PointPrintScripts},
		footer: []InsertionPoint{PointPrintFooterScripts},
	},
	LayoutBare: {
		footer: []InsertionPoint{PointPrintFooterScripts},
	},
}

// ParseLayout resolves a layout name, falling back to LayoutDefault.
func ParseLayout(name string) Layout {
	if _, ok := layouts[Layout(name)]; ok {
		return Layout(name)
	}
	return LayoutDefault
}

// PageData is the content of a host page.
type PageData struct {
	Title   string
	Slug    string
	Variant services.FormVariant
	Fields  []services.FormField
}

type pageView struct {
	PageData
	RenderID string
	Head     template.HTML
	Footer   template.HTML
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
{{.Head}}</head>
<body data-render="{{.RenderID}}">
<main>
<h1>{{.Title}}</h1>
{{if .Fields}}<form id="lead-form" method="post" action="/api/v1/forms/{{.Variant}}">
{{range .Fields}}<label for="{{.ElementID}}">{{.Name}}</label>
<input id="{{.ElementID}}" name="{{.ElementID}}"{{if .Phone}} type="tel"{{end}}>
{{end}}<button type="submit">Enviar</button>
</form>{{end}}
</main>
{{.Footer}}</body>
</html>
`))

// RenderPage writes a host page for r, firing the insertion points of layout
// in template order.
func RenderPage(w io.Writer, r *Render, layout Layout, data PageData) error {
	points, ok := layouts[layout]
	if !ok {
		return fmt.Errorf("unknown layout %q", layout)
	}

	view := pageView{PageData: data, RenderID: r.ID}
	for _, p := range points.head {
		view.Head += r.Fire(p)
	}
	for _, p := range points.footer {
		view.Footer += r.Fire(p)
	}

	if err := pageTemplate.Execute(w, view); err != nil {
		return fmt.Errorf("failed to render page %q: %w", data.Slug, err)
	}
	return nil
}
