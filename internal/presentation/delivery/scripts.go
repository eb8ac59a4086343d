package delivery

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"io/fs"
	texttemplate "text/template"

	"github.com/AtRiskMedia/tractstack-tracking/internal/application/services"
)

//go:embed assets/*.tmpl
var assets embed.FS

const (
	libraryAsset   = "assets/library.js.tmpl"
	bootstrapAsset = "assets/bootstrap.html.tmpl"
	formsAsset     = "assets/forms.html.tmpl"
	tagsAsset      = "assets/tags.html.tmpl"
)

// LibraryData feeds the library script served at the library path.
type LibraryData struct {
	Version       string
	EntryPoint    string
	CookiePrefix  string
	PersistedKeys []string
	Snapshot      map[string]string
}

// BootstrapData feeds one fallback bootstrap.
type BootstrapData struct {
	Point          string
	RenderID       string
	EntryPoint     string
	ScriptID       string
	Src            string
	DiagnosticsURL string
	Policy         policyScript
}

// FormsData feeds the form functions script. Variants maps the global
// function name to the form-only fields it reads.
type FormsData struct {
	EntryPoint string
	Keys       []string
	Variants   map[string][]services.FormField
}

// Scripts renders the page scripts from their templates. The library
// template is optional: without it the static layer emits a console notice
// and the fallback layer stays silent.
type Scripts struct {
	library   *texttemplate.Template
	bootstrap *htmltemplate.Template
	forms     *htmltemplate.Template
	tags      *htmltemplate.Template
}

// DefaultScripts loads the embedded templates.
func DefaultScripts() *Scripts {
	s, err := LoadScripts(assets)
	if err != nil {
		panic(err)
	}
	return s
}

// LoadScripts parses the templates from fsys, laid out like the embedded assets.
func LoadScripts(fsys fs.FS) (*Scripts, error) {
	s := &Scripts{}

	_, err := fs.Stat(fsys, libraryAsset)
	switch {
	case err == nil:
		lib, err := texttemplate.New("library.js.tmpl").
			Funcs(texttemplate.FuncMap{"json": toJSON}).
			ParseFS(fsys, libraryAsset)
		if err != nil {
			return nil, fmt.Errorf("failed to parse library template: %w", err)
		}
		s.library = lib
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to stat library template: %w", err)
	}

	if s.bootstrap, err = htmltemplate.ParseFS(fsys, bootstrapAsset); err != nil {
		return nil, fmt.Errorf("failed to parse bootstrap template: %w", err)
	}
	if s.forms, err = htmltemplate.ParseFS(fsys, formsAsset); err != nil {
		return nil, fmt.Errorf("failed to parse forms template: %w", err)
	}
	if s.tags, err = htmltemplate.ParseFS(fsys, tagsAsset); err != nil {
		return nil, fmt.Errorf("failed to parse tag templates: %w", err)
	}
	return s, nil
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// LibraryAvailable reports whether the library script can be served.
func (s *Scripts) LibraryAvailable() bool {
	return s.library != nil
}

// WriteLibrary writes the library script.
func (s *Scripts) WriteLibrary(w io.Writer, data LibraryData) error {
	if s.library == nil {
		return errors.New("library template not loaded")
	}
	if err := s.library.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render library: %w", err)
	}
	return nil
}

// Bootstrap renders a fallback bootstrap element.
func (s *Scripts) Bootstrap(data BootstrapData) (htmltemplate.HTML, error) {
	return render(s.bootstrap, "bootstrap.html.tmpl", data)
}

// Forms renders the form functions element.
func (s *Scripts) Forms(data FormsData) (htmltemplate.HTML, error) {
	return render(s.forms, "forms.html.tmpl", data)
}

// StaticTag renders the static library inclusion.
func (s *Scripts) StaticTag(src string) (htmltemplate.HTML, error) {
	return render(s.tags, "static", src)
}

// MissingNotice renders the console notice used when the library is absent.
func (s *Scripts) MissingNotice() (htmltemplate.HTML, error) {
	return render(s.tags, "missing", nil)
}

func render(t *htmltemplate.Template, name string, data any) (htmltemplate.HTML, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return htmltemplate.HTML(buf.String()), nil
}
