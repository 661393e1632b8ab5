// Package renderer assembles report documents from embedded HTML templates.
package renderer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/fangwenqi/rally/pkg/assets"
)

//go:embed templates/*.html
var templateFS embed.FS

// templateFiles maps public template names to embedded files.
var templateFiles = map[string]string{
	"verification/report.html": "templates/report.html",
}

// Renderer renders named templates with a JSON data payload. It implements
// the report package's Renderer contract.
type Renderer struct {
	templates map[string]*template.Template
}

// New returns a renderer with all built-in templates parsed.
func New() *Renderer {
	templates := make(map[string]*template.Template, len(templateFiles))
	for name, file := range templateFiles {
		templates[name] = template.Must(template.ParseFS(templateFS, file))
	}
	return &Renderer{templates: templates}
}

type renderContext struct {
	Data        template.JS
	IncludeLibs bool
	Style       template.CSS
	Script      template.JS
}

// Render executes the named template with the serialized context payload.
// When includeLibs is set, the stylesheet and script are inlined so the
// document needs no companion files.
func (r *Renderer) Render(name string, data string, includeLibs bool) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}

	ctx := renderContext{
		Data:        template.JS(data),
		IncludeLibs: includeLibs,
	}
	if includeLibs {
		ctx.Style = template.CSS(assets.Stylesheet())
		ctx.Script = template.JS(assets.Script())
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", name, err)
	}
	return buf.String(), nil
}
