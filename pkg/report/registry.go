package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fangwenqi/rally/pkg/models"
)

// Built-in report format names.
const (
	FormatJSON       = "json"
	FormatHTML       = "html"
	FormatHTMLStatic = "html-static"
)

// Factory builds a reporter for a set of runs and an output destination.
type Factory func(runs []*models.VerificationRun, destination string) Reporter

// Registry maps format names to reporter factories. It is populated
// explicitly at startup; there is no registration side channel.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Create builds a reporter for the named format.
func (r *Registry) Create(name string, runs []*models.VerificationRun, destination string) (Reporter, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown report format %q (available: %s)",
			name, strings.Join(r.Formats(), ", "))
	}
	return f(runs, destination), nil
}

// Formats returns the registered format names, sorted.
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with the built-in formats. The html and
// html-static formats share one reporter, differing only in whether static
// assets are embedded.
func DefaultRegistry(renderer Renderer, cfg Config) *Registry {
	reg := NewRegistry()
	reg.Register(FormatJSON, func(runs []*models.VerificationRun, destination string) Reporter {
		return NewJSONReporter(runs, destination, cfg)
	})
	reg.Register(FormatHTML, func(runs []*models.VerificationRun, destination string) Reporter {
		return NewHTMLReporter(runs, destination, renderer, false, cfg)
	})
	reg.Register(FormatHTMLStatic, func(runs []*models.VerificationRun, destination string) Reporter {
		return NewHTMLReporter(runs, destination, renderer, true, cfg)
	})
	return reg
}
