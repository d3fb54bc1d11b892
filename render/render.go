// Package render turns document models into the XML bodies served by the
// coverage service. Templates are compiled into the binary and executed
// with the jet engine.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/CloudyKit/jet/v6"
)

//go:embed templates/*.jet
var templateFS embed.FS

// Template names accepted by Render.
const (
	TplException10    = "exception10.jet"
	TplException11    = "exception11.jet"
	TplException20    = "exception20.jet"
	TplCapabilities10 = "capabilities10.jet"
	TplCapabilities11 = "capabilities11.jet"
	TplCapabilities20 = "capabilities20.jet"
	TplDescribe10     = "describe10.jet"
	TplDescribe11     = "describe11.jet"
	TplDescribe20     = "describe20.jet"
	TplCoverages11    = "coverages11.jet"
	TplGMLCoverage20  = "gmlcoverage20.jet"
)

// Renderer executes the embedded document templates. It is safe for
// concurrent use.
type Renderer struct {
	set *jet.Set
}

// New loads every embedded template.
func New() (*Renderer, error) {
	loader := jet.NewInMemLoader()
	entries, err := fs.ReadDir(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %v", err)
	}
	for _, e := range entries {
		b, err := templateFS.ReadFile(path.Join("templates", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %v", e.Name(), err)
		}
		loader.Set("/"+e.Name(), string(b))
	}
	return &Renderer{set: jet.NewSet(loader)}, nil
}

// Render executes the named template against data.
func (r *Renderer) Render(name string, data interface{}) ([]byte, error) {
	t, err := r.set.GetTemplate("/" + name)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %v", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, make(jet.VarMap), data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %v", name, err)
	}
	return buf.Bytes(), nil
}
