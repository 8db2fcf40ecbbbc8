package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"sort"

	"github.com/KOFI-GYIMAH/stl-devs-web/internal/controller"
	"github.com/KOFI-GYIMAH/stl-devs-web/internal/models"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/errors"
)

//go:embed templates/*.html
var templateFS embed.FS

var titles = map[string]string{
	"user-list": "Users",
	"user":      "User",
}

type Field struct {
	Key   string
	Value string
}

type page struct {
	Title string
	Scope *controller.Scope
}

type Renderer struct {
	tmpl *template.Template
}

func New() (*Renderer, error) {
	funcs := template.FuncMap{
		"fields":     fields,
		"errorRef":   errors.Reference,
		"errorTitle": errors.Title,
	}

	tmpl, err := template.New("views").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.New(
			"VIEW_TEMPLATE_ERROR",
			"Failed to parse view templates",
			"The embedded templates could not be parsed",
			err,
			errors.LevelFatal,
		)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// * Has reports whether a template with that name exists
func (r *Renderer) Has(name string) bool {
	return r.tmpl.Lookup(name) != nil
}

// * Render executes the scope's template into w. Output is buffered so a
// * failing template never leaves a half-written page behind.
func (r *Renderer) Render(w io.Writer, scope *controller.Scope) error {
	if !r.Has(scope.Template) {
		return errors.New(
			"VIEW_TEMPLATE_MISSING",
			"No template for view",
			fmt.Sprintf("View %s refers to unknown template %q", scope.View, scope.Template),
			nil,
			errors.LevelFatal,
		)
	}

	title := titles[scope.Template]
	if title == "" {
		title = scope.Template
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, scope.Template, page{Title: title, Scope: scope}); err != nil {
		return errors.New(
			"VIEW_RENDER_ERROR",
			"Failed to render view",
			fmt.Sprintf("Template %q failed", scope.Template),
			err,
			errors.LevelFatal,
		)
	}

	_, err := buf.WriteTo(w)
	return err
}

func fields(e models.Entity) []Field {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, Field{Key: k, Value: e.String(k)})
	}
	return out
}
