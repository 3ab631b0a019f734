package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"fluxgen/internal/domain"
	"fluxgen/internal/providers/flux"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type indexData struct {
	Models        []string
	DefaultModel  string
	DefaultWidth  int
	DefaultHeight int
	MinDimension  int
	MaxDimension  int
}

// Index renders the browser page.
func (a *App) Index(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := indexTemplate.Execute(&buf, indexData{
		Models:        domain.AllowedModels,
		DefaultModel:  domain.DefaultModel,
		DefaultWidth:  domain.DefaultWidth,
		DefaultHeight: domain.DefaultHeight,
		MinDimension:  flux.MinDimension,
		MaxDimension:  flux.MaxDimension,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
