package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Images serves the generated images directory read-only.
func (a *App) Images() http.Handler {
	return http.FileServer(http.Dir(a.ImagesDir))
}
