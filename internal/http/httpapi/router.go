package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"fluxgen/internal/http/handlers"
	"fluxgen/internal/middleware"
)

// RouterOptions tunes the cross-cutting middleware.
type RouterOptions struct {
	RateLimitPerMin    int
	CORSAllowedOrigins []string
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(*app.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSAllowedOrigins),
	)

	r.Get("/", app.Index)
	r.Get("/healthz", app.Health)

	r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/generate", app.Generate)
	r.Get("/status/{generationID}", app.Status)
	r.Get("/download/{generationID}", app.Download)

	r.Handle("/generated_images/*", http.StripPrefix("/generated_images/", app.Images()))

	return r
}
