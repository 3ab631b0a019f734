package inject

import (
	"fmt"
	"net/http"

	"github.com/samber/do"

	"fluxgen/internal/gateway"
	"fluxgen/internal/http/handlers"
	"fluxgen/internal/http/httpapi"
	"fluxgen/internal/infra"
	"fluxgen/internal/jobs"
	"fluxgen/internal/providers/flux"
	"fluxgen/internal/storage"
)

// Setup registers every service component behind cfg and logger.
func Setup(cfg *infra.Config, logger infra.Logger) *do.Injector {
	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			logger.Debug().Msg(fmt.Sprintf(format, args...))
		},
	})

	do.ProvideValue[*infra.Config](injector, cfg)
	do.ProvideValue[*infra.Logger](injector, &logger)
	do.Provide[*http.Client](injector, func(i *do.Injector) (*http.Client, error) {
		return &http.Client{Timeout: cfg.FluxRequestTimeout}, nil
	})

	do.Provide[*flux.Client](injector, func(i *do.Injector) (*flux.Client, error) {
		return flux.NewClient(flux.Options{
			APIKey:       cfg.BFLAPIKey,
			BaseURL:      cfg.BFLBaseURL,
			HTTPClient:   do.MustInvoke[*http.Client](i),
			Logger:       do.MustInvoke[*infra.Logger](i),
			PollInterval: cfg.FluxPollInterval,
			PollTimeout:  cfg.FluxPollTimeout,
		})
	})
	do.Provide[*storage.FileStore](injector, func(i *do.Injector) (*storage.FileStore, error) {
		return storage.NewFileStore(cfg.ImagesDir)
	})
	do.Provide[jobs.Store](injector, func(i *do.Injector) (jobs.Store, error) {
		return jobs.NewMemoryStore(cfg.JobRetention), nil
	})
	do.Provide[*jobs.Runner](injector, func(i *do.Injector) (*jobs.Runner, error) {
		return jobs.NewRunner(), nil
	})

	do.Provide[*gateway.Service](injector, func(i *do.Injector) (*gateway.Service, error) {
		return gateway.NewService(gateway.Options{
			Generator: do.MustInvoke[*flux.Client](i),
			Assets:    do.MustInvoke[*storage.FileStore](i),
			Jobs:      do.MustInvoke[jobs.Store](i),
			Runner:    do.MustInvoke[*jobs.Runner](i),
			Logger:    do.MustInvoke[*infra.Logger](i),
		}), nil
	})
	do.Provide[*handlers.App](injector, func(i *do.Injector) (*handlers.App, error) {
		store := do.MustInvoke[*storage.FileStore](i)
		return handlers.NewApp(do.MustInvoke[*gateway.Service](i), do.MustInvoke[*infra.Logger](i), store.BasePath()), nil
	})
	do.Provide[http.Handler](injector, func(i *do.Injector) (http.Handler, error) {
		return httpapi.NewRouter(do.MustInvoke[*handlers.App](i), httpapi.RouterOptions{
			RateLimitPerMin:    cfg.RateLimitPerMin,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		}), nil
	})
	do.Provide[*infra.HTTPServer](injector, func(i *do.Injector) (*infra.HTTPServer, error) {
		return infra.NewHTTPServer(cfg, do.MustInvoke[http.Handler](i)), nil
	})

	return injector
}
