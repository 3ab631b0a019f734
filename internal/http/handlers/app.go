package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"fluxgen/internal/domain"
	"fluxgen/internal/gateway"
	"fluxgen/internal/infra"
)

// App holds the dependencies shared by HTTP handlers.
type App struct {
	Gateway   *gateway.Service
	Logger    *infra.Logger
	ImagesDir string
}

func NewApp(svc *gateway.Service, logger *infra.Logger, imagesDir string) *App {
	if logger == nil {
		l := infra.Logger(zerolog.Nop())
		logger = &l
	}
	return &App{Gateway: svc, Logger: logger, ImagesDir: imagesDir}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	var body errorBody
	body.Error.Code = errCode
	body.Error.Message = message
	a.json(w, code, body)
}

// fail maps domain error kinds onto HTTP statuses.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownJob):
		a.error(w, http.StatusNotFound, "not_found", "Generation ID not found")
	case errors.Is(err, domain.ErrInvalidModel):
		a.error(w, http.StatusBadRequest, "invalid_model", "Invalid model selected")
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, http.StatusBadRequest, "bad_request", domain.Message(err))
	case errors.Is(err, domain.ErrJobNotReady):
		a.error(w, http.StatusBadRequest, "not_ready", domain.Message(err))
	case errors.Is(err, domain.ErrJobFailed):
		a.error(w, http.StatusBadRequest, "generation_failed", domain.Message(err))
	case errors.Is(err, domain.ErrStorage) && errors.Is(err, os.ErrNotExist):
		a.error(w, http.StatusNotFound, "not_found", "Image file not found")
	default:
		a.logger(r).Error().Err(err).Msg("handlers: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// logger prefers the request-scoped logger installed by middleware.Logger.
func (a *App) logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return a.Logger
}
