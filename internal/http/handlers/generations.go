package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"fluxgen/internal/domain"
)

type generateRequest struct {
	Prompt string `json:"prompt"`
	Width  *int   `json:"width"`
	Height *int   `json:"height"`
	Model  string `json:"model"`
}

func (r generateRequest) toDomain() domain.GenerationRequest {
	return domain.GenerationRequest{
		Prompt: r.Prompt,
		Width:  lo.FromPtrOr(r.Width, domain.DefaultWidth),
		Height: lo.FromPtrOr(r.Height, domain.DefaultHeight),
		Model:  r.Model,
	}
}

type generationResponse struct {
	GenerationID string `json:"generation_id"`
	Status       string `json:"status"`
	ImagePath    string `json:"image_path,omitempty"`
	Error        string `json:"error,omitempty"`
}

func toResponse(job domain.GenerationJob) generationResponse {
	return generationResponse{
		GenerationID: job.ID,
		Status:       string(job.Status),
		ImagePath:    job.ImagePath,
		Error:        job.ErrorMessage,
	}
}

// Generate accepts a generation request and answers 202 with the job handle.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Gateway.SubmitGeneration(r.Context(), req.toDomain())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, toResponse(job))
}

// Status reports the state of a generation.
func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	job, err := a.Gateway.QueryStatus(r.Context(), chi.URLParam(r, "generationID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toResponse(job))
}

// Download streams the image of a completed generation.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	file, job, err := a.Gateway.OpenAsset(r.Context(), chi.URLParam(r, "generationID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	name := filepath.Base(job.ImagePath)
	w.Header().Set("Content-Disposition", `inline; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), file)
}
