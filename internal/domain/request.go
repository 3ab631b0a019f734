package domain

import (
	"strings"

	"github.com/samber/lo"
)

const (
	DefaultModel  = "flux-pro-1.1"
	DefaultWidth  = 1024
	DefaultHeight = 1024
)

// AllowedModels is the fixed allow-list of provider models accepted at validation time.
var AllowedModels = []string{"flux-pro-1.1", "flux-pro", "flux-dev"}

// GenerationRequest is the transient input of a generation. It is validated,
// turned into a GenerationJob plus background work, then discarded.
type GenerationRequest struct {
	Prompt string
	Width  int
	Height int
	Model  string
}

// IsAllowedModel reports whether model is on the allow-list.
func IsAllowedModel(model string) bool {
	return lo.Contains(AllowedModels, model)
}

// WithDefaults fills an empty model. Width and Height are taken as given: an
// explicit zero is a real value that normalization clamps, so callers apply
// DefaultWidth and DefaultHeight when the caller omitted them. The prompt is
// sent verbatim.
func (r GenerationRequest) WithDefaults() GenerationRequest {
	r.Model = strings.TrimSpace(r.Model)
	r.Model = lo.Ternary(r.Model == "", DefaultModel, r.Model)
	return r
}

// Validate checks the request without mutating it.
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return InvalidRequestError("prompt is required")
	}
	if !IsAllowedModel(r.Model) {
		return InvalidModelError(r.Model)
	}
	return nil
}
