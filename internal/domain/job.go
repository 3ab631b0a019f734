package domain

import "time"

// JobStatus enumerates generation lifecycle states.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is permitted from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// GenerationJob tracks one user-initiated image request end-to-end.
// ImagePath is set only when Completed, ErrorMessage only when Failed.
type GenerationJob struct {
	ID           string
	Status       JobStatus
	ImagePath    string
	ErrorMessage string
	Prompt       string
	Model        string
	Width        int
	Height       int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewGenerationJob returns a Processing job for a validated request.
func NewGenerationJob(id string, req GenerationRequest, now time.Time) GenerationJob {
	return GenerationJob{
		ID:        id,
		Status:    JobStatusProcessing,
		Prompt:    req.Prompt,
		Model:     req.Model,
		Width:     req.Width,
		Height:    req.Height,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Complete moves a Processing job to Completed.
func (j *GenerationJob) Complete(imagePath string, now time.Time) error {
	if j.Status.Terminal() {
		return InvalidTransitionError(j.ID, j.Status)
	}
	j.Status = JobStatusCompleted
	j.ImagePath = imagePath
	j.ErrorMessage = ""
	j.UpdatedAt = now
	return nil
}

// Fail moves a Processing job to Failed.
func (j *GenerationJob) Fail(message string, now time.Time) error {
	if j.Status.Terminal() {
		return InvalidTransitionError(j.ID, j.Status)
	}
	if message == "" {
		message = "image generation failed"
	}
	j.Status = JobStatusFailed
	j.ErrorMessage = message
	j.ImagePath = ""
	j.UpdatedAt = now
	return nil
}
