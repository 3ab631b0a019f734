package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fluxgen/internal/domain"
	"fluxgen/internal/infra"
	"fluxgen/internal/jobs"
	"fluxgen/internal/providers/flux"
	"fluxgen/internal/storage"
)

// Generator is the provider side of a generation: submit, poll, fetch.
type Generator interface {
	Submit(ctx context.Context, req flux.Request) (string, error)
	AwaitResult(ctx context.Context, handle string) (string, error)
	FetchAsset(ctx context.Context, assetURL string) ([]byte, string, error)
}

// AssetStore persists and reopens generated images.
type AssetStore interface {
	Persist(ctx context.Context, name string, data []byte) (string, error)
	Open(path string) (*os.File, error)
}

// Options wires the Service collaborators.
type Options struct {
	Generator Generator
	Assets    AssetStore
	Jobs      jobs.Store
	Runner    *jobs.Runner
	Logger    *infra.Logger
	NewID     func() string
	Now       func() time.Time
}

// Service validates generation requests, records jobs, dispatches the
// background work and answers status and download queries.
type Service struct {
	generator Generator
	assets    AssetStore
	jobs      jobs.Store
	runner    *jobs.Runner
	logger    *infra.Logger
	newID     func() string
	now       func() time.Time
}

func NewService(opts Options) *Service {
	s := &Service{
		generator: opts.Generator,
		assets:    opts.Assets,
		jobs:      opts.Jobs,
		runner:    opts.Runner,
		logger:    opts.Logger,
		newID:     opts.NewID,
		now:       opts.Now,
	}
	if s.runner == nil {
		s.runner = jobs.NewRunner()
	}
	if s.logger == nil {
		l := infra.Logger(zerolog.Nop())
		s.logger = &l
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SubmitGeneration validates req, records a Processing job and starts the
// generation in the background. Rejected requests never create a job.
func (s *Service) SubmitGeneration(ctx context.Context, req domain.GenerationRequest) (domain.GenerationJob, error) {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return domain.GenerationJob{}, err
	}
	req.Width = flux.NormalizeDimension(req.Width)
	req.Height = flux.NormalizeDimension(req.Height)

	job := domain.NewGenerationJob(s.newID(), req, s.now())
	if err := s.jobs.Create(ctx, job); err != nil {
		return domain.GenerationJob{}, err
	}
	s.logger.Info().
		Str("generation_id", job.ID).
		Str("model", job.Model).
		Int("width", job.Width).
		Int("height", job.Height).
		Msg("gateway: generation accepted")

	// Generation outlives the HTTP request that started it.
	bg := context.WithoutCancel(ctx)
	s.runner.Start(bg, job.ID, func(ctx context.Context) error {
		return s.run(ctx, job)
	})
	return job, nil
}

// run performs the generation and records its outcome. Every error or panic
// ends as a Failed job.
func (s *Service) run(ctx context.Context, job domain.GenerationJob) (err error) {
	log := s.logger.With().Str("generation_id", job.ID).Logger()
	var path string
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("unexpected error: %v", p)
		}
		s.finish(ctx, log, job.ID, path, err)
	}()

	log.Info().Str("prompt", job.Prompt).Str("model", job.Model).Msg("gateway: starting image generation")
	path, err = s.generate(ctx, log, job)
	return err
}

func (s *Service) generate(ctx context.Context, log zerolog.Logger, job domain.GenerationJob) (string, error) {
	handle, err := s.generator.Submit(ctx, flux.Request{
		Model:  job.Model,
		Prompt: job.Prompt,
		Width:  job.Width,
		Height: job.Height,
	})
	if err != nil {
		return "", err
	}
	log.Debug().Str("request_id", handle).Msg("gateway: waiting for provider result")

	assetURL, err := s.generator.AwaitResult(ctx, handle)
	if err != nil {
		return "", err
	}
	log.Info().Str("url", assetURL).Msg("gateway: image url received")

	data, contentType, err := s.generator.FetchAsset(ctx, assetURL)
	if err != nil {
		return "", err
	}
	name := storage.JobFilename(job.ID, s.now(), contentType)
	return s.assets.Persist(ctx, name, data)
}

func (s *Service) finish(ctx context.Context, log zerolog.Logger, id, path string, genErr error) {
	if genErr == nil {
		if err := s.jobs.MarkCompleted(ctx, id, path); err != nil {
			log.Error().Err(err).Msg("gateway: failed to record completion")
			return
		}
		log.Info().Str("image_path", path).Msg("gateway: image saved")
		return
	}
	message := "Error during image generation: " + genErr.Error()
	if err := s.jobs.MarkFailed(ctx, id, message); err != nil {
		log.Error().Err(err).Msg("gateway: failed to record failure")
		return
	}
	log.Error().Err(genErr).Msg("gateway: image generation failed")
}

// QueryStatus returns the current state of a generation.
func (s *Service) QueryStatus(ctx context.Context, id string) (domain.GenerationJob, error) {
	return s.jobs.Get(ctx, id)
}

// OpenAsset returns the stored image of a completed generation. The caller
// closes the file.
func (s *Service) OpenAsset(ctx context.Context, id string) (*os.File, domain.GenerationJob, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, job, err
	}
	switch job.Status {
	case domain.JobStatusFailed:
		return nil, job, domain.JobFailedError(job.ErrorMessage)
	case domain.JobStatusProcessing:
		return nil, job, domain.JobNotReadyError()
	}
	if job.ImagePath == "" {
		return nil, job, domain.StorageError(os.ErrNotExist, "image file not found")
	}
	f, err := s.assets.Open(job.ImagePath)
	if err != nil {
		return nil, job, err
	}
	return f, job, nil
}

// Wait blocks until in-flight generations finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	err := s.runner.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn().Msg("gateway: shutdown with generations still in flight")
	}
	return err
}
