package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"fluxgen/internal/domain"
)

// Store is the single source of truth for generation job state.
type Store interface {
	Create(ctx context.Context, job domain.GenerationJob) error
	Get(ctx context.Context, id string) (domain.GenerationJob, error)
	MarkCompleted(ctx context.Context, id, imagePath string) error
	MarkFailed(ctx context.Context, id, message string) error
}

// MemoryStore keeps jobs in process memory. Processing jobs never expire;
// terminal jobs are evicted after the retention period when one is set.
type MemoryStore struct {
	mu        sync.Mutex
	items     *cache.Cache
	retention time.Duration
	now       func() time.Time
}

// NewMemoryStore builds a store. A retention of zero keeps terminal jobs for
// the life of the process.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	cleanup := time.Duration(0)
	if retention > 0 {
		cleanup = retention
	}
	return &MemoryStore{
		items:     cache.New(cache.NoExpiration, cleanup),
		retention: retention,
		now:       time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, job domain.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.items.Add(job.ID, job, cache.NoExpiration); err != nil {
		return domain.DuplicateJobError(job.ID)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (domain.GenerationJob, error) {
	v, ok := s.items.Get(id)
	if !ok {
		return domain.GenerationJob{}, domain.UnknownJobError(id)
	}
	return v.(domain.GenerationJob), nil
}

func (s *MemoryStore) MarkCompleted(_ context.Context, id, imagePath string) error {
	return s.transition(id, func(job *domain.GenerationJob) error {
		return job.Complete(imagePath, s.now())
	})
}

func (s *MemoryStore) MarkFailed(_ context.Context, id, message string) error {
	return s.transition(id, func(job *domain.GenerationJob) error {
		return job.Fail(message, s.now())
	})
}

func (s *MemoryStore) transition(id string, apply func(*domain.GenerationJob) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items.Get(id)
	if !ok {
		return domain.UnknownJobError(id)
	}
	job := v.(domain.GenerationJob)
	if err := apply(&job); err != nil {
		return err
	}
	ttl := cache.NoExpiration
	if s.retention > 0 {
		ttl = s.retention
	}
	s.items.Set(id, job, ttl)
	return nil
}

// Len returns the number of tracked jobs, expired entries included until the
// next cleanup.
func (s *MemoryStore) Len() int {
	return s.items.ItemCount()
}

var _ Store = (*MemoryStore)(nil)
