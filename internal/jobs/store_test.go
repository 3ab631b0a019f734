package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fluxgen/internal/domain"
)

func newJob(id string) domain.GenerationJob {
	req := domain.GenerationRequest{Prompt: "a cat", Model: domain.DefaultModel, Width: 288, Height: 288}
	return domain.NewGenerationJob(id, req, time.Now())
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	if err := store.Create(ctx, newJob("a")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	job, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if job.Status != domain.JobStatusProcessing || job.ImagePath != "" || job.ErrorMessage != "" {
		t.Fatalf("unexpected processing job: %+v", job)
	}

	if err := store.MarkCompleted(ctx, "a", "generated_images/a.jpg"); err != nil {
		t.Fatalf("MarkCompleted error: %v", err)
	}
	job, _ = store.Get(ctx, "a")
	if job.Status != domain.JobStatusCompleted || job.ImagePath != "generated_images/a.jpg" || job.ErrorMessage != "" {
		t.Fatalf("unexpected completed job: %+v", job)
	}
}

func TestMemoryStoreDuplicateCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	if err := store.Create(ctx, newJob("a")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := store.Create(ctx, newJob("a")); !errors.Is(err, domain.ErrDuplicateJob) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestMemoryStoreUnknownJob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrUnknownJob) {
		t.Fatalf("Get: expected unknown job, got %v", err)
	}
	if err := store.MarkCompleted(ctx, "missing", "x.jpg"); !errors.Is(err, domain.ErrUnknownJob) {
		t.Fatalf("MarkCompleted: expected unknown job, got %v", err)
	}
	if err := store.MarkFailed(ctx, "missing", "boom"); !errors.Is(err, domain.ErrUnknownJob) {
		t.Fatalf("MarkFailed: expected unknown job, got %v", err)
	}
}

func TestMemoryStoreTerminalIsFinal(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		first func(*MemoryStore) error
	}{
		{name: "completed", first: func(s *MemoryStore) error { return s.MarkCompleted(ctx, "a", "a.jpg") }},
		{name: "failed", first: func(s *MemoryStore) error { return s.MarkFailed(ctx, "a", "boom") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := NewMemoryStore(0)
			if err := store.Create(ctx, newJob("a")); err != nil {
				t.Fatalf("Create error: %v", err)
			}
			if err := tc.first(store); err != nil {
				t.Fatalf("first transition: %v", err)
			}
			before, _ := store.Get(ctx, "a")
			if err := store.MarkCompleted(ctx, "a", "other.jpg"); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Fatalf("MarkCompleted: expected invalid transition, got %v", err)
			}
			if err := store.MarkFailed(ctx, "a", "again"); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Fatalf("MarkFailed: expected invalid transition, got %v", err)
			}
			after, _ := store.Get(ctx, "a")
			if after != before {
				t.Fatalf("terminal job mutated: before %+v after %+v", before, after)
			}
		})
	}
}

func TestMemoryStoreRetentionEvictsTerminalJobs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(20 * time.Millisecond)
	for _, id := range []string{"done", "running"} {
		if err := store.Create(ctx, newJob(id)); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	if err := store.MarkFailed(ctx, "done", "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, err := store.Get(ctx, "done"); !errors.Is(err, domain.ErrUnknownJob) {
		t.Fatalf("expected terminal job to expire, got %v", err)
	}
	if _, err := store.Get(ctx, "running"); err != nil {
		t.Fatalf("processing job must not expire: %v", err)
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	if err := store.Create(ctx, newJob("a")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := store.MarkCompleted(ctx, "a", "a.jpg"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			_, _ = store.Get(ctx, "a")
		}()
	}
	wg.Wait()
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful transition, got %d", succeeded)
	}
}
