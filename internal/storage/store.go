package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/SirClappington/jobstream/internal/domain"
)

// Store holds the id -> creation time mapping owned by the registry. Each
// call is atomic on its own; callers never hold a lock across calls.
//
// Delete returns domain.ErrJobNotFound when the entry is already gone, which
// lets concurrent callers agree on a single winner for a read+delete.
type Store interface {
	Create(ctx context.Context, job domain.Job) error
	Get(ctx context.Context, id string) (domain.Job, error)
	Delete(ctx context.Context, id string) error
}

type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

func NewMemory() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]domain.Job)}
}

func (s *MemoryStore) Create(_ context.Context, job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("create job %s: id already in use", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (domain.Job, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()

	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return job, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return domain.ErrJobNotFound
	}
	delete(s.jobs, id)
	return nil
}

// Len returns the number of tracked jobs.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
