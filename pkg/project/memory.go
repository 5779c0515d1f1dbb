package project

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps projects in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]Project
	now      func() time.Time
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]Project),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, p Project) (Project, error) {
	p, err := prepare(p, s.now())
	if err != nil {
		return Project{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; ok {
		return Project{}, fmt.Errorf("project %s already exists", p.ID)
	}
	s.projects[p.ID] = p
	return p, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Project, error) {
	s.mu.RLock()
	out := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sortRecent(out)
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, p Project) (Project, error) {
	if p.ID == "" {
		return Project{}, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	p, err := prepare(p, s.now())
	if err != nil {
		return Project{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return Project{}, fmt.Errorf("%w: %s", ErrNotFound, p.ID)
	}
	s.projects[p.ID] = p
	return p, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.projects, id)
	return nil
}
