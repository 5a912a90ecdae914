// Package memory is a process-local Store. State lives only as long as the
// process; it backs tests and the CLI when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/store"
)

// Store keeps tasks in a map guarded by a mutex, plus a slice for stable
// insertion order. Tasks are cloned on the way in and out so callers never
// share memory with the store.
type Store struct {
	mu    sync.Mutex
	tasks map[string]*model.Task
	order []string
}

func New() *Store {
	return &Store{tasks: make(map[string]*model.Task)}
}

func (s *Store) Insert(_ context.Context, t *model.Task) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := t.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := s.tasks[c.ID]; exists {
		return "", fmt.Errorf("task %s already exists", c.ID)
	}
	s.tasks[c.ID] = c
	s.order = append(s.order, c.ID)
	return c.ID, nil
}

func (s *Store) Get(_ context.Context, id string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return t.Clone(), nil
}

// Update applies u under the store lock, which makes the status check,
// increment and append one atomic step.
func (s *Store) Update(_ context.Context, id string, u store.Update) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	u.Apply(t)
	return t.Clone(), nil
}

func (s *Store) Find(_ context.Context, f store.Filter) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []model.Task{}
	for _, id := range s.order {
		t := s.tasks[id]
		if f.Match(t) {
			result = append(result, *t.Clone())
		}
	}
	model.SortTasks(result)
	return result, nil
}

func (s *Store) Close() error { return nil }
