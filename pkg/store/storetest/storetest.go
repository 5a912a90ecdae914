// Package storetest is a conformance suite run against every Store backend.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/store"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

func newTask(desc, due string, p model.Priority, status model.Status) *model.Task {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.Task{
		Description: desc,
		Category:    model.CategoryDevelopment,
		TaskAttributes: model.TaskAttributes{
			DueDate:        due,
			Priority:       p,
			EstimatedHours: 2,
			Tags:           []string{"general"},
			Complexity:     model.ComplexityMedium,
		},
		Status:       status,
		Dependencies: []string{},
		TimeEntries:  []model.TimeEntry{},
		CreatedAt:    now,
		LastUpdated:  now,
	}
}

// Run exercises insert, get, update and find semantics.
func Run(t *testing.T, factory Factory) {
	t.Run("InsertAndGet", func(t *testing.T) { testInsertAndGet(t, factory) })
	t.Run("GetNotFound", func(t *testing.T) { testGetNotFound(t, factory) })
	t.Run("FindFiltersAndSorts", func(t *testing.T) { testFind(t, factory) })
	t.Run("CompletionStampedOnce", func(t *testing.T) { testCompletion(t, factory) })
	t.Run("TimeLogAccumulates", func(t *testing.T) { testTimeLog(t, factory) })
	t.Run("ConcurrentTimeLog", func(t *testing.T) { testConcurrentTimeLog(t, factory) })
	t.Run("UpdateNotFound", func(t *testing.T) { testUpdateNotFound(t, factory) })
}

func open(t *testing.T, factory Factory) store.Store {
	s := factory(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testInsertAndGet(t *testing.T, factory Factory) {
	s := open(t, factory)
	ctx := context.Background()
	task := newTask("write tests", "2025-03-01", model.PriorityHigh, model.StatusNotStarted)

	id, err := s.Insert(ctx, task)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "write tests", got.Description)
	assert.Equal(t, "2025-03-01", got.DueDate)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	assert.Equal(t, []string{"general"}, got.Tags)
	assert.True(t, got.CreatedAt.Equal(task.CreatedAt))
	assert.Nil(t, got.CompletionDate)
}

func testGetNotFound(t *testing.T, factory Factory) {
	s := open(t, factory)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testFind(t *testing.T, factory Factory) {
	s := open(t, factory)
	ctx := context.Background()
	insert := func(task *model.Task) string {
		id, err := s.Insert(ctx, task)
		require.NoError(t, err)
		return id
	}
	late := insert(newTask("late low", "2025-04-01", model.PriorityLow, model.StatusNotStarted))
	early := insert(newTask("early", "2025-03-01", model.PriorityLow, model.StatusInProgress))
	lateHigh := insert(newTask("late high", "2025-04-01", model.PriorityHigh, model.StatusNotStarted))
	done := insert(newTask("done", "2025-05-01", model.PriorityMedium, model.StatusCompleted))

	all, err := s.Find(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{early, lateHigh, late, done}, ids(all))

	open, err := s.Find(ctx, store.Filter{Statuses: []model.Status{model.StatusNotStarted, model.StatusInProgress}})
	require.NoError(t, err)
	assert.Equal(t, []string{early, lateHigh, late}, ids(open))

	april, err := s.Find(ctx, store.Filter{DueFrom: "2025-04-01", DueTo: "2025-04-30"})
	require.NoError(t, err)
	assert.Equal(t, []string{lateHigh, late}, ids(april))

	low, err := s.Find(ctx, store.Filter{Priorities: []model.Priority{model.PriorityLow}})
	require.NoError(t, err)
	assert.Equal(t, []string{early, late}, ids(low))

	byID, err := s.Find(ctx, store.Filter{IDs: []string{done, "missing"}})
	require.NoError(t, err)
	assert.Equal(t, []string{done}, ids(byID))

	none, err := s.Find(ctx, store.Filter{Categories: []model.Category{model.CategoryMeeting}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testCompletion(t *testing.T, factory Factory) {
	s := open(t, factory)
	ctx := context.Background()
	id, err := s.Insert(ctx, newTask("ship", "2025-03-01", model.PriorityHigh, model.StatusInProgress))
	require.NoError(t, err)

	completed := model.StatusCompleted
	first := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	got, err := s.Update(ctx, id, store.Update{Status: &completed, At: first})
	require.NoError(t, err)
	require.NotNil(t, got.CompletionDate)
	assert.True(t, got.CompletionDate.Equal(first))

	got, err = s.Update(ctx, id, store.Update{Status: &completed, At: first.Add(time.Hour)})
	require.NoError(t, err)
	require.NotNil(t, got.CompletionDate)
	assert.True(t, got.CompletionDate.Equal(first))
	assert.True(t, got.LastUpdated.Equal(first.Add(time.Hour)))
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func testTimeLog(t *testing.T, factory Factory) {
	s := open(t, factory)
	ctx := context.Background()
	id, err := s.Insert(ctx, newTask("log", "2025-03-01", model.PriorityHigh, model.StatusInProgress))
	require.NoError(t, err)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, desc := range []string{"one", "two", "three"} {
		at := base.Add(time.Duration(i) * time.Minute)
		entry := model.TimeEntry{Hours: 1.5, Description: desc, Timestamp: at}
		_, err := s.Update(ctx, id, store.Update{AddHours: 1.5, AppendEntry: &entry, At: at})
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, got.ActualHours, 1e-9)
	require.Len(t, got.TimeEntries, 3)
	for i, desc := range []string{"one", "two", "three"} {
		assert.Equal(t, desc, got.TimeEntries[i].Description)
	}
}

func testConcurrentTimeLog(t *testing.T, factory Factory) {
	s := open(t, factory)
	ctx := context.Background()
	id, err := s.Insert(ctx, newTask("busy", "2025-03-01", model.PriorityHigh, model.StatusInProgress))
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			at := time.Now().UTC()
			entry := model.TimeEntry{Hours: 0.5, Description: "x", Timestamp: at}
			_, err := s.Update(ctx, id, store.Update{AddHours: 0.5, AppendEntry: &entry, At: at})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, n*0.5, got.ActualHours, 1e-9)
	assert.Len(t, got.TimeEntries, n)
}

func testUpdateNotFound(t *testing.T, factory Factory) {
	s := open(t, factory)
	status := model.StatusCompleted
	_, err := s.Update(context.Background(), "missing", store.Update{Status: &status, At: time.Now()})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func ids(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
