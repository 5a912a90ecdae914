package badgerstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/store"
	"github.com/harrisonrobin/taskpilot/pkg/store/storetest"
)

func TestConformanceInMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(InMemoryConfig())
		require.NoError(t, err)
		return s
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	id, err := s.Insert(ctx, &model.Task{Description: "survive restart", Status: model.StatusNotStarted})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "survive restart", got.Description)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestConcurrentMixedUpdatesAllLand(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	id, err := s.Insert(ctx, &model.Task{Description: "hot task", Status: model.StatusNotStarted})
	require.NoError(t, err)

	const workers = 64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			at := time.Now().UTC()
			u := store.Update{AddHours: 0.25, AppendEntry: &model.TimeEntry{Hours: 0.25, Timestamp: at}, At: at}
			if i%8 == 0 {
				st := model.StatusInProgress
				u.Status = &st
			}
			_, err := s.Update(ctx, id, u)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, workers*0.25, got.ActualHours, 1e-9)
	assert.Len(t, got.TimeEntries, workers)
	assert.Equal(t, model.StatusInProgress, got.Status)
}

func TestUpdateHonoursCancelledContext(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()

	id, err := s.Insert(context.Background(), &model.Task{Description: "idle", Status: model.StatusNotStarted})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Update(ctx, id, store.Update{AddHours: 1, At: time.Now()})
	assert.ErrorIs(t, err, context.Canceled)
}
