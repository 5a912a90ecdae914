package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harrisonrobin/taskpilot/pkg/colors"
	"github.com/harrisonrobin/taskpilot/pkg/index"
	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/overdue"
	"github.com/harrisonrobin/taskpilot/pkg/util"
)

// fakeCalendar serves the handful of Calendar API calls a sync makes.
type fakeCalendar struct {
	mu      sync.Mutex
	events  map[string]*calendar.Event
	next    int
	inserts int
	patches int
}

func (f *fakeCalendar) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("GET /users/me/calendarList", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, &calendar.CalendarList{Items: []*calendar.CalendarListEntry{
			{Id: "personal-id", Summary: "Personal"},
			{Id: "cal-1", Summary: "Tasks"},
		}})
	})
	mux.HandleFunc("POST /calendars/{cal}/events", func(w http.ResponseWriter, r *http.Request) {
		var e calendar.Event
		_ = json.NewDecoder(r.Body).Decode(&e)
		f.mu.Lock()
		f.next++
		f.inserts++
		e.Id = fmt.Sprintf("evt-%d", f.next)
		f.events[e.Id] = &e
		f.mu.Unlock()
		writeJSON(w, &e)
	})
	mux.HandleFunc("GET /calendars/{cal}/events", func(w http.ResponseWriter, r *http.Request) {
		want := r.URL.Query().Get("privateExtendedProperty")
		f.mu.Lock()
		defer f.mu.Unlock()
		list := &calendar.Events{}
		for _, e := range f.events {
			if e.ExtendedProperties != nil {
				for k, v := range e.ExtendedProperties.Private {
					if k+"="+v == want {
						list.Items = append(list.Items, e)
					}
				}
			}
		}
		writeJSON(w, list)
	})
	mux.HandleFunc("GET /calendars/{cal}/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		e, ok := f.events[r.PathValue("id")]
		f.mu.Unlock()
		if !ok {
			http.Error(w, `{"error":{"code":404,"message":"Not Found"}}`, http.StatusNotFound)
			return
		}
		writeJSON(w, e)
	})
	mux.HandleFunc("PATCH /calendars/{cal}/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		var p calendar.Event
		_ = json.NewDecoder(r.Body).Decode(&p)
		f.mu.Lock()
		defer f.mu.Unlock()
		e, ok := f.events[r.PathValue("id")]
		if !ok {
			http.Error(w, `{"error":{"code":404,"message":"Not Found"}}`, http.StatusNotFound)
			return
		}
		f.patches++
		if p.Summary != "" {
			e.Summary = p.Summary
		}
		if p.Description != "" {
			e.Description = p.Description
		}
		if p.ColorId != "" {
			e.ColorId = p.ColorId
		}
		if p.Start != nil {
			e.Start, e.End = p.Start, p.End
		}
		writeJSON(w, e)
	})
	mux.HandleFunc("DELETE /calendars/{cal}/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.events[r.PathValue("id")]; !ok {
			http.Error(w, `{"error":{"code":404,"message":"Not Found"}}`, http.StatusNotFound)
			return
		}
		delete(f.events, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

type harness struct {
	fake    *fakeCalendar
	srv     *calendar.Service
	client  *CalendarClient
	pending *overdue.Table
	index   *index.EventIndex
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := &fakeCalendar{events: map[string]*calendar.Event{}}
	ts := httptest.NewServer(fake.handler())
	t.Cleanup(ts.Close)

	srv, err := calendar.NewService(context.Background(),
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()))
	require.NoError(t, err)

	dir := t.TempDir()
	idx, err := index.OpenDir(dir)
	require.NoError(t, err)
	cc, err := colors.OpenDir(dir)
	require.NoError(t, err)
	pending, err := overdue.OpenDir(dir)
	require.NoError(t, err)

	h := &harness{fake: fake, srv: srv, pending: pending, index: idx,
		now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	h.client = NewCalendarClient(srv, "cal-1", Options{
		Index: idx, Colors: cc, Pending: pending,
		Now: func() time.Time { return h.now },
	})
	return h
}

func task(id, due string) *model.Task {
	return &model.Task{
		ID:             id,
		Description:    "Fix login bug",
		Category:       model.CategoryBugFix,
		TaskAttributes: model.TaskAttributes{DueDate: due, Priority: model.PriorityHigh, EstimatedHours: 3},
		Status:         model.StatusNotStarted,
		Assignee:       "ana",
	}
}

func TestFindCalendarID(t *testing.T) {
	h := newHarness(t)
	id, err := FindCalendarID(context.Background(), h.srv, "Tasks")
	require.NoError(t, err)
	assert.Equal(t, "cal-1", id)

	_, err = FindCalendarID(context.Background(), h.srv, "Missing")
	assert.Error(t, err)
}

func TestSyncTaskCreatesThenPatches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tk := task("t1", "2025-03-12")

	event, err := h.client.SyncTask(ctx, tk)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "2025-03-12", event.Start.Date)
	assert.Equal(t, event.Id, h.index.Get("t1"))
	assert.Equal(t, 1, h.fake.inserts)

	// Unchanged task: no writes.
	_, err = h.client.SyncTask(ctx, tk)
	require.NoError(t, err)
	assert.Equal(t, 1, h.fake.inserts)
	assert.Equal(t, 0, h.fake.patches)

	tk.Status = model.StatusInProgress
	updated, err := h.client.SyncTask(ctx, tk)
	require.NoError(t, err)
	assert.Equal(t, event.Id, updated.Id)
	assert.True(t, strings.HasPrefix(updated.Summary, util.PrefixActive))
	assert.Equal(t, 1, h.fake.patches)
}

func TestSyncTaskFindsEventWithoutIndex(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	event, err := h.client.SyncTask(ctx, task("t1", "2025-03-12"))
	require.NoError(t, err)

	h.index.Remove("t1")
	again, err := h.client.SyncTask(ctx, task("t1", "2025-03-12"))
	require.NoError(t, err)
	assert.Equal(t, event.Id, again.Id)
	assert.Equal(t, 1, h.fake.inserts)
}

func TestSyncTaskSkipsUndated(t *testing.T) {
	h := newHarness(t)
	event, err := h.client.SyncTask(context.Background(), task("t1", ""))
	require.NoError(t, err)
	assert.Nil(t, event)
	assert.Zero(t, h.fake.inserts)
}

func TestSweepOverdue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	late, err := h.client.SyncTask(ctx, task("late", "2025-03-11"))
	require.NoError(t, err)
	_, err = h.client.SyncTask(ctx, task("later", "2025-03-20"))
	require.NoError(t, err)

	h.now = time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	n, err := h.client.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "! Fix login bug", h.fake.events[late.Id].Summary)

	n, err = h.client.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, h.client.Save())
}

func TestRemoveTask(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	event, err := h.client.SyncTask(ctx, task("gone", "2025-03-11"))
	require.NoError(t, err)

	require.NoError(t, h.client.RemoveTask(ctx, "gone"))
	assert.NotContains(t, h.fake.events, event.Id)
	assert.Empty(t, h.index.Get("gone"))

	h.now = time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	n, err := h.client.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Removing a task that never had an event is a no-op.
	require.NoError(t, h.client.RemoveTask(ctx, "never-synced"))
}
