package google

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskpilot/pkg/colors"
	"github.com/harrisonrobin/taskpilot/pkg/index"
	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/overdue"
	"github.com/harrisonrobin/taskpilot/pkg/util"
)

// Options carries the local state files a sync keeps. Every field is
// optional.
type Options struct {
	Index   *index.EventIndex
	Colors  *colors.ColorCache
	Pending *overdue.Table
	Logger  *zap.Logger
	Now     func() time.Time
}

// CalendarClient mirrors tasks as events on one Google Calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	colors     *colors.ColorCache
	pending    *overdue.Table
	logger     *zap.Logger
	now        func() time.Time
}

func NewCalendarClient(srv *calendar.Service, calendarID string, opts Options) *CalendarClient {
	c := &CalendarClient{
		srv:        srv,
		calendarID: calendarID,
		index:      opts.Index,
		colors:     opts.Colors,
		pending:    opts.Pending,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.index != nil {
		c.index.Bind(calendarID)
	}
	return c
}

// SyncTask creates the event for task or patches the existing one. Tasks
// without a due date are skipped and return a nil event.
func (c *CalendarClient) SyncTask(ctx context.Context, task *model.Task) (*calendar.Event, error) {
	if task.DueDate == "" {
		c.logger.Debug("task has no due date, not syncing", zap.String("task_id", task.ID))
		return nil, nil
	}
	colorID := colors.Unassigned
	if c.colors != nil {
		colorID = c.colors.ColorID(task.Assignee)
	}
	event, err := util.ConvertTaskToCalendarEvent(task, colorID, c.now())
	if err != nil {
		return nil, err
	}

	existing := c.lookup(ctx, task.ID)
	if existing == nil {
		existing, err = c.GetEventByTaskID(ctx, task.ID)
		if err != nil {
			return nil, fmt.Errorf("error searching for event: %w", err)
		}
	}

	result := existing
	if existing == nil {
		result, err = c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		c.logger.Info("calendar event created", zap.String("task_id", task.ID), zap.String("event_id", result.Id))
	} else if patch := util.EventNeedsUpdate(existing, event); patch != nil {
		result, err = c.PatchEvent(ctx, existing.Id, patch)
		if err != nil {
			return nil, fmt.Errorf("patch event %s: %w", existing.Id, err)
		}
		c.logger.Info("calendar event updated", zap.String("task_id", task.ID), zap.String("event_id", result.Id))
	}

	if c.index != nil {
		c.index.Set(task.ID, result.Id)
	}
	if c.pending != nil {
		c.pending.Track(task, result.Id, event.Summary)
	}
	return result, nil
}

func (c *CalendarClient) lookup(ctx context.Context, taskID string) *calendar.Event {
	if c.index == nil {
		return nil
	}
	eventID := c.index.Get(taskID)
	if eventID == "" {
		return nil
	}
	event, err := c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil || event.Status == "cancelled" {
		c.index.Remove(taskID)
		return nil
	}
	return event
}

// SweepOverdue marks the events of tasks that went overdue since the last
// sweep. It returns how many events were patched.
func (c *CalendarClient) SweepOverdue(ctx context.Context) (int, error) {
	if c.pending == nil {
		return 0, nil
	}
	patched := 0
	for _, e := range c.pending.Sweep(c.now()) {
		patch := &calendar.Event{Summary: util.MarkOverdue(e.Summary)}
		if _, err := c.PatchEvent(ctx, e.EventID, patch); err != nil {
			c.logger.Warn("sweep: error patching event", zap.String("event_id", e.EventID), zap.Error(err))
			continue
		}
		patched++
	}
	return patched, nil
}

// Save flushes the local state files.
func (c *CalendarClient) Save() error {
	if c.index != nil {
		if err := c.index.Save(); err != nil {
			return fmt.Errorf("save event index: %w", err)
		}
	}
	if c.colors != nil {
		if err := c.colors.Save(); err != nil {
			return fmt.Errorf("save color cache: %w", err)
		}
	}
	if c.pending != nil {
		if err := c.pending.Save(); err != nil {
			return fmt.Errorf("save overdue table: %w", err)
		}
	}
	return nil
}

// RemoveTask deletes the event of taskID, if there is one, and drops the
// task from the local state.
func (c *CalendarClient) RemoveTask(ctx context.Context, taskID string) error {
	event := c.lookup(ctx, taskID)
	if event == nil {
		var err error
		if event, err = c.GetEventByTaskID(ctx, taskID); err != nil {
			return fmt.Errorf("error searching for event: %w", err)
		}
	}
	if c.index != nil {
		c.index.Remove(taskID)
	}
	if c.pending != nil {
		c.pending.Remove(taskID)
	}
	if event == nil {
		return nil
	}
	if err := c.DeleteEvent(ctx, event.Id); err != nil {
		return fmt.Errorf("delete event %s: %w", event.Id, err)
	}
	c.logger.Info("calendar event deleted", zap.String("task_id", taskID), zap.String("event_id", event.Id))
	return nil
}

func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	return c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
}

// GetEventByTaskID finds the event carrying taskID in its private extended
// properties. It returns nil, nil when there is none.
func (c *CalendarClient) GetEventByTaskID(ctx context.Context, taskID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", util.TaskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}
