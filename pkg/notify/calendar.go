package notify

import (
	"context"
	"fmt"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskpilot/pkg/model"
)

// CalendarSyncer is the part of google.CalendarClient the notifier needs.
type CalendarSyncer interface {
	SyncTask(ctx context.Context, t *model.Task) (*calendar.Event, error)
	Save() error
}

// Calendar mirrors a task onto its calendar event, creating it on first
// sight and patching it on later changes.
type Calendar struct {
	client CalendarSyncer
}

func NewCalendar(client CalendarSyncer) *Calendar {
	return &Calendar{client: client}
}

func (c *Calendar) Notify(ctx context.Context, t *model.Task) error {
	if _, err := c.client.SyncTask(ctx, t); err != nil {
		return fmt.Errorf("calendar sync of task %s: %w", t.ID, err)
	}
	return c.client.Save()
}
