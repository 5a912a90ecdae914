package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskpilot/pkg/model"
)

type fakeSyncer struct {
	synced []string
	saves  int
	err    error
}

func (f *fakeSyncer) SyncTask(_ context.Context, t *model.Task) (*calendar.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.synced = append(f.synced, t.ID)
	return &calendar.Event{Id: "evt-" + t.ID}, nil
}

func (f *fakeSyncer) Save() error {
	f.saves++
	return nil
}

func TestCalendarNotify(t *testing.T) {
	f := &fakeSyncer{}
	err := NewCalendar(f).Notify(context.Background(), &model.Task{ID: "t1"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"t1"}, f.synced)
	assert.Equal(t, 1, f.saves)
}

func TestCalendarNotifyFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	f := &fakeSyncer{err: boom}
	err := NewCalendar(f).Notify(context.Background(), &model.Task{ID: "t1"})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, f.saves)
}
