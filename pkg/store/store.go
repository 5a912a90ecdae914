// Package store defines the persistence collaborator for tasks and the
// semantics every backend shares: filter matching, ordering and the single
// atomic update used for status changes and time logging.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/harrisonrobin/taskpilot/pkg/model"
)

var ErrNotFound = errors.New("task not found")

// Store persists tasks. Update must apply all of its parts to one task
// atomically.
type Store interface {
	Insert(ctx context.Context, t *model.Task) (string, error)
	Get(ctx context.Context, id string) (*model.Task, error)
	Update(ctx context.Context, id string, u Update) (*model.Task, error)
	// Find returns matching tasks ordered by model.SortTasks.
	Find(ctx context.Context, f Filter) ([]model.Task, error)
	Close() error
}

// Filter selects tasks. Empty slices and strings match everything; the
// criteria are ANDed. DueFrom and DueTo bound the due date inclusively.
type Filter struct {
	IDs        []string
	Statuses   []model.Status
	Categories []model.Category
	Priorities []model.Priority
	Assignee   string
	DueFrom    string
	DueTo      string
}

func (f Filter) Match(t *model.Task) bool {
	if len(f.IDs) > 0 && !contains(f.IDs, t.ID) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, t.Status) {
		return false
	}
	if len(f.Categories) > 0 && !contains(f.Categories, t.Category) {
		return false
	}
	if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
		return false
	}
	if f.Assignee != "" && t.Assignee != f.Assignee {
		return false
	}
	if f.DueFrom != "" && (t.DueDate == "" || t.DueDate < f.DueFrom) {
		return false
	}
	if f.DueTo != "" && (t.DueDate == "" || t.DueDate > f.DueTo) {
		return false
	}
	return true
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Update is a partial modification of one task. Nil and zero fields are
// left alone. At becomes the task's last_updated time.
type Update struct {
	Status   *model.Status
	Progress *int
	Notes    *string
	// AddHours is added to actual_hours.
	AddHours float64
	// AppendEntry is appended to time_entries.
	AppendEntry *model.TimeEntry
	At          time.Time
}

// Apply mutates t in place. Moving into Completed stamps the completion date
// only if the task was not already Completed and has never been stamped, so
// the date records the first completion.
func (u Update) Apply(t *model.Task) {
	if u.Status != nil {
		if *u.Status == model.StatusCompleted && t.Status != model.StatusCompleted && t.CompletionDate == nil {
			at := u.At
			t.CompletionDate = &at
		}
		t.Status = *u.Status
	}
	if u.Progress != nil {
		t.Progress = *u.Progress
	}
	if u.Notes != nil {
		t.Notes = *u.Notes
	}
	t.ActualHours += u.AddHours
	if u.AppendEntry != nil {
		t.TimeEntries = append(t.TimeEntries, *u.AppendEntry)
	}
	t.LastUpdated = u.At
}
