package model

import (
	"errors"
	"math"
	"strings"
	"time"
)

var (
	// ErrEmptyDescription is returned when a task description is blank after
	// trimming. Callers must never analyze or assemble blank text.
	ErrEmptyDescription = errors.New("task description must not be empty")
	ErrInvalidStatus    = errors.New("invalid status")
)

// DateLayout is the persisted form of every date-only field.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string. The returned time is midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// HoursBounds is the closed range an estimated duration must lie in.
type HoursBounds struct {
	Min float64 `yaml:"min_hours"`
	Max float64 `yaml:"max_hours"`
}

var DefaultHoursBounds = HoursBounds{Min: 0.5, Max: 40}

// Normalize rejects non-positive and non-finite hours and clamps the rest
// into [Min, Max]. Both ends are inclusive.
func (b HoursBounds) Normalize(hours float64) (float64, bool) {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return 0, false
	}
	return math.Min(math.Max(hours, b.Min), b.Max), true
}

// TaskAttributes is what analysis derives from free text.
type TaskAttributes struct {
	DueDate        string     `json:"due_date" bson:"due_date"`
	Priority       Priority   `json:"priority" bson:"priority"`
	EstimatedHours float64    `json:"estimated_hours" bson:"estimated_hours"`
	Tags           []string   `json:"tags" bson:"tags"`
	Complexity     Complexity `json:"complexity,omitempty" bson:"complexity,omitempty"`
}

// TimeEntry is one logged block of work. Entries are append-only.
type TimeEntry struct {
	Hours       float64   `json:"hours" bson:"hours"`
	Description string    `json:"description" bson:"description"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

// Task is the persisted record.
type Task struct {
	ID          string   `json:"id" bson:"_id"`
	Description string   `json:"description" bson:"description"`
	Category    Category `json:"category" bson:"category"`

	TaskAttributes `bson:",inline"`

	Status         Status      `json:"status" bson:"status"`
	ActualHours    float64     `json:"actual_hours" bson:"actual_hours"`
	Progress       int         `json:"progress" bson:"progress"`
	Assignee       string      `json:"assignee,omitempty" bson:"assignee,omitempty"`
	Notes          string      `json:"notes,omitempty" bson:"notes,omitempty"`
	Dependencies   []string    `json:"dependencies" bson:"dependencies"`
	TimeEntries    []TimeEntry `json:"time_entries" bson:"time_entries"`
	CreatedAt      time.Time   `json:"created_at" bson:"created_at"`
	LastUpdated    time.Time   `json:"last_updated" bson:"last_updated"`
	CompletionDate *time.Time  `json:"completion_date,omitempty" bson:"completion_date,omitempty"`
}

// IsOverdue reports whether the due date lies strictly before the calendar
// date of now and the task is not completed. Tasks without a parseable due
// date are never overdue.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.Status == StatusCompleted {
		return false
	}
	due, ok := ParseDate(t.DueDate)
	if !ok {
		return false
	}
	today, _ := ParseDate(FormatDate(now))
	return due.Before(today)
}

// Clone returns a deep copy so stores never hand out shared slices.
func (t *Task) Clone() *Task {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	c.Dependencies = append([]string(nil), t.Dependencies...)
	c.TimeEntries = append([]TimeEntry(nil), t.TimeEntries...)
	if t.CompletionDate != nil {
		d := *t.CompletionDate
		c.CompletionDate = &d
	}
	return &c
}
