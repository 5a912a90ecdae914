package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskpilot/pkg/model"
)

// TaskIDProperty is the private extended property that links an event back
// to its task.
const TaskIDProperty = "taskpilot_id"

// Summary prefixes.
const (
	PrefixDone    = "✓"
	PrefixActive  = "‣"
	PrefixOverdue = "!"
)

var durationPart = regexp.MustCompile(`(\d+)([HMS])`)

// ParseDuration parses the time part of an ISO 8601 duration (PT1H30M), the
// form Taskwarrior uses for duration UDAs.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid ISO 8601 duration format: %s", s)
	}
	s = s[1:]
	if len(s) == 0 || s[0] != 'T' {
		return 0, fmt.Errorf("invalid ISO 8601 duration (missing T): P%s", s)
	}
	s = s[1:]

	var total time.Duration
	for _, match := range durationPart.FindAllStringSubmatch(s, -1) {
		value, _ := strconv.Atoi(match[1])
		switch match[2] {
		case "H":
			total += time.Duration(value) * time.Hour
		case "M":
			total += time.Duration(value) * time.Minute
		case "S":
			total += time.Duration(value) * time.Second
		}
	}
	if total == 0 {
		return 0, fmt.Errorf("invalid ISO 8601 duration: PT%s", s)
	}
	return total, nil
}

// Summary is the event title for task: the description behind a state
// prefix.
func Summary(task *model.Task, now time.Time) string {
	prefix := ""
	switch {
	case task.Status == model.StatusCompleted:
		prefix = PrefixDone
	case task.IsOverdue(now):
		prefix = PrefixOverdue
	case task.Status == model.StatusInProgress || task.Status == model.StatusUnderReview:
		prefix = PrefixActive
	}
	if prefix == "" {
		return task.Description
	}
	return prefix + " " + task.Description
}

// MarkOverdue prefixes a summary with the overdue marker unless it already
// carries a state prefix.
func MarkOverdue(summary string) string {
	for _, p := range []string{PrefixDone, PrefixOverdue} {
		if strings.HasPrefix(summary, p+" ") {
			return summary
		}
	}
	return PrefixOverdue + " " + strings.TrimPrefix(summary, PrefixActive+" ")
}

func hoursString(h float64) string {
	return (time.Duration(h * float64(time.Hour))).Round(time.Minute).String()
}

// ConvertTaskToCalendarEvent renders task as an all-day event on its due
// date. Tasks without a due date cannot be placed and return an error.
func ConvertTaskToCalendarEvent(task *model.Task, colorID string, now time.Time) (*calendar.Event, error) {
	if task == nil {
		return nil, fmt.Errorf("could not convert nil Task")
	}
	due, ok := model.ParseDate(task.DueDate)
	if !ok {
		return nil, fmt.Errorf("task %s has no usable due date %q", task.ID, task.DueDate)
	}

	var desc strings.Builder
	if len(task.Tags) > 0 {
		for _, tag := range task.Tags {
			fmt.Fprintf(&desc, "#%s ", tag)
		}
		desc.WriteString("\n\n")
	}
	fmt.Fprintf(&desc, "Status: %s\n", task.Status)
	fmt.Fprintf(&desc, "Category: %s\n", task.Category)
	fmt.Fprintf(&desc, "Priority: %s\n", task.Priority)
	if task.Assignee != "" {
		fmt.Fprintf(&desc, "Assignee: %s\n", task.Assignee)
	}
	fmt.Fprintf(&desc, "ID: %s\n", task.ID)

	desc.WriteString("\nAccounting:\n")
	fmt.Fprintf(&desc, "• estimated: %s\n", hoursString(task.EstimatedHours))
	if task.ActualHours > 0 {
		fmt.Fprintf(&desc, "• spent: %s\n", hoursString(task.ActualHours))
		if task.Status == model.StatusCompleted {
			switch diff := task.ActualHours - task.EstimatedHours; {
			case diff > 0:
				fmt.Fprintf(&desc, "• over estimate by: %s\n", hoursString(diff))
			case diff < 0:
				fmt.Fprintf(&desc, "• under estimate by: %s\n", hoursString(-diff))
			}
		}
	}
	if task.Progress > 0 {
		fmt.Fprintf(&desc, "• progress: %d%%\n", task.Progress)
	}

	if task.Notes != "" {
		desc.WriteString("\nNotes:\n")
		for _, line := range strings.Split(task.Notes, "\n") {
			fmt.Fprintf(&desc, "‣ %s\n", line)
		}
	}

	return &calendar.Event{
		Summary:     Summary(task, now),
		ColorId:     colorID,
		Start:       &calendar.EventDateTime{Date: model.FormatDate(due)},
		End:         &calendar.EventDateTime{Date: model.FormatDate(due.AddDate(0, 0, 1))},
		Description: desc.String(),
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{TaskIDProperty: task.ID},
		},
	}, nil
}

func eventDay(dt *calendar.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.Date != "" {
		return dt.Date
	}
	if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
		return model.FormatDate(t)
	}
	return dt.DateTime
}

// EventNeedsUpdate returns a patch with the fields of target that differ
// from existing, or nil when the event is current.
func EventNeedsUpdate(existing, target *calendar.Event) *calendar.Event {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}
	// A timed event is moved to all-day even if it falls on the right day.
	if eventDay(existing.Start) != eventDay(target.Start) || eventDay(existing.End) != eventDay(target.End) ||
		existing.Start == nil || existing.Start.Date == "" {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch
	}
	return nil
}
