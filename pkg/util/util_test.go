package util

import (
	"strings"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskpilot/pkg/model"
)

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func sampleTask() *model.Task {
	return &model.Task{
		ID:          "12345678-1234-1234-1234-123456789012",
		Description: "Test Task",
		Category:    model.CategoryDevelopment,
		TaskAttributes: model.TaskAttributes{
			DueDate:        "2025-03-12",
			Priority:       model.PriorityHigh,
			EstimatedHours: 1.5,
			Tags:           []string{"buy", "food"},
		},
		Status:   model.StatusNotStarted,
		Assignee: "ana",
		Notes:    "Note 1",
	}
}

func TestConvertTaskToCalendarEvent(t *testing.T) {
	task := sampleTask()
	event, err := ConvertTaskToCalendarEvent(task, "3", now)
	if err != nil {
		t.Fatalf("ConvertTaskToCalendarEvent failed: %v", err)
	}

	if event.ExtendedProperties == nil || event.ExtendedProperties.Private == nil {
		t.Fatal("ExtendedProperties or Private map is nil")
	}
	if val := event.ExtendedProperties.Private[TaskIDProperty]; val != task.ID {
		t.Errorf("Expected %s %s, got %v", TaskIDProperty, task.ID, val)
	}
	if event.Start.Date != "2025-03-12" || event.End.Date != "2025-03-13" {
		t.Errorf("Expected all-day event on 2025-03-12, got %s..%s", event.Start.Date, event.End.Date)
	}
	if event.Summary != "Test Task" {
		t.Errorf("Expected plain summary, got %q", event.Summary)
	}
	if event.ColorId != "3" {
		t.Errorf("Expected color 3, got %s", event.ColorId)
	}
	for _, want := range []string{"#buy #food", "Accounting:", "• estimated: 1h30m0s", "Note 1", "Assignee: ana"} {
		if !strings.Contains(event.Description, want) {
			t.Errorf("Expected description to contain %q, got: %s", want, event.Description)
		}
	}
}

func TestConvertTaskWithoutDueDate(t *testing.T) {
	task := sampleTask()
	task.DueDate = ""
	if _, err := ConvertTaskToCalendarEvent(task, "1", now); err == nil {
		t.Error("expected an error for a task without due date")
	}
	if _, err := ConvertTaskToCalendarEvent(nil, "1", now); err == nil {
		t.Error("expected an error for a nil task")
	}
}

func TestSummaryPrefixes(t *testing.T) {
	task := sampleTask()
	cases := []struct {
		status model.Status
		due    string
		want   string
	}{
		{model.StatusNotStarted, "2025-03-12", "Test Task"},
		{model.StatusInProgress, "2025-03-12", "‣ Test Task"},
		{model.StatusInProgress, "2025-03-01", "! Test Task"},
		{model.StatusCompleted, "2025-03-01", "✓ Test Task"},
	}
	for _, c := range cases {
		task.Status = c.status
		task.DueDate = c.due
		if got := Summary(task, now); got != c.want {
			t.Errorf("Summary(%s, %s) = %q, want %q", c.status, c.due, got, c.want)
		}
	}
}

func TestMarkOverdue(t *testing.T) {
	cases := map[string]string{
		"Task":     "! Task",
		"‣ Task":   "! Task",
		"! Task":   "! Task",
		"✓ Task":   "✓ Task",
	}
	for in, want := range cases {
		if got := MarkOverdue(in); got != want {
			t.Errorf("MarkOverdue(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEventNeedsUpdate(t *testing.T) {
	target, err := ConvertTaskToCalendarEvent(sampleTask(), "3", now)
	if err != nil {
		t.Fatal(err)
	}
	same := *target
	if patch := EventNeedsUpdate(&same, target); patch != nil {
		t.Errorf("expected no patch, got %+v", patch)
	}

	moved := *target
	moved.Start = &calendar.EventDateTime{Date: "2025-03-11"}
	moved.Summary = "old"
	patch := EventNeedsUpdate(&moved, target)
	if patch == nil {
		t.Fatal("expected a patch")
	}
	if patch.Summary != target.Summary || patch.Start.Date != "2025-03-12" {
		t.Errorf("unexpected patch %+v", patch)
	}
	if patch.Description != "" {
		t.Errorf("unchanged description must not be patched")
	}

	timed := *target
	timed.Start = &calendar.EventDateTime{DateTime: "2025-03-12T09:00:00Z"}
	timed.End = &calendar.EventDateTime{DateTime: "2025-03-13T09:00:00Z"}
	if patch := EventNeedsUpdate(&timed, target); patch == nil || patch.Start.Date == "" {
		t.Errorf("expected timed event to be moved to all-day, got %+v", patch)
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"":        0,
		"PT1H":    time.Hour,
		"PT30M":   30 * time.Minute,
		"PT1H30M": 90 * time.Minute,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		if err != nil {
			t.Errorf("ParseDuration(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseDuration(%q) = %v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"1h", "P1D", "PTX"} {
		if _, err := ParseDuration(bad); err == nil {
			t.Errorf("ParseDuration(%q) should fail", bad)
		}
	}
}
