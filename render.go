package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/harrisonrobin/taskpilot/pkg/analytics"
	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/util"
)

var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#5C7A84")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)
)

var priorityStyles = map[model.Priority]lipgloss.Style{
	model.PriorityCritical: lipgloss.NewStyle().Bold(true).Foreground(colorError),
	model.PriorityHigh:     lipgloss.NewStyle().Foreground(colorError),
	model.PriorityMedium:   lipgloss.NewStyle().Foreground(colorWarning),
	model.PriorityLow:      mutedStyle,
}

type column struct {
	title string
	width int
}

var listColumns = []column{
	{"ID", 8}, {"Task", 40}, {"Category", 13}, {"Priority", 9},
	{"Due", 11}, {"Status", 12}, {"Hours", 11},
}

func cell(s string, width int, style lipgloss.Style) string {
	if r := []rune(s); lipgloss.Width(s) > width && len(r) >= width {
		s = string(r[:width-1]) + "…"
	}
	return style.Width(width + 1).Render(s)
}

func renderTaskList(w io.Writer, tasks []model.Task, now time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No tasks."))
		return
	}
	var header strings.Builder
	for _, c := range listColumns {
		header.WriteString(cell(c.title, c.width, headerStyle))
	}
	fmt.Fprintln(w, header.String())

	for i := range tasks {
		t := &tasks[i]
		summary := util.Summary(t, now)
		statusStyle := lipgloss.NewStyle()
		if t.IsOverdue(now) {
			statusStyle = errorStyle
		}
		row := []string{
			cell(shortID(t.ID), 8, mutedStyle),
			cell(summary, 40, lipgloss.NewStyle()),
			cell(string(t.Category), 13, lipgloss.NewStyle()),
			cell(string(t.Priority), 9, priorityStyles[t.Priority]),
			cell(t.DueDate, 11, statusStyle),
			cell(string(t.Status), 12, statusStyle),
			cell(fmt.Sprintf("%.1f/%.1f", t.ActualHours, t.EstimatedHours), 11, lipgloss.NewStyle()),
		}
		fmt.Fprintln(w, strings.Join(row, ""))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func renderTask(w io.Writer, t *model.Task, now time.Time) {
	var b strings.Builder
	fmt.Fprintln(&b, titleStyle.Render(t.Description))
	line := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%s %s\n", mutedStyle.Render(fmt.Sprintf("%-13s", k+":")), v)
		}
	}
	line("ID", t.ID)
	line("Category", string(t.Category))
	line("Priority", priorityStyles[t.Priority].Render(string(t.Priority)))
	due := t.DueDate
	if t.IsOverdue(now) {
		due = errorStyle.Render(due + " (overdue)")
	}
	line("Due", due)
	line("Status", string(t.Status))
	line("Progress", fmt.Sprintf("%d%%", t.Progress))
	line("Hours", fmt.Sprintf("%.2f logged of %.2f estimated", t.ActualHours, t.EstimatedHours))
	line("Complexity", string(t.Complexity))
	line("Tags", strings.Join(t.Tags, ", "))
	line("Assignee", t.Assignee)
	line("Depends on", strings.Join(t.Dependencies, ", "))
	if t.CompletionDate != nil {
		line("Completed", t.CompletionDate.Local().Format(time.DateTime))
	}
	line("Notes", t.Notes)
	for _, e := range t.TimeEntries {
		fmt.Fprintf(&b, "  %s %5.2fh %s\n", mutedStyle.Render(e.Timestamp.Local().Format(time.DateTime)), e.Hours, e.Description)
	}
	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func renderReport(w io.Writer, r analytics.Report) {
	var b strings.Builder
	fmt.Fprintln(&b, titleStyle.Render("Task analytics"))
	fmt.Fprintf(&b, "Total: %d  Completed: %d  Completion: %.1f%%\n", r.Total, r.Completed, r.CompletionRate)
	fmt.Fprintf(&b, "Hours logged: %.2f\n", r.TotalHours)
	if r.Overdue > 0 {
		fmt.Fprintln(&b, warningStyle.Render(fmt.Sprintf("Overdue: %d", r.Overdue)))
	}

	fmt.Fprintln(&b, headerStyle.Render("By category"))
	cats := make([]string, 0, len(r.CategoryDistribution))
	for c := range r.CategoryDistribution {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Fprintf(&b, "  %-14s %d\n", c, r.CategoryDistribution[model.Category(c)])
	}

	fmt.Fprintln(&b, headerStyle.Render("By priority"))
	for _, p := range model.FourLevel.Levels() {
		if n, ok := r.PriorityBreakdown[p]; ok {
			fmt.Fprintf(&b, "  %-14s %d\n", priorityStyles[p].Render(string(p)), n)
		}
	}

	if len(r.TimeComparison) > 0 {
		fmt.Fprintln(&b, headerStyle.Render("Estimate vs actual"))
		for _, tc := range r.TimeComparison {
			fmt.Fprintf(&b, "  %-32.32s %6.2f / %6.2f\n", tc.Description, tc.EstimatedHours, tc.ActualHours)
		}
	}
	fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func printNotes(w io.Writer, notices, warnings []string) {
	for _, n := range notices {
		fmt.Fprintln(w, mutedStyle.Render("note: "+n))
	}
	for _, m := range warnings {
		fmt.Fprintln(w, warningStyle.Render("warning: "+m))
	}
}
