// Package analytics summarizes a set of tasks for the stats views.
package analytics

import (
	"time"

	"github.com/harrisonrobin/taskpilot/pkg/model"
)

// TimeComparison pairs estimate and actual for one completed task.
type TimeComparison struct {
	TaskID         string  `json:"task_id"`
	Description    string  `json:"description"`
	EstimatedHours float64 `json:"estimated_hours"`
	ActualHours    float64 `json:"actual_hours"`
}

type Report struct {
	Total     int `json:"total_tasks"`
	Completed int `json:"completed_tasks"`
	// CompletionRate is a percentage in [0, 100].
	CompletionRate       float64                `json:"completion_rate"`
	TotalHours           float64                `json:"total_hours"`
	CategoryDistribution map[model.Category]int `json:"category_distribution"`
	PriorityBreakdown    map[model.Priority]int `json:"priority_breakdown"`
	Overdue              int                    `json:"overdue_tasks"`
	TimeComparison       []TimeComparison       `json:"time_comparison"`
}

// Calculate builds a report; an empty input yields a zero report with
// initialized maps.
func Calculate(tasks []model.Task, now time.Time) Report {
	r := Report{
		Total:                len(tasks),
		CategoryDistribution: map[model.Category]int{},
		PriorityBreakdown:    map[model.Priority]int{},
		TimeComparison:       []TimeComparison{},
	}
	for i := range tasks {
		t := &tasks[i]
		r.TotalHours += t.ActualHours
		r.CategoryDistribution[t.Category]++
		r.PriorityBreakdown[t.Priority]++
		if t.IsOverdue(now) {
			r.Overdue++
		}
		if t.Status == model.StatusCompleted {
			r.Completed++
			r.TimeComparison = append(r.TimeComparison, TimeComparison{
				TaskID:         t.ID,
				Description:    t.Description,
				EstimatedHours: t.EstimatedHours,
				ActualHours:    t.ActualHours,
			})
		}
	}
	if r.Total > 0 {
		r.CompletionRate = float64(r.Completed) / float64(r.Total) * 100
	}
	return r
}
