package model

import "sort"

// SortTasks orders tasks by due date ascending, then by priority severity
// (most severe first), then by creation time. Tasks without a due date sort
// last.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := &tasks[i], &tasks[j]
		if a.DueDate != b.DueDate {
			if a.DueDate == "" {
				return false
			}
			if b.DueDate == "" {
				return true
			}
			return a.DueDate < b.DueDate
		}
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra < rb
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
