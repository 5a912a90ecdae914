package taskwarrior

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/taskpilot/pkg/assembler"
	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/tracker"
	"github.com/harrisonrobin/taskpilot/pkg/util"
)

var priorities = map[string]string{
	"H": string(model.PriorityHigh),
	"M": string(model.PriorityMedium),
	"L": string(model.PriorityLow),
}

// ImportItems maps exported tasks onto import items. Deleted and recurring
// template tasks are skipped. loc is the zone due timestamps are converted
// into before taking the date.
func ImportItems(tasks []Task, loc *time.Location) []tracker.ImportItem {
	if loc == nil {
		loc = time.Local
	}
	items := make([]tracker.ImportItem, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == DELETED || t.Status == RECURRING {
			continue
		}
		ov := assembler.Overrides{
			Priority: priorities[strings.ToUpper(t.Priority)],
			Tags:     strings.Join(t.Tags, ","),
		}
		switch {
		case t.Due.IsSet():
			ov.DueDate = model.FormatDate(t.Due.In(loc))
		case t.Scheduled.IsSet():
			ov.DueDate = model.FormatDate(t.Scheduled.In(loc))
		}
		if est, err := util.ParseDuration(t.Est); err == nil && est > 0 {
			h := est.Hours()
			ov.EstimatedHours = &h
		}
		ov.Notes = notes(t)

		category := t.Project
		if _, ok := model.ParseCategory(category); !ok {
			category = string(model.CategoryOther)
			if t.Project != "" {
				ov.Tags = strings.Trim(ov.Tags+","+t.Project, ",")
			}
		}

		items = append(items, tracker.ImportItem{
			Source:  "taskwarrior " + t.UUID,
			Request: tracker.CreateRequest{Description: t.Description, Category: category, Overrides: ov},
			Status:  TrackerStatus(t),
		})
	}
	return items
}

// TrackerStatus maps t onto a tracker status. Pending tasks that were never
// started map to the empty status, leaving the initial one in place.
func TrackerStatus(t Task) model.Status {
	switch {
	case t.Status == COMPLETED:
		return model.StatusCompleted
	case t.Start.IsSet():
		return model.StatusInProgress
	}
	return ""
}

func notes(t Task) string {
	var b strings.Builder
	for _, a := range t.Annotations {
		fmt.Fprintf(&b, "%s\n", a.Description)
	}
	if t.UUID != "" {
		b.WriteString(Marker(t.UUID))
	}
	return strings.TrimSpace(b.String())
}

// Marker is the notes line that ties an imported task to its Taskwarrior
// uuid.
func Marker(uuid string) string {
	return "taskwarrior: " + uuid
}
