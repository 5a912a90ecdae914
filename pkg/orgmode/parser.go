package orgmode

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/harrisonrobin/taskpilot/pkg/assembler"
	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/tracker"
)

var (
	headingRegex  = regexp.MustCompile(`^\*+\s+(TODO|NEXT|DONE)\s+(?:\[#([A-Z])\]\s*)?(.*?)(?:\s+(:[\w@:]+:))?\s*$`)
	deadlineRegex = regexp.MustCompile(`DEADLINE:\s+<(\d{4}-\d{2}-\d{2})[^>]*>`)
	scheduleRegex = regexp.MustCompile(`SCHEDULED:\s+<(\d{4}-\d{2}-\d{2})[^>]*>`)
	idRegex       = regexp.MustCompile(`^:ID:\s+(\S+)`)
	effortRegex   = regexp.MustCompile(`^:EFFORT:\s+(\d+):(\d{2})`)
)

var priorities = map[string]string{
	"A": string(model.PriorityHigh),
	"B": string(model.PriorityMedium),
	"C": string(model.PriorityLow),
}

// ParseFiles parses every file in order.
func ParseFiles(filePaths []string) ([]tracker.ImportItem, error) {
	var all []tracker.ImportItem
	for _, path := range filePaths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		items, err := Parse(f, path)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		all = append(all, items...)
	}
	return all, nil
}

type heading struct {
	item     tracker.ImportItem
	deadline string
	schedule string
	id       string
	notes    []string
}

func (h *heading) finish() tracker.ImportItem {
	item := h.item
	if h.deadline != "" {
		item.Request.Overrides.DueDate = h.deadline
	} else {
		item.Request.Overrides.DueDate = h.schedule
	}
	notes := h.notes
	if h.id != "" {
		notes = append(notes, "org id: "+h.id)
	}
	item.Request.Overrides.Notes = strings.Join(notes, "\n")
	return item
}

// Parse turns TODO, NEXT and DONE headings into import items. The source
// name and line number identify each item.
func Parse(r io.Reader, source string) ([]tracker.ImportItem, error) {
	scanner := bufio.NewScanner(r)
	var (
		items    []tracker.ImportItem
		current  *heading
		inDrawer bool
		lineNo   int
	)
	flush := func() {
		if current != nil {
			items = append(items, current.finish())
			current = nil
		}
	}

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if strings.HasPrefix(raw, "*") {
			flush()
			inDrawer = false
			m := headingRegex.FindStringSubmatch(raw)
			if m == nil {
				continue
			}
			current = &heading{item: tracker.ImportItem{
				Source: fmt.Sprintf("%s:%d", source, lineNo),
				Request: tracker.CreateRequest{
					Description: strings.TrimSpace(m[3]),
					Overrides: assembler.Overrides{
						Priority: priorities[m[2]],
						Tags:     strings.ReplaceAll(strings.Trim(m[4], ":"), ":", ","),
					},
				},
			}}
			switch m[1] {
			case "DONE":
				current.item.Status = model.StatusCompleted
			case "NEXT":
				current.item.Status = model.StatusInProgress
			}
			continue
		}
		if current == nil {
			continue
		}

		switch {
		case line == ":PROPERTIES:" || line == ":LOGBOOK:":
			inDrawer = true
		case line == ":END:":
			inDrawer = false
		case inDrawer:
			if m := idRegex.FindStringSubmatch(line); m != nil {
				current.id = m[1]
			} else if m := effortRegex.FindStringSubmatch(line); m != nil {
				h, _ := strconv.Atoi(m[1])
				mins, _ := strconv.Atoi(m[2])
				if total := float64(h) + float64(mins)/60; total > 0 {
					current.item.Request.Overrides.EstimatedHours = &total
				}
			}
		default:
			matched := false
			if m := deadlineRegex.FindStringSubmatch(line); m != nil {
				current.deadline = m[1]
				matched = true
			}
			if m := scheduleRegex.FindStringSubmatch(line); m != nil {
				current.schedule = m[1]
				matched = true
			}
			if !matched && line != "" {
				current.notes = append(current.notes, line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return items, nil
}
