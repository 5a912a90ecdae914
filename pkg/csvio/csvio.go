// Package csvio exports tasks to CSV and reads CSV rows back as import
// items.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/taskpilot/pkg/assembler"
	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/tracker"
)

// Header is the export column order. Import accepts any subset in any
// order as long as description is present.
var Header = []string{
	"id", "description", "category", "status", "priority", "due_date",
	"estimated_hours", "actual_hours", "progress", "complexity", "assignee",
	"tags", "dependencies", "notes", "created_at", "completion_date",
}

var ErrMissingDescriptionColumn = errors.New("csv has no description column")

// listSep joins tags and dependencies inside one cell.
const listSep = ","

func Write(w io.Writer, tasks []model.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i := range tasks {
		t := &tasks[i]
		completion := ""
		if t.CompletionDate != nil {
			completion = t.CompletionDate.UTC().Format(time.RFC3339)
		}
		row := []string{
			t.ID,
			t.Description,
			string(t.Category),
			string(t.Status),
			string(t.Priority),
			t.DueDate,
			formatFloat(t.EstimatedHours),
			formatFloat(t.ActualHours),
			strconv.Itoa(t.Progress),
			string(t.Complexity),
			t.Assignee,
			strings.Join(t.Tags, listSep),
			strings.Join(t.Dependencies, listSep),
			t.Notes,
			t.CreatedAt.UTC().Format(time.RFC3339),
			completion,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Read parses rows into import items. Rows with a blank description, a
// wrong field count or an unknown status are returned as failures and
// never become items. Only a malformed header fails the whole read.
func Read(r io.Reader) ([]tracker.ImportItem, []tracker.ImportFailure, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := cols["description"]; !ok {
		return nil, nil, ErrMissingDescriptionColumn
	}

	var (
		items    []tracker.ImportItem
		failures []tracker.ImportFailure
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				failures = append(failures, tracker.ImportFailure{Source: fmt.Sprintf("line %d", pe.StartLine), Err: err})
				continue
			}
			return items, failures, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		source := fmt.Sprintf("line %d", line)
		if len(rec) != len(header) {
			failures = append(failures, tracker.ImportFailure{
				Source: source,
				Err:    fmt.Errorf("expected %d fields, got %d", len(header), len(rec)),
			})
			continue
		}
		get := func(name string) string {
			if i, ok := cols[name]; ok {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		desc := get("description")
		if desc == "" {
			failures = append(failures, tracker.ImportFailure{Source: source, Err: model.ErrEmptyDescription})
			continue
		}
		item := tracker.ImportItem{
			Source: source,
			Request: tracker.CreateRequest{
				Description: desc,
				Category:    get("category"),
				Overrides: assembler.Overrides{
					Priority:     get("priority"),
					DueDate:      get("due_date"),
					Tags:         get("tags"),
					Complexity:   get("complexity"),
					Assignee:     get("assignee"),
					Notes:        get("notes"),
					Dependencies: splitList(get("dependencies")),
				},
			},
		}
		if h := get("estimated_hours"); h != "" {
			if v, err := strconv.ParseFloat(h, 64); err == nil {
				item.Request.Overrides.EstimatedHours = &v
			}
		}
		if s := get("status"); s != "" {
			st, err := model.ParseStatus(s)
			if err != nil {
				failures = append(failures, tracker.ImportFailure{Source: source, Err: err})
				continue
			}
			item.Status = st
		}
		items = append(items, item)
	}
	return items, failures, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSep)
}
