package csvio

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskpilot/pkg/model"
)

func TestWriteThenRead(t *testing.T) {
	done := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	tasks := []model.Task{{
		ID:          "t1",
		Description: "Fix login bug, again",
		Category:    model.CategoryBugFix,
		TaskAttributes: model.TaskAttributes{
			DueDate: "2025-03-01", Priority: model.PriorityHigh, EstimatedHours: 3,
			Tags: []string{"auth", "web"}, Complexity: model.ComplexityHard,
		},
		Status:         model.StatusCompleted,
		ActualHours:    4.5,
		Assignee:       "ana",
		Dependencies:   []string{"t0"},
		Notes:          "said \"done\"",
		CreatedAt:      time.Date(2025, 2, 20, 9, 0, 0, 0, time.UTC),
		CompletionDate: &done,
	}}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tasks))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(Header, ","), lines[0])

	items, failures, err := Read(&buf)
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, items, 1)

	req := items[0].Request
	assert.Equal(t, "Fix login bug, again", req.Description)
	assert.Equal(t, "Bug Fix", req.Category)
	assert.Equal(t, "High", req.Overrides.Priority)
	assert.Equal(t, "2025-03-01", req.Overrides.DueDate)
	require.NotNil(t, req.Overrides.EstimatedHours)
	assert.Equal(t, 3.0, *req.Overrides.EstimatedHours)
	assert.Equal(t, "auth,web", req.Overrides.Tags)
	assert.Equal(t, []string{"t0"}, req.Overrides.Dependencies)
	assert.Equal(t, `said "done"`, req.Overrides.Notes)
	assert.Equal(t, model.StatusCompleted, items[0].Status)
}

func TestReadReportsBadRows(t *testing.T) {
	in := "description,category,priority,due_date,status\n" +
		"Write docs,Documentation,Low,2025-03-01,\n" +
		"  ,Development,High,2025-03-02,\n" +
		"Plan sprint,Meeting,High,2025-03-03,Abandoned\n" +
		"short,row\n"

	items, failures, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Write docs", items[0].Request.Description)
	assert.Equal(t, "line 2", items[0].Source)

	require.Len(t, failures, 3)
	assert.Equal(t, "line 3", failures[0].Source)
	assert.ErrorIs(t, failures[0].Err, model.ErrEmptyDescription)
	assert.ErrorIs(t, failures[1].Err, model.ErrInvalidStatus)
	assert.Equal(t, "line 5", failures[2].Source)
}

func TestReadRequiresDescriptionColumn(t *testing.T) {
	_, _, err := Read(strings.NewReader("title,priority\nx,High\n"))
	assert.ErrorIs(t, err, ErrMissingDescriptionColumn)
}

func TestReadEmptyInput(t *testing.T) {
	items, failures, err := Read(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, failures)
}
