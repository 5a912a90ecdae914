package assembler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskpilot/pkg/model"
)

var fixedNow = time.Date(2025, 2, 20, 9, 30, 0, 0, time.FixedZone("CET", 3600))

func newAssembler() *Assembler {
	return New(model.ThreeLevel, model.DefaultHoursBounds, nil, WithClock(func() time.Time { return fixedNow }))
}

func suggestion() model.TaskAttributes {
	return model.TaskAttributes{
		DueDate:        "2025-03-01",
		Priority:       model.PriorityLow,
		EstimatedHours: 3,
		Tags:           []string{"general"},
		Complexity:     model.ComplexityMedium,
	}
}

func hours(h float64) *float64 { return &h }

func TestAssembleOverrideWins(t *testing.T) {
	task, err := newAssembler().Assemble("Fix login bug", "Bug Fix", suggestion(), Overrides{Priority: "High"})
	require.NoError(t, err)
	assert.Equal(t, model.PriorityHigh, task.Priority)
}

func TestAssembleAbsentOrSentinelKeepsSuggestion(t *testing.T) {
	for _, p := range []string{"", "  ", "auto-detect", "Auto-Detect"} {
		task, err := newAssembler().Assemble("Fix login bug", "Bug Fix", suggestion(), Overrides{Priority: p})
		require.NoError(t, err)
		assert.Equal(t, model.PriorityLow, task.Priority, "override %q", p)
	}
}

func TestAssembleInvalidOverridesAreDiscarded(t *testing.T) {
	task, err := newAssembler().Assemble("Fix login bug", "Bug Fix", suggestion(), Overrides{
		Priority:       "Critical",
		EstimatedHours: hours(-2),
		Complexity:     "trivial",
	})
	require.NoError(t, err)
	assert.Equal(t, model.PriorityLow, task.Priority)
	assert.Equal(t, 3.0, task.EstimatedHours)
	assert.Equal(t, model.ComplexityMedium, task.Complexity)
}

func TestAssembleHoursOverrideClamped(t *testing.T) {
	cases := map[float64]float64{0.5: 0.5, 40: 40, 100: 40, 0.2: 0.5, 7: 7}
	for in, want := range cases {
		task, err := newAssembler().Assemble("Task", "Other", suggestion(), Overrides{EstimatedHours: hours(in)})
		require.NoError(t, err)
		assert.Equal(t, want, task.EstimatedHours, "override %v", in)
	}
}

func TestAssembleReclampsSuggestedHours(t *testing.T) {
	s := suggestion()
	s.EstimatedHours = 90
	task, err := newAssembler().Assemble("Task", "Other", s, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, 40.0, task.EstimatedHours)
}

func TestAssembleDueDateOverrideTrusted(t *testing.T) {
	task, err := newAssembler().Assemble("Task", "Other", suggestion(), Overrides{DueDate: "2030-12-24"})
	require.NoError(t, err)
	assert.Equal(t, "2030-12-24", task.DueDate)
}

func TestAssembleTagsOverride(t *testing.T) {
	task, err := newAssembler().Assemble("Task", "Other", suggestion(), Overrides{Tags: " Backend ,api,, Backend "})
	require.NoError(t, err)
	assert.Equal(t, []string{"Backend", "api", "Backend"}, task.Tags)

	task, err = newAssembler().Assemble("Task", "Other", suggestion(), Overrides{Tags: " , "})
	require.NoError(t, err)
	assert.Equal(t, []string{"general"}, task.Tags)
}

func TestAssembleTagsOverrideKeepsLiteralText(t *testing.T) {
	task, err := newAssembler().Assemble("Task", "Other", suggestion(), Overrides{Tags: "#urgent, *x*, \"q3\""})
	require.NoError(t, err)
	assert.Equal(t, []string{"#urgent", "*x*", `"q3"`}, task.Tags)
}

func TestAssembleInitializesOperationalFields(t *testing.T) {
	task, err := newAssembler().Assemble("  Fix login bug  ", "bug fix", suggestion(), Overrides{
		Assignee:     " sam ",
		Dependencies: []string{"a", " b", "a", ""},
	})
	require.NoError(t, err)

	assert.Equal(t, "Fix login bug", task.Description)
	assert.Equal(t, model.CategoryBugFix, task.Category)
	assert.Equal(t, model.StatusNotStarted, task.Status)
	assert.Zero(t, task.ActualHours)
	assert.Zero(t, task.Progress)
	assert.NotNil(t, task.TimeEntries)
	assert.Empty(t, task.TimeEntries)
	assert.Nil(t, task.CompletionDate)
	assert.Equal(t, "sam", task.Assignee)
	assert.Equal(t, []string{"a", "b"}, task.Dependencies)
	assert.Equal(t, time.UTC, task.CreatedAt.Location())
	assert.True(t, task.CreatedAt.Equal(fixedNow))
	assert.Equal(t, task.CreatedAt, task.LastUpdated)
}

func TestAssembleUnknownCategoryFallsBackToOther(t *testing.T) {
	task, err := newAssembler().Assemble("Task", "Gardening", suggestion(), Overrides{})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryOther, task.Category)
}

func TestAssembleRejectsEmptyDescription(t *testing.T) {
	_, err := newAssembler().Assemble(" \t", "Other", suggestion(), Overrides{Priority: "High", DueDate: "2025-01-01"})
	assert.ErrorIs(t, err, model.ErrEmptyDescription)
}

func TestAssembleDoesNotAliasSuggestedTags(t *testing.T) {
	s := suggestion()
	task, err := newAssembler().Assemble("Task", "Other", s, Overrides{})
	require.NoError(t, err)
	task.Tags[0] = "changed"
	assert.Equal(t, "general", s.Tags[0])
}
