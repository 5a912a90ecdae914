package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskpilot/pkg/metrics"
	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/oracle"
)

var fixedNow = time.Date(2025, 2, 20, 9, 30, 0, 0, time.UTC)

type fakeOracle struct {
	reply   string
	err     error
	prompts []oracle.Prompt
	block   bool
}

func (f *fakeOracle) Name() string { return "fake" }

func (f *fakeOracle) Suggest(ctx context.Context, p oracle.Prompt) (string, error) {
	f.prompts = append(f.prompts, p)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func newEngine(o oracle.Oracle, opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewEngine(o, DefaultConfig(), nil, opts...)
}

func expectedDefaults() model.TaskAttributes {
	return model.TaskAttributes{
		DueDate:        "2025-02-21",
		Priority:       model.PriorityMedium,
		EstimatedHours: DefaultEstimatedHours,
		Tags:           []string{"general"},
		Complexity:     model.ComplexityMedium,
	}
}

func TestAnalyzeRejectsEmptyDescription(t *testing.T) {
	o := &fakeOracle{reply: "Priority: High"}
	_, err := newEngine(o).Analyze(context.Background(), "   \n", "Other")
	assert.ErrorIs(t, err, ErrEmptyDescription)
	assert.Empty(t, o.prompts, "oracle must not be called for blank text")
}

func TestAnalyzeOracleFailureReturnsDefaults(t *testing.T) {
	m := metrics.New(nil)
	o := &fakeOracle{err: errors.New("connection refused")}

	a, err := newEngine(o, WithMetrics(m)).Analyze(context.Background(), "Write docs", "Documentation")
	require.NoError(t, err)
	assert.Equal(t, expectedDefaults(), a.Attributes)
	assert.False(t, a.FromOracle)
	assert.Contains(t, a.Notice, "connection refused")
	assert.Len(t, o.prompts, 1, "no retries")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues(metrics.OutcomeFallback)))
}

func TestAnalyzeWithoutOracle(t *testing.T) {
	m := metrics.New(nil)
	a, err := newEngine(nil, WithMetrics(m)).Analyze(context.Background(), "Write docs", "")
	require.NoError(t, err)
	assert.Equal(t, expectedDefaults(), a.Attributes)
	assert.NotEmpty(t, a.Notice)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues(metrics.OutcomeUnconfigured)))
}

func TestAnalyzeTimeoutFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 10 * time.Millisecond
	o := &fakeOracle{block: true}
	e := NewEngine(o, cfg, nil, WithClock(func() time.Time { return fixedNow }))

	a, err := e.Analyze(context.Background(), "Slow oracle", "")
	require.NoError(t, err)
	assert.Equal(t, expectedDefaults(), a.Attributes)
	assert.False(t, a.FromOracle)
}

func TestAnalyzeMergesParsedFieldsOverDefaults(t *testing.T) {
	o := &fakeOracle{reply: "Due Date: 2025-03-01, Priority: High, Estimated Hours: 3"}
	a, err := newEngine(o).Analyze(context.Background(), "Fix login bug", "Bug Fix")
	require.NoError(t, err)

	assert.True(t, a.FromOracle)
	assert.Empty(t, a.Notice)
	assert.Equal(t, "2025-03-01", a.Attributes.DueDate)
	assert.Equal(t, model.PriorityHigh, a.Attributes.Priority)
	assert.Equal(t, 3.0, a.Attributes.EstimatedHours)
	assert.Equal(t, []string{"general"}, a.Attributes.Tags)
	assert.Equal(t, model.ComplexityMedium, a.Attributes.Complexity)

	require.Len(t, o.prompts, 1)
	assert.Contains(t, o.prompts[0].User, "Fix login bug")
	assert.Contains(t, o.prompts[0].User, "Category: Bug Fix")
	assert.Contains(t, o.prompts[0].User, "2025-02-20")
	assert.Contains(t, o.prompts[0].System, "High, Medium, Low")
}

func TestAnalyzeHoursBounds(t *testing.T) {
	cases := map[string]float64{
		"-5":     DefaultEstimatedHours,
		"0":      DefaultEstimatedHours,
		"0.5":    0.5,
		"40":     40,
		"100":    40,
		"lots":   DefaultEstimatedHours,
		"0.1":    0.5,
		"12.75h": 12.75,
	}
	for in, want := range cases {
		o := &fakeOracle{reply: "Estimated Hours: " + in}
		a, err := newEngine(o).Analyze(context.Background(), "Task", "")
		require.NoError(t, err)
		assert.Equal(t, want, a.Attributes.EstimatedHours, "input %q", in)
	}
}

// Every malformed response still yields attributes inside their domains.
func TestAnalyzeAlwaysWithinDomain(t *testing.T) {
	responses := []string{
		"",
		"garbage",
		":::",
		"Due Date: 99-99-99\nPriority: ???\nEstimated Hours: NaN\nTags: ,,,\nComplexity: impossible",
		"Priority: Critical",
		"Estimated Hours: 1e309",
		"Hours: " + strings.Repeat("9", 400),
		"Due Date:\nPriority:\nTime:",
		"\x00\xff Priority: High",
	}
	bounds := model.DefaultHoursBounds
	for _, r := range responses {
		a, err := newEngine(&fakeOracle{reply: r}).Analyze(context.Background(), "Task", "Other")
		require.NoError(t, err, "response %q", r)

		_, ok := model.ParseDate(a.Attributes.DueDate)
		assert.True(t, ok, "due date %q from %q", a.Attributes.DueDate, r)
		assert.True(t, model.ThreeLevel.Contains(a.Attributes.Priority), "priority %q from %q", a.Attributes.Priority, r)
		assert.GreaterOrEqual(t, a.Attributes.EstimatedHours, bounds.Min)
		assert.LessOrEqual(t, a.Attributes.EstimatedHours, bounds.Max)
		assert.NotEmpty(t, a.Attributes.Tags)
		assert.Contains(t, model.Complexities, a.Attributes.Complexity)
	}
}

func TestNewEngineSanitizesConfig(t *testing.T) {
	e := NewEngine(nil, Config{DefaultHours: -1}, nil)
	cfg := e.Config()
	assert.Equal(t, model.DefaultHoursBounds, cfg.Hours)
	assert.Equal(t, DefaultEstimatedHours, cfg.DefaultHours)

	e = NewEngine(nil, Config{DefaultHours: 2, Hours: model.HoursBounds{Min: 1, Max: 8}}, nil)
	assert.Equal(t, 2.0, e.Config().DefaultHours)
}
