// Package assembler merges analysis suggestions with explicit user overrides
// and produces a persist-ready task.
package assembler

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harrisonrobin/taskpilot/pkg/analysis"
	"github.com/harrisonrobin/taskpilot/pkg/metrics"
	"github.com/harrisonrobin/taskpilot/pkg/model"
)

// AutoDetect is the sentinel a form sends when the user left a field to
// the analysis. It is treated like an empty override.
const AutoDetect = "auto-detect"

// Overrides are user-supplied values. Empty strings, AutoDetect and a nil
// EstimatedHours mean "not overridden".
type Overrides struct {
	Priority       string
	DueDate        string
	EstimatedHours *float64
	// Tags is a comma separated list.
	Tags         string
	Complexity   string
	Assignee     string
	Notes        string
	Dependencies []string
}

func present(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, AutoDetect)
}

type Assembler struct {
	priorities model.PriorityScheme
	hours      model.HoursBounds
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Option func(*Assembler)

func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

func New(priorities model.PriorityScheme, hours model.HoursBounds, logger *zap.Logger, opts ...Option) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Assembler{priorities: priorities, hours: hours, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble applies overrides over suggested, right-biased, and initializes
// the operational fields. The returned task has no ID; the store assigns it.
func (a *Assembler) Assemble(description, category string, suggested model.TaskAttributes, ov Overrides) (*model.Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, model.ErrEmptyDescription
	}

	attrs := suggested
	attrs.Tags = append([]string(nil), suggested.Tags...)

	if present(ov.Priority) {
		if p, ok := a.priorities.Parse(ov.Priority); ok {
			attrs.Priority = p
		} else {
			a.discard(analysis.FieldPriority, ov.Priority)
		}
	}
	if present(ov.DueDate) {
		// A concrete date chosen by the user always wins unchecked.
		attrs.DueDate = strings.TrimSpace(ov.DueDate)
	}
	if ov.EstimatedHours != nil {
		if h, ok := a.hours.Normalize(*ov.EstimatedHours); ok {
			attrs.EstimatedHours = h
		} else {
			a.discard(analysis.FieldHours, ov.EstimatedHours)
		}
	}
	if present(ov.Tags) {
		if tags := splitTags(ov.Tags); len(tags) > 0 {
			attrs.Tags = tags
		}
	}
	if present(ov.Complexity) {
		if c, ok := model.ParseComplexity(ov.Complexity); ok {
			attrs.Complexity = c
		} else {
			a.discard(analysis.FieldComplexity, ov.Complexity)
		}
	}
	if !a.priorities.Contains(attrs.Priority) {
		attrs.Priority = model.PriorityMedium
	}
	if h, ok := a.hours.Normalize(attrs.EstimatedHours); ok {
		attrs.EstimatedHours = h
	} else {
		attrs.EstimatedHours = a.hours.Min
	}

	cat, ok := model.ParseCategory(category)
	if !ok {
		a.logger.Warn("unknown category, filing task under Other", zap.String("category", category))
		cat = model.CategoryOther
	}

	now := a.now().UTC()
	return &model.Task{
		Description:    description,
		Category:       cat,
		TaskAttributes: attrs,
		Status:         model.InitialStatus(),
		ActualHours:    0,
		Progress:       0,
		Assignee:       strings.TrimSpace(ov.Assignee),
		Notes:          strings.TrimSpace(ov.Notes),
		Dependencies:   DedupeIDs(ov.Dependencies),
		TimeEntries:    []model.TimeEntry{},
		CreatedAt:      now,
		LastUpdated:    now,
	}, nil
}

func (a *Assembler) discard(field string, value any) {
	a.logger.Warn("discarding invalid override", zap.String("field", field), zap.Any("value", value))
	if a.metrics != nil {
		a.metrics.DiscardedValuesTotal.WithLabelValues("override", field).Inc()
	}
}

// splitTags splits user supplied tags on commas. Elements are trimmed and
// empty ones dropped; unlike oracle output, markup characters are kept.
func splitTags(list string) []string {
	var tags []string
	for _, t := range strings.Split(list, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// DedupeIDs trims ids, drops empty ones and removes repeats, keeping the
// first occurrence. The result is never nil.
func DedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
