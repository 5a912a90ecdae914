package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/harrisonrobin/taskpilot/pkg/model"
)

// Field names used in Suggestion.Discarded and in metrics labels.
const (
	FieldDueDate    = "due_date"
	FieldPriority   = "priority"
	FieldHours      = "estimated_hours"
	FieldTags       = "tags"
	FieldComplexity = "complexity"
)

// Suggestion is the partial attribute set recovered from oracle text. Zero
// values mean the field was absent or every candidate for it was invalid.
type Suggestion struct {
	DueDate        string
	Priority       model.Priority
	EstimatedHours float64
	Tags           []string
	Complexity     model.Complexity

	// Discarded lists the fields that had at least one invalid candidate.
	Discarded []string
}

// ApplyTo overlays the recovered fields on attrs.
func (s Suggestion) ApplyTo(attrs model.TaskAttributes) model.TaskAttributes {
	if s.DueDate != "" {
		attrs.DueDate = s.DueDate
	}
	if s.Priority != "" {
		attrs.Priority = s.Priority
	}
	if s.EstimatedHours > 0 {
		attrs.EstimatedHours = s.EstimatedHours
	}
	if len(s.Tags) > 0 {
		attrs.Tags = append([]string(nil), s.Tags...)
	}
	if s.Complexity != "" {
		attrs.Complexity = s.Complexity
	}
	return attrs
}

var leadingNumber = regexp.MustCompile(`^[+-]?\d+(?:\.\d+)?`)

// ParseSuggestion extracts task attributes from free-form oracle output.
//
// The text is split into lines and each line into comma or semicolon
// separated segments; a segment without a colon continues the previous one,
// so "Tags: api, auth" survives intact. The part of a segment before its last
// colon is scanned case-insensitively for a field marker and the part after
// it is the candidate value. Later valid candidates replace earlier ones;
// invalid candidates are dropped and never clear an earlier valid value.
// ParseSuggestion never fails.
func ParseSuggestion(text string, scheme model.PriorityScheme, bounds model.HoursBounds) Suggestion {
	var s Suggestion
	discarded := map[string]bool{}
	reject := func(field string) {
		if !discarded[field] {
			discarded[field] = true
			s.Discarded = append(s.Discarded, field)
		}
	}

	for _, seg := range segments(text) {
		idx := strings.LastIndex(seg, ":")
		if idx < 0 {
			continue
		}
		key := strings.ToLower(seg[:idx])
		value := strings.TrimSpace(seg[idx+1:])

		switch {
		case strings.Contains(key, "due date"):
			if d, ok := parseDueDate(value); ok {
				s.DueDate = d
			} else {
				reject(FieldDueDate)
			}
		case strings.Contains(key, "priority"):
			if p, ok := scheme.Parse(value); ok {
				s.Priority = p
			} else {
				reject(FieldPriority)
			}
		case strings.Contains(key, "complexity"):
			if c, ok := model.ParseComplexity(value); ok {
				s.Complexity = c
			} else {
				reject(FieldComplexity)
			}
		case strings.Contains(key, "tags"):
			if tags := SplitTags(strings.Trim(value, "[]")); len(tags) > 0 {
				s.Tags = tags
			} else {
				reject(FieldTags)
			}
		case strings.Contains(key, "hours"), strings.Contains(key, "time"):
			if h, ok := parseHours(value, bounds); ok {
				s.EstimatedHours = h
			} else {
				reject(FieldHours)
			}
		}
	}
	return s
}

func segments(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		var current string
		started := false
		for _, piece := range strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ';' }) {
			if started && !strings.Contains(piece, ":") {
				current += "," + piece
				continue
			}
			if started {
				out = append(out, current)
			}
			current, started = piece, true
		}
		if started {
			out = append(out, current)
		}
	}
	return out
}

func parseDueDate(value string) (string, bool) {
	fields := strings.Fields(strings.Trim(value, " \t*_`\"'"))
	if len(fields) == 0 {
		return "", false
	}
	d, ok := model.ParseDate(strings.Trim(fields[0], "*_`\"'().,"))
	if !ok {
		return "", false
	}
	return model.FormatDate(d), true
}

func parseHours(value string, bounds model.HoursBounds) (float64, bool) {
	m := leadingNumber.FindString(strings.Trim(value, " \t*_`\"'"))
	if m == "" {
		return 0, false
	}
	h, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return bounds.Normalize(h)
}

// SplitTags splits a comma separated list, trimming whitespace and a leading
// '#' from every element and dropping empty ones. Order and duplicates are
// preserved and case is left alone.
func SplitTags(list string) []string {
	var tags []string
	for _, t := range strings.Split(list, ",") {
		t = strings.TrimSpace(strings.Trim(strings.TrimSpace(t), "#\"'`*"))
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
