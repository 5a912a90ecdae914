package model

import (
	"fmt"
	"strings"
)

// Priority is a task severity level. Severity order is global:
// Critical > High > Medium > Low. Which members are accepted is decided by
// the active PriorityScheme.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

var severityOrder = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Rank returns the severity rank of p, 0 being the most severe. Unknown
// priorities rank after every known one.
func (p Priority) Rank() int {
	for i, level := range severityOrder {
		if level == p {
			return i
		}
	}
	return len(severityOrder)
}

const (
	SchemeThreeLevel = "three-level"
	SchemeFourLevel  = "four-level"
)

// PriorityScheme is the set of priorities accepted by analysis parsing and
// override merging.
type PriorityScheme struct {
	name   string
	levels []Priority
}

var (
	ThreeLevel = PriorityScheme{name: SchemeThreeLevel, levels: []Priority{PriorityHigh, PriorityMedium, PriorityLow}}
	FourLevel  = PriorityScheme{name: SchemeFourLevel, levels: []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}}
)

// PrioritySchemeByName resolves a configured scheme name. An empty name
// selects the three-level scheme.
func PrioritySchemeByName(name string) (PriorityScheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SchemeThreeLevel, "3":
		return ThreeLevel, nil
	case SchemeFourLevel, "4":
		return FourLevel, nil
	}
	return PriorityScheme{}, fmt.Errorf("unknown priority scheme %q (want %s or %s)", name, SchemeThreeLevel, SchemeFourLevel)
}

func (s PriorityScheme) Name() string {
	if s.name == "" {
		return SchemeThreeLevel
	}
	return s.name
}

// Levels returns the members of the scheme, most severe first.
func (s PriorityScheme) Levels() []Priority {
	levels := s.levels
	if len(levels) == 0 {
		levels = ThreeLevel.levels
	}
	out := make([]Priority, len(levels))
	copy(out, levels)
	return out
}

func (s PriorityScheme) Contains(p Priority) bool {
	for _, level := range s.Levels() {
		if level == p {
			return true
		}
	}
	return false
}

// Parse is the single validation point for priority text coming from the
// oracle or from a user override.
func (s PriorityScheme) Parse(text string) (Priority, bool) {
	word := firstWord(text)
	for _, level := range s.Levels() {
		if strings.EqualFold(word, string(level)) {
			return level, true
		}
	}
	return "", false
}

// Complexity is an optional difficulty rating.
type Complexity string

const (
	ComplexityEasy   Complexity = "Easy"
	ComplexityMedium Complexity = "Medium"
	ComplexityHard   Complexity = "Hard"
)

var Complexities = []Complexity{ComplexityEasy, ComplexityMedium, ComplexityHard}

func ParseComplexity(text string) (Complexity, bool) {
	word := firstWord(text)
	for _, c := range Complexities {
		if strings.EqualFold(word, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusNotStarted  Status = "Not Started"
	StatusInProgress  Status = "In Progress"
	StatusUnderReview Status = "Under Review"
	StatusCompleted   Status = "Completed"
)

// Statuses lists every status in workflow order. The first element is the
// initial state of a new task.
var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusUnderReview, StatusCompleted}

func InitialStatus() Status { return Statuses[0] }

// ParseStatus accepts the canonical names case-insensitively, with or
// without the space, and "Pending" as an alias of Not Started.
func ParseStatus(text string) (Status, error) {
	key := normalizeKey(text)
	if key == "pending" || key == "todo" {
		return StatusNotStarted, nil
	}
	for _, s := range Statuses {
		if normalizeKey(string(s)) == key {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, text)
}

// Category classifies the kind of work.
type Category string

const (
	CategoryDevelopment   Category = "Development"
	CategoryBugFix        Category = "Bug Fix"
	CategoryReview        Category = "Review"
	CategoryDocumentation Category = "Documentation"
	CategoryMeeting       Category = "Meeting"
	CategoryOther         Category = "Other"
)

var Categories = []Category{
	CategoryDevelopment,
	CategoryBugFix,
	CategoryReview,
	CategoryDocumentation,
	CategoryMeeting,
	CategoryOther,
}

func ParseCategory(text string) (Category, bool) {
	key := normalizeKey(text)
	if key == "" {
		return "", false
	}
	for _, c := range Categories {
		if normalizeKey(string(c)) == key {
			return c, true
		}
	}
	return "", false
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

// firstWord strips markdown emphasis, quotes and trailing punctuation and
// returns the first whitespace separated word, so "**High** priority." is
// read as "High".
func firstWord(text string) string {
	text = strings.TrimSpace(strings.Trim(text, " \t*_`\"'[]()"))
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], " \t*_`\"'[]().,;:!")
}
