package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/oracle"
)

// BuildPrompt embeds the description, the optional category and the
// reference date the oracle should count from.
func BuildPrompt(description, category string, today time.Time, scheme model.PriorityScheme, bounds model.HoursBounds) oracle.Prompt {
	levels := make([]string, 0, 4)
	for _, p := range scheme.Levels() {
		levels = append(levels, string(p))
	}
	complexities := make([]string, 0, len(model.Complexities))
	for _, c := range model.Complexities {
		complexities = append(complexities, string(c))
	}

	var sys strings.Builder
	sys.WriteString("You are a project management expert. Analyze the task and answer with exactly these lines and nothing else:\n")
	fmt.Fprintf(&sys, "Due Date: <YYYY-MM-DD>\n")
	fmt.Fprintf(&sys, "Priority: <one of %s>\n", strings.Join(levels, ", "))
	fmt.Fprintf(&sys, "Estimated Hours: <number between %g and %g>\n", bounds.Min, bounds.Max)
	fmt.Fprintf(&sys, "Tags: <comma separated keywords>\n")
	fmt.Fprintf(&sys, "Complexity: <one of %s>", strings.Join(complexities, ", "))

	var user strings.Builder
	fmt.Fprintf(&user, "Today is %s.\n", model.FormatDate(today))
	if c := strings.TrimSpace(category); c != "" {
		fmt.Fprintf(&user, "Category: %s\n", c)
	}
	fmt.Fprintf(&user, "Task: %s", strings.TrimSpace(description))

	return oracle.Prompt{System: sys.String(), User: user.String()}
}
