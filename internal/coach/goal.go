package coach

import (
	"strings"
)

// GoalDeclaration holds the fields of a parsed goal-declaration command.
type GoalDeclaration struct {
	MainGoal string
	Reason   string
	Timeline string
}

// ParseGoalDeclaration parses the goal command template
// "Goal: <goal> | Reason: <reason> | Timeline: <timeline>". Line breaks are
// accepted in place of pipes, so the single-line and multi-line forms yield
// identical fields. The boolean reports whether the text is a goal
// declaration at all; reason and timeline stay optional.
func ParseGoalDeclaration(text string) (*GoalDeclaration, bool) {
	trimmed := strings.TrimSpace(text)
	if !hasFoldPrefix(trimmed, "goal:") {
		return nil, false
	}

	normalized := strings.NewReplacer("\r\n", "|", "\n", "|").Replace(trimmed)
	var decl GoalDeclaration
	for _, segment := range strings.Split(normalized, "|") {
		segment = strings.TrimSpace(segment)
		switch {
		case hasFoldPrefix(segment, "goal:"):
			decl.MainGoal = strings.TrimSpace(segment[len("goal:"):])
		case hasFoldPrefix(segment, "reason:"):
			decl.Reason = strings.TrimSpace(segment[len("reason:"):])
		case hasFoldPrefix(segment, "timeline:"):
			decl.Timeline = strings.TrimSpace(segment[len("timeline:"):])
		}
	}
	if decl.MainGoal == "" {
		return nil, false
	}
	return &decl, true
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
