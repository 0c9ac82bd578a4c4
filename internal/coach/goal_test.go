package coach

import "testing"

func TestParseGoalDeclarationPipeForm(t *testing.T) {
	decl, ok := ParseGoalDeclaration("Goal: Run a marathon | Reason: Health | Timeline: 6 months")
	if !ok {
		t.Fatal("expected declaration to parse")
	}
	if decl.MainGoal != "Run a marathon" {
		t.Errorf("MainGoal = %q", decl.MainGoal)
	}
	if decl.Reason != "Health" {
		t.Errorf("Reason = %q", decl.Reason)
	}
	if decl.Timeline != "6 months" {
		t.Errorf("Timeline = %q", decl.Timeline)
	}
}

func TestParseGoalDeclarationNewlineFormMatchesPipeForm(t *testing.T) {
	pipe, ok := ParseGoalDeclaration("Goal: Run a marathon | Reason: Health | Timeline: 6 months")
	if !ok {
		t.Fatal("pipe form failed to parse")
	}
	newline, ok := ParseGoalDeclaration("Goal: Run a marathon\nReason: Health\nTimeline: 6 months")
	if !ok {
		t.Fatal("newline form failed to parse")
	}
	if *pipe != *newline {
		t.Errorf("forms diverge: pipe %+v, newline %+v", *pipe, *newline)
	}
}

func TestParseGoalDeclarationOptionalFields(t *testing.T) {
	decl, ok := ParseGoalDeclaration("goal: read more")
	if !ok {
		t.Fatal("expected declaration to parse")
	}
	if decl.MainGoal != "read more" || decl.Reason != "" || decl.Timeline != "" {
		t.Errorf("unexpected fields: %+v", *decl)
	}
}

func TestParseGoalDeclarationRejections(t *testing.T) {
	rejected := []string{
		"I want to set a goal",
		"my goal: run more", // does not start with the command
		"Goal:  ",
		"Reason: Health | Goal: run",
		"",
	}
	for _, text := range rejected {
		if _, ok := ParseGoalDeclaration(text); ok {
			t.Errorf("expected rejection for %q", text)
		}
	}
}
