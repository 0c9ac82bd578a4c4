package models

import (
	"encoding/json"
	"testing"
)

func TestIsValidDirection(t *testing.T) {
	cases := []struct {
		dir   MessageDirection
		valid bool
	}{
		{DirectionInbound, true},
		{DirectionOutbound, true},
		{MessageDirection("sideways"), false},
		{MessageDirection(""), false},
	}
	for _, c := range cases {
		if got := IsValidDirection(c.dir); got != c.valid {
			t.Errorf("IsValidDirection(%q) = %v, want %v", c.dir, got, c.valid)
		}
	}
}

func TestCheckinDataIsEmpty(t *testing.T) {
	var nilData CheckinData
	if !nilData.IsEmpty() {
		t.Error("nil CheckinData should be empty")
	}
	if !(CheckinData{}).IsEmpty() {
		t.Error("empty CheckinData should be empty")
	}
	if (CheckinData{"mood": "8"}).IsEmpty() {
		t.Error("populated CheckinData should not be empty")
	}
}

func TestDailyLogHasCheckin(t *testing.T) {
	if (DailyLog{}).HasCheckin() {
		t.Error("log without payload should not count as check-in")
	}
	log := DailyLog{Payload: CheckinData{"sleep_hours": 7.0}}
	if !log.HasCheckin() {
		t.Error("log with payload should count as check-in")
	}
}

func TestGoalBreakdownIsCurrent(t *testing.T) {
	b := GoalBreakdown{StartDate: "2025-03-03", EndDate: "2025-03-09"}
	cases := []struct {
		date    string
		current bool
	}{
		{"2025-03-02", false},
		{"2025-03-03", true},
		{"2025-03-06", true},
		{"2025-03-09", true},
		{"2025-03-10", false},
	}
	for _, c := range cases {
		if got := b.IsCurrent(c.date); got != c.current {
			t.Errorf("IsCurrent(%q) = %v, want %v", c.date, got, c.current)
		}
	}
}

func TestSetGoalRequestValidate(t *testing.T) {
	req := SetGoalRequest{Phone: "+15551234567", MainGoal: "Run a 10k"}
	if err := req.Validate(); err != nil {
		t.Errorf("valid request failed validation: %v", err)
	}

	if err := (&SetGoalRequest{MainGoal: "Run"}).Validate(); err != ErrEmptyPhone {
		t.Errorf("expected ErrEmptyPhone, got %v", err)
	}
	if err := (&SetGoalRequest{Phone: "+1555"}).Validate(); err != ErrEmptyGoal {
		t.Errorf("expected ErrEmptyGoal, got %v", err)
	}
}

func TestAPIResponseBuilder(t *testing.T) {
	resp := NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage("done").
		WithResult(map[string]string{"key": "value"}).
		Build()

	if resp.Status != string(APIStatusOK) {
		t.Errorf("expected status %q, got %q", APIStatusOK, resp.Status)
	}
	if resp.Message != "done" {
		t.Errorf("expected message 'done', got %q", resp.Message)
	}
	if resp.Result == nil {
		t.Error("expected result to be set")
	}
}

func TestErrorResponseOmitsResult(t *testing.T) {
	data, err := json.Marshal(Error("boom"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["status"] != "error" {
		t.Errorf("expected status 'error', got %v", decoded["status"])
	}
	if _, present := decoded["result"]; present {
		t.Error("error response should omit result field")
	}
}
