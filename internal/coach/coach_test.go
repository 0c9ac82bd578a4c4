package coach

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/HabitLoop/CheckinCoach/internal/genai"
	"github.com/HabitLoop/CheckinCoach/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// sequencedChat returns scripted replies in order and records the prompt of
// every call.
type sequencedChat struct {
	replies    []string
	err        error
	calls      int
	turnCounts []int
	lastUser   string
}

func (s *sequencedChat) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	s.calls++
	s.turnCounts = append(s.turnCounts, len(body.Messages))
	if last := body.Messages[len(body.Messages)-1]; last.OfUser != nil {
		s.lastUser = last.OfUser.Content.OfString.Value
	}
	if s.err != nil {
		return nil, s.err
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: reply}},
		},
	}, nil
}

const validBreakdownJSON = `[
	{"kind":"weekly","start_date":"2025-06-02","end_date":"2025-06-08","description":"Run twice"},
	{"kind":"weekly","start_date":"2025-06-09","end_date":"2025-06-15","description":"Run three times"},
	{"kind":"monthly","start_date":"2025-06-01","end_date":"2025-06-30","description":"Hit 40km total"}
]`

func TestDailyPlanEmbedsCheckinAndContext(t *testing.T) {
	chat := &sequencedChat{replies: []string{"Your plan for today."}}
	gen := NewGenerator(genai.NewClientWithChat(chat))

	checkin := models.CheckinData{"mood": "good", "sleep_hours": 7.0}
	recent := []models.DailyLog{
		{Date: "2025-06-07", Payload: models.CheckinData{"mood": "ok"}},
	}
	reply := gen.DailyPlan(context.Background(), checkin, "Ada", "- run more", recent)
	if reply != "Your plan for today." {
		t.Errorf("reply = %q", reply)
	}
	for _, want := range []string{"Ada", "mood: good", "sleep_hours: 7", "2025-06-07", "run more", "Goal alignment"} {
		if !strings.Contains(chat.lastUser, want) {
			t.Errorf("prompt missing %q:\n%s", want, chat.lastUser)
		}
	}
}

func TestDailyPlanApologyOnFailure(t *testing.T) {
	chat := &sequencedChat{err: errors.New("api down")}
	gen := NewGenerator(genai.NewClientWithChat(chat))
	if reply := gen.DailyPlan(context.Background(), models.CheckinData{"mood": "ok"}, "", "", nil); reply != ApologyText {
		t.Errorf("expected apology, got %q", reply)
	}
}

func TestGeneralResponseIncludesGoals(t *testing.T) {
	chat := &sequencedChat{replies: []string{"Keep at it!"}}
	gen := NewGenerator(genai.NewClientWithChat(chat))

	goals := []models.Goal{{GoalText: "run a marathon", Timeline: "6 months"}}
	reply := gen.GeneralResponse(context.Background(), "how am I doing?", "Ada", goals)
	if reply != "Keep at it!" {
		t.Errorf("reply = %q", reply)
	}
	if !strings.Contains(chat.lastUser, "run a marathon") {
		t.Errorf("prompt missing goal context:\n%s", chat.lastUser)
	}
}

func TestGoalBreakdownsFirstTry(t *testing.T) {
	chat := &sequencedChat{replies: []string{"Here you go:\n" + validBreakdownJSON}}
	gen := NewGenerator(genai.NewClientWithChat(chat))

	items := gen.GoalBreakdowns(context.Background(), "run a marathon", "6 months")
	if len(items) != 3 {
		t.Fatalf("expected 3 milestones, got %d", len(items))
	}
	if chat.calls != 1 {
		t.Errorf("expected 1 call, got %d", chat.calls)
	}
	if items[0].Kind != models.BreakdownWeekly || items[2].Kind != models.BreakdownMonthly {
		t.Errorf("kinds not preserved: %+v", items)
	}
}

func TestGoalBreakdownsRetryOnMalformedReply(t *testing.T) {
	chat := &sequencedChat{replies: []string{"I can't do JSON today", validBreakdownJSON}}
	gen := NewGenerator(genai.NewClientWithChat(chat))

	items := gen.GoalBreakdowns(context.Background(), "run a marathon", "")
	if len(items) != 3 {
		t.Fatalf("expected 3 milestones after retry, got %d", len(items))
	}
	if chat.calls != 2 {
		t.Errorf("expected 2 calls, got %d", chat.calls)
	}
	// Retry replays the failed reply as an assistant turn plus the
	// corrective instruction: 2 turns first, 4 turns on retry.
	if len(chat.turnCounts) != 2 || chat.turnCounts[0] != 2 || chat.turnCounts[1] != 4 {
		t.Errorf("turn counts = %v, want [2 4]", chat.turnCounts)
	}
}

func TestGoalBreakdownsEmptyAfterSecondFailure(t *testing.T) {
	chat := &sequencedChat{replies: []string{"nope", "still nope"}}
	gen := NewGenerator(genai.NewClientWithChat(chat))

	if items := gen.GoalBreakdowns(context.Background(), "run a marathon", ""); len(items) != 0 {
		t.Errorf("expected no milestones, got %+v", items)
	}
	if chat.calls != 2 {
		t.Errorf("expected exactly 2 calls, got %d", chat.calls)
	}
}

func TestGoalBreakdownsDropInvalidItems(t *testing.T) {
	reply := `[
		{"kind":"weekly","start_date":"2025-06-02","end_date":"2025-06-08","description":"Run twice"},
		{"kind":"daily","start_date":"2025-06-02","end_date":"2025-06-02","description":"bad kind"},
		{"kind":"weekly","start_date":"2025-06-20","end_date":"2025-06-10","description":"inverted range"}
	]`
	chat := &sequencedChat{replies: []string{reply}}
	gen := NewGenerator(genai.NewClientWithChat(chat))

	items := gen.GoalBreakdowns(context.Background(), "run a marathon", "")
	if len(items) != 1 {
		t.Fatalf("expected 1 valid milestone, got %d", len(items))
	}
	if items[0].Description != "Run twice" {
		t.Errorf("unexpected milestone: %+v", items[0])
	}
}

func TestWeeklyReportEmbedsComputedNumbers(t *testing.T) {
	chat := &sequencedChat{replies: []string{"Your week in review."}}
	gen := NewGenerator(genai.NewClientWithChat(chat))

	summary := WeeklySummary{
		UserName:         "Ada",
		Today:            "2025-06-08",
		ThisWeekCount:    5,
		LastWeekCount:    2,
		CompletenessRate: 71,
		LongestStreak:    3,
		Logs:             logsOn("2025-06-06", "2025-06-07"),
	}
	reply := gen.WeeklyReport(context.Background(), summary)
	if reply != "Your week in review." {
		t.Errorf("reply = %q", reply)
	}
	for _, want := range []string{"5 of 7", "2 of 7", "71%", "3 days", "TL;DR", "Next-week playbook"} {
		if !strings.Contains(chat.lastUser, want) {
			t.Errorf("prompt missing %q:\n%s", want, chat.lastUser)
		}
	}
}

func TestWeeklyReportApologyOnFailure(t *testing.T) {
	chat := &sequencedChat{err: errors.New("api down")}
	gen := NewGenerator(genai.NewClientWithChat(chat))
	if reply := gen.WeeklyReport(context.Background(), WeeklySummary{Today: "2025-06-08"}); reply != ApologyText {
		t.Errorf("expected apology, got %q", reply)
	}
}
