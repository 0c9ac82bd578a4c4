package checkin

import (
	"context"
	"errors"
	"testing"

	"github.com/HabitLoop/CheckinCoach/internal/genai"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// scriptedChat returns a canned reply and counts invocations.
type scriptedChat struct {
	reply string
	err   error
	calls int
}

func (s *scriptedChat) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.reply}},
		},
	}, nil
}

func TestParseStrict(t *testing.T) {
	data, ok := ParseStrict("Sleep 7h | Mood 8 | Energy 6 | Notes: Feeling good today")
	if !ok {
		t.Fatal("expected strict pattern to match")
	}
	if data["sleep_hours"] != 7.0 {
		t.Errorf("sleep_hours = %v, want 7", data["sleep_hours"])
	}
	if data["mood"] != "8" {
		t.Errorf("mood = %v, want \"8\"", data["mood"])
	}
	if data["energy"] != "6" {
		t.Errorf("energy = %v, want \"6\"", data["energy"])
	}
	if data["notes"] != "Feeling good today" {
		t.Errorf("notes = %v", data["notes"])
	}
}

func TestParseStrictVariants(t *testing.T) {
	matching := []string{
		"sleep 6 | mood 5 | energy 4 | notes: rough night",
		"SLEEP 8H | MOOD 9 | ENERGY 9 | NOTES: great",
		"  Sleep 7.5h|Mood 6|Energy 7|Notes: okay day  ",
	}
	for _, text := range matching {
		if _, ok := ParseStrict(text); !ok {
			t.Errorf("expected match for %q", text)
		}
	}

	nonMatching := []string{
		"Sleep 7h | Mood 8 | Energy 6",           // missing notes
		"Mood 8 | Sleep 7h | Energy 6 | Notes: x", // wrong order
		"slept great last night",
		"",
	}
	for _, text := range nonMatching {
		if _, ok := ParseStrict(text); ok {
			t.Errorf("expected no match for %q", text)
		}
	}
}

func TestStrictPatternSkipsLLM(t *testing.T) {
	chat := &scriptedChat{reply: `{"mood":"never used"}`}
	extractor := NewExtractor(genai.NewClientWithChat(chat))

	data, ok := extractor.Extract(context.Background(), "Sleep 7h | Mood 8 | Energy 6 | Notes: Feeling good today")
	if !ok {
		t.Fatal("expected check-in")
	}
	if chat.calls != 0 {
		t.Errorf("strict pattern must not invoke the LLM, got %d calls", chat.calls)
	}
	if data["mood"] != "8" {
		t.Errorf("mood = %v", data["mood"])
	}
}

func TestHasSignal(t *testing.T) {
	positive := []string{
		"yesterday I went for a run",             // domain + temporal
		"plan to hit the gym before work",        // temporal
		"feeling really tired this week",         // reflective
		"I struggled with my morning routine",    // domain + reflective
	}
	for _, text := range positive {
		if !HasSignal(text) {
			t.Errorf("expected signal in %q", text)
		}
	}

	negative := []string{
		"what's the weather like?",
		"ok",
		"thanks!",
	}
	for _, text := range negative {
		if HasSignal(text) {
			t.Errorf("expected no signal in %q", text)
		}
	}
}

func TestExtractNoSignalSkipsLLM(t *testing.T) {
	chat := &scriptedChat{reply: `{"mood":"8"}`}
	extractor := NewExtractor(genai.NewClientWithChat(chat))

	if _, ok := extractor.Extract(context.Background(), "what's the weather like?"); ok {
		t.Error("signal-free text must not yield a check-in")
	}
	if chat.calls != 0 {
		t.Errorf("signal-free text must not invoke the LLM, got %d calls", chat.calls)
	}
}

func TestExtractFlexible(t *testing.T) {
	chat := &scriptedChat{reply: "Here's what I extracted:\n" +
		`{"yesterday_activities": ["gym", "meal prep"], "mood": "good", "sleep_hours": 6.5}` +
		"\nLet me know if you need more."}
	extractor := NewExtractor(genai.NewClientWithChat(chat))

	data, ok := extractor.Extract(context.Background(), "yesterday I hit the gym and meal prepped, slept about 6.5 hours")
	if !ok {
		t.Fatal("expected check-in")
	}
	if data["mood"] != "good" {
		t.Errorf("mood = %v", data["mood"])
	}
	if data["sleep_hours"] != 6.5 {
		t.Errorf("sleep_hours = %v", data["sleep_hours"])
	}
	if chat.calls != 1 {
		t.Errorf("expected exactly 1 LLM call, got %d", chat.calls)
	}
}

func TestExtractFlexibleNullReply(t *testing.T) {
	chat := &scriptedChat{reply: "null"}
	extractor := NewExtractor(genai.NewClientWithChat(chat))
	if _, ok := extractor.Extract(context.Background(), "feeling chatty today"); ok {
		t.Error("null reply must yield no check-in")
	}
}

func TestExtractFlexibleEmptyObject(t *testing.T) {
	chat := &scriptedChat{reply: "{}"}
	extractor := NewExtractor(genai.NewClientWithChat(chat))
	if _, ok := extractor.Extract(context.Background(), "feeling chatty today"); ok {
		t.Error("empty object must yield no check-in")
	}
}

func TestExtractFlexibleNullFieldsDropped(t *testing.T) {
	chat := &scriptedChat{reply: `{"mood": null, "energy": null}`}
	extractor := NewExtractor(genai.NewClientWithChat(chat))
	if _, ok := extractor.Extract(context.Background(), "feeling okay"); ok {
		t.Error("object of only nulls must yield no check-in")
	}
}

func TestExtractFlexibleLLMFailure(t *testing.T) {
	chat := &scriptedChat{err: errors.New("api down")}
	extractor := NewExtractor(genai.NewClientWithChat(chat))
	// LLM failure is absence, not an error surfaced to the caller.
	if _, ok := extractor.Extract(context.Background(), "feeling tired today"); ok {
		t.Error("LLM failure must yield no check-in")
	}
}

func TestExtractFlexibleMalformedJSON(t *testing.T) {
	chat := &scriptedChat{reply: `{"mood": broken}`}
	extractor := NewExtractor(genai.NewClientWithChat(chat))
	if _, ok := extractor.Extract(context.Background(), "feeling tired today"); ok {
		t.Error("malformed JSON must yield no check-in")
	}
}
