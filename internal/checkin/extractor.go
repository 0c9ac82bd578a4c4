// Package checkin converts free-form user text into structured check-in
// records.
//
// Resolution is two-stage: a strict fixed-format pattern first, then an
// LLM-based extraction gated by a heuristic signal pre-filter. Both stages
// report absence ("not a check-in") rather than errors.
package checkin

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/HabitLoop/CheckinCoach/internal/genai"
	"github.com/HabitLoop/CheckinCoach/internal/models"
	"github.com/HabitLoop/CheckinCoach/internal/util"
)

// strictPattern matches the fixed check-in format:
// "Sleep <number>h | Mood <int> | Energy <int> | Notes: <text>"
// (case-insensitive, flexible spacing).
var strictPattern = regexp.MustCompile(`(?i)^\s*sleep\s+(\d+(?:\.\d+)?)\s*h?\s*\|\s*mood\s+(\d+)\s*\|\s*energy\s+(\d+)\s*\|\s*notes:\s*(.*\S)\s*$`)

// Signal keyword classes for the flexible-extraction pre-filter.
// A message qualifies when any class matches (logical OR).
var (
	domainKeywords = []string{
		"yesterday", "routine", "goals", "goal", "habit", "workout",
		"exercise", "slept", "sleep", "mood", "energy", "check-in", "checkin",
	}
	temporalKeywords = []string{
		"yesterday", "this morning", "last night", "today", "tonight",
		"plan to", "planning to", "going to", "woke up",
	}
	reflectiveKeywords = []string{
		"feeling", "feel", "felt", "tired", "struggled", "struggling",
		"proud", "stressed", "anxious", "motivated", "exhausted", "grateful",
	}
)

const extractionSystemPrompt = `You are a data extraction assistant for a behavior coaching service. ` +
	`Extract daily check-in information from the user's message into a single JSON object with these optional fields: ` +
	`"yesterday_activities", "yesterday_routine", "yesterday_highlights", "yesterday_challenges", ` +
	`"mood", "energy", "motivation", "sleep_hours", "sleep_quality", ` +
	`"today_plans", "today_priorities", "today_goals", "notes", "reflections", "concerns". ` +
	`Use strings, numbers, or arrays of strings as values. Include only fields the message actually supports. ` +
	`If the message carries no check-in content at all, respond with the literal null. ` +
	`Respond with only the JSON object or null, no explanation.`

// Extractor resolves free-form text into check-in data.
type Extractor struct {
	ai *genai.Client
}

// NewExtractor creates an extractor using the given GenAI client.
func NewExtractor(ai *genai.Client) *Extractor {
	return &Extractor{ai: ai}
}

// Extract resolves text into a check-in record. The boolean reports whether
// a check-in was found; false means "not a check-in", never an error
// condition the caller should surface.
func (e *Extractor) Extract(ctx context.Context, text string) (models.CheckinData, bool) {
	if data, ok := ParseStrict(text); ok {
		slog.Debug("Extractor matched strict check-in pattern")
		return data, true
	}
	if !HasSignal(text) {
		slog.Debug("Extractor found no check-in signal, skipping LLM extraction")
		return nil, false
	}
	return e.extractFlexible(ctx, text)
}

// ParseStrict maps the fixed-format pattern directly to a record without
// any LLM involvement. Sleep hours keep their numeric value; mood and
// energy stay literal strings.
func ParseStrict(text string) (models.CheckinData, bool) {
	m := strictPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	sleep, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, false
	}
	return models.CheckinData{
		"sleep_hours": sleep,
		"mood":        m[2],
		"energy":      m[3],
		"notes":       m[4],
	}, true
}

// HasSignal reports whether text carries any of the three signal classes
// (domain, temporal, reflective) that justify an LLM extraction attempt.
func HasSignal(text string) bool {
	lower := strings.ToLower(text)
	return matchesAny(lower, domainKeywords) ||
		matchesAny(lower, temporalKeywords) ||
		matchesAny(lower, reflectiveKeywords)
}

func matchesAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// extractFlexible asks the model for a structured JSON object and scrapes
// the first top-level object from the reply. Any failure along the way is
// logged and collapses to "no check-in extracted".
func (e *Extractor) extractFlexible(ctx context.Context, text string) (models.CheckinData, bool) {
	reply, err := e.ai.GeneratePrompt(ctx, extractionSystemPrompt, text)
	if err != nil {
		slog.Error("Extractor LLM extraction failed, treating as no check-in", "error", err)
		return nil, false
	}

	raw, ok := util.ExtractJSONObject(reply)
	if !ok {
		slog.Debug("Extractor found no JSON object in model reply")
		return nil, false
	}

	var data models.CheckinData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		slog.Debug("Extractor failed to parse model JSON, treating as no check-in", "error", err)
		return nil, false
	}

	// Drop explicit nulls so "at least one populated field" means what it says.
	for key, value := range data {
		if value == nil {
			delete(data, key)
		}
	}
	if data.IsEmpty() {
		return nil, false
	}
	return data, true
}
