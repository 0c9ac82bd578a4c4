// Package coach builds LLM prompts from check-in and goal state and returns
// generated coaching text. Prompt assembly is deterministic; the model only
// ever sees numbers this package computed itself.
package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/HabitLoop/CheckinCoach/internal/genai"
	"github.com/HabitLoop/CheckinCoach/internal/models"
	"github.com/HabitLoop/CheckinCoach/internal/util"
)

// ApologyText is sent to the user whenever text generation fails. The user
// always receives a reply, never silence.
const ApologyText = "Sorry, I'm having trouble putting a response together right now. Please try again in a few minutes."

// maxRecentCheckins bounds how many prior check-ins a daily plan prompt
// summarizes.
const maxRecentCheckins = 3

const coachPersona = `You are a supportive, practical behavior coach messaging a client over WhatsApp. ` +
	`Be concise, warm, and concrete. Use short paragraphs suitable for a chat message. Never invent data the client did not report.`

const goalCommandInstruction = `If the client asks how to set a goal or says they want to set one, reply with exactly this template and nothing else: ` +
	`Goal: <goal> | Reason: <reason> | Timeline: <timeline>`

const breakdownSystemPrompt = `You are a planning assistant that breaks a personal goal into milestones. ` +
	`Respond with a JSON array of 6 to 8 milestone objects and nothing else. Each object has the fields ` +
	`"kind" (either "weekly" or "monthly"), "start_date" and "end_date" (calendar dates as YYYY-MM-DD, start_date <= end_date), ` +
	`and "description" (one actionable sentence).`

const breakdownRetryPrompt = `That response could not be parsed. Respond again with only a valid JSON array of 6 to 8 milestone objects, ` +
	`each with the fields "kind", "start_date", "end_date", "description", and no surrounding text.`

// Generator produces coaching text through the GenAI client.
type Generator struct {
	ai *genai.Client
}

// NewGenerator creates a generator using the given GenAI client.
func NewGenerator(ai *genai.Client) *Generator {
	return &Generator{ai: ai}
}

// DailyPlan generates a coaching plan from today's check-in. Recent prior
// check-ins (up to 3) and active-goal context are folded into the prompt as
// trend and alignment material.
func (g *Generator) DailyPlan(ctx context.Context, checkin models.CheckinData, userName, goalContext string, recent []models.DailyLog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s just sent their daily check-in:\n%s\n", displayName(userName), formatCheckin(checkin))

	if len(recent) > 0 {
		b.WriteString("\nRecent check-ins, newest first:\n")
		for i, log := range recent {
			if i >= maxRecentCheckins {
				break
			}
			fmt.Fprintf(&b, "%s: %s\n", log.Date, compactPayload(log.Payload))
		}
	}
	if goalContext != "" {
		fmt.Fprintf(&b, "\nActive goals and current milestones:\n%s\n", goalContext)
	}

	b.WriteString("\nWrite their coaching reply with exactly five parts:\n" +
		"1. Reflection on the previous day\n" +
		"2. Today's focus areas\n" +
		"3. Behavior insights\n" +
		"4. Goal alignment\n" +
		"5. A short motivational close\n")

	reply, err := g.ai.GeneratePrompt(ctx, coachPersona, b.String())
	if err != nil {
		slog.Error("Generator.DailyPlan: generation failed", "error", err)
		return ApologyText
	}
	return reply
}

// GeneralResponse answers free-form non-check-in messages, with active goals
// as context. Goal-setting questions get the literal command template.
func (g *Generator) GeneralResponse(ctx context.Context, message, userName string, goals []models.Goal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s sent this message:\n%s\n", displayName(userName), message)
	if len(goals) > 0 {
		b.WriteString("\nTheir active goals:\n")
		for _, goal := range goals {
			fmt.Fprintf(&b, "- %s\n", formatGoal(goal))
		}
	}

	system := coachPersona + " " + goalCommandInstruction
	reply, err := g.ai.GeneratePrompt(ctx, system, b.String())
	if err != nil {
		slog.Error("Generator.GeneralResponse: generation failed", "error", err)
		return ApologyText
	}
	return reply
}

// GoalBreakdowns asks the model for weekly/monthly milestones for a new
// goal. On a malformed response it retries once with a corrective follow-up
// in the same conversation; a second failure yields an empty list. The goal
// itself is saved regardless, breakdowns are best-effort.
func (g *Generator) GoalBreakdowns(ctx context.Context, mainGoal, timeline string) []models.GoalBreakdown {
	user := fmt.Sprintf("Goal: %s", mainGoal)
	if timeline != "" {
		user += fmt.Sprintf("\nTimeline: %s", timeline)
	}
	turns := []genai.Turn{
		{Role: genai.RoleSystem, Content: breakdownSystemPrompt},
		{Role: genai.RoleUser, Content: user},
	}

	reply, err := g.ai.GenerateWithHistory(ctx, turns)
	if err != nil {
		slog.Error("Generator.GoalBreakdowns: generation failed", "error", err)
		return nil
	}
	if items, err := parseBreakdowns(reply); err == nil {
		return items
	} else {
		slog.Warn("Generator.GoalBreakdowns: unparseable response, retrying once", "error", err)
	}

	turns = append(turns,
		genai.Turn{Role: genai.RoleAssistant, Content: reply},
		genai.Turn{Role: genai.RoleUser, Content: breakdownRetryPrompt},
	)
	reply, err = g.ai.GenerateWithHistory(ctx, turns)
	if err != nil {
		slog.Error("Generator.GoalBreakdowns: retry generation failed", "error", err)
		return nil
	}
	items, err := parseBreakdowns(reply)
	if err != nil {
		slog.Error("Generator.GoalBreakdowns: retry still unparseable, skipping breakdowns", "error", err)
		return nil
	}
	return items
}

// WeeklyReport renders the computed summary numbers, per-day payloads, and
// goal context into a fixed-structure report prompt.
func (g *Generator) WeeklyReport(ctx context.Context, summary WeeklySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %s's weekly progress report as of %s.\n\n", displayName(summary.UserName), summary.Today)
	fmt.Fprintf(&b, "Computed stats (use these numbers as-is, do not recompute):\n")
	fmt.Fprintf(&b, "- Check-ins this week: %d of 7\n", summary.ThisWeekCount)
	fmt.Fprintf(&b, "- Check-ins the week before: %d of 7\n", summary.LastWeekCount)
	fmt.Fprintf(&b, "- Completeness: %d%%\n", summary.CompletenessRate)
	fmt.Fprintf(&b, "- Longest streak this week: %d days\n", summary.LongestStreak)

	if len(summary.Logs) > 0 {
		b.WriteString("\nThis week's check-ins by day:\n")
		for _, log := range summary.Logs {
			fmt.Fprintf(&b, "%s: %s\n", log.Date, compactPayload(log.Payload))
		}
	}
	if len(summary.Goals) > 0 {
		b.WriteString("\nActive goals:\n")
		for _, goal := range summary.Goals {
			fmt.Fprintf(&b, "- %s\n", formatGoal(goal))
		}
	}
	if len(summary.Milestones) > 0 {
		b.WriteString("\nCurrent milestones:\n")
		for _, m := range summary.Milestones {
			fmt.Fprintf(&b, "- [%s %s to %s] %s\n", m.Kind, m.StartDate, m.EndDate, m.Description)
		}
	}

	b.WriteString("\nStructure the report with exactly these sections:\n" +
		"1. TL;DR\n" +
		"2. Scores and streaks\n" +
		"3. Week-over-week comparison\n" +
		"4. Top 3 insights\n" +
		"5. Next-week playbook\n")

	reply, err := g.ai.GeneratePrompt(ctx, coachPersona, b.String())
	if err != nil {
		slog.Error("Generator.WeeklyReport: generation failed", "error", err)
		return ApologyText
	}
	return reply
}

// breakdownItem is the JSON shape the breakdown prompt asks for.
type breakdownItem struct {
	Kind        string `json:"kind"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Description string `json:"description"`
}

// parseBreakdowns scrapes the first JSON array out of a model reply and
// validates every milestone. Invalid items are dropped; an empty result is
// an error so the caller can retry.
func parseBreakdowns(reply string) ([]models.GoalBreakdown, error) {
	raw, ok := util.ExtractJSONArray(reply)
	if !ok {
		return nil, fmt.Errorf("no JSON array in response")
	}
	var items []breakdownItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("failed to parse milestones: %w", err)
	}

	breakdowns := make([]models.GoalBreakdown, 0, len(items))
	for _, item := range items {
		kind := models.BreakdownKind(strings.ToLower(strings.TrimSpace(item.Kind)))
		if kind != models.BreakdownWeekly && kind != models.BreakdownMonthly {
			slog.Debug("parseBreakdowns: dropping milestone with unknown kind", "kind", item.Kind)
			continue
		}
		if item.StartDate == "" || item.EndDate == "" || item.StartDate > item.EndDate {
			slog.Debug("parseBreakdowns: dropping milestone with invalid range", "start", item.StartDate, "end", item.EndDate)
			continue
		}
		if strings.TrimSpace(item.Description) == "" {
			continue
		}
		breakdowns = append(breakdowns, models.GoalBreakdown{
			Kind:        kind,
			StartDate:   item.StartDate,
			EndDate:     item.EndDate,
			Description: strings.TrimSpace(item.Description),
		})
	}
	if len(breakdowns) == 0 {
		return nil, fmt.Errorf("no valid milestones in response")
	}
	return breakdowns, nil
}

// formatCheckin renders every present check-in field, keys sorted so the
// prompt is deterministic.
func formatCheckin(data models.CheckinData) string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", key, renderValue(data[key]))
	}
	return b.String()
}

// compactPayload renders a check-in payload as one JSON line for trend
// summaries.
func compactPayload(data models.CheckinData) string {
	if data.IsEmpty() {
		return "(no check-in)"
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "(unreadable check-in)"
	}
	return string(raw)
}

func formatGoal(goal models.Goal) string {
	s := goal.GoalText
	if goal.Reason != "" {
		s += fmt.Sprintf(" (reason: %s)", goal.Reason)
	}
	if goal.Timeline != "" {
		s += fmt.Sprintf(" (timeline: %s)", goal.Timeline)
	}
	return s
}

func renderValue(v interface{}) string {
	if list, ok := v.([]interface{}); ok {
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%v", v)
}

func displayName(name string) string {
	if name == "" {
		return "The client"
	}
	return name
}
