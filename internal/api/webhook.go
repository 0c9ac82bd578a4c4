package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/HabitLoop/CheckinCoach/internal/coach"
	"github.com/HabitLoop/CheckinCoach/internal/models"
)

// goalConfirmationText acknowledges a persisted goal declaration.
const goalConfirmationText = "Goal saved! I've broken it down into milestones and will keep them in mind when we talk about your progress."

// reminderText is the fixed nudge sent by the reminder sweep.
const reminderText = "Hey! I haven't heard from you in a bit. How are things going? Send me a quick check-in when you have a minute."

// processInbound runs the coaching pipeline for one inbound message:
// resolve the user, log the message, branch on intent, generate a reply,
// send it, and log the outbound message on send success. The returned SID is
// empty when the send failed; that failure is logged but not surfaced.
func (s *Server) processInbound(ctx context.Context, from, body, profileName string) (string, error) {
	user, err := s.st.UpsertUser(from, profileName, "")
	if err != nil {
		return "", fmt.Errorf("failed to resolve user: %w", err)
	}
	if _, err := s.st.AddMessage(user.ID, models.DirectionInbound, body); err != nil {
		return "", fmt.Errorf("failed to log inbound message: %w", err)
	}

	reply, err := s.buildReply(ctx, user, body)
	if err != nil {
		return "", err
	}
	return s.sendAndLog(ctx, user, reply), nil
}

// buildReply walks the intent decision chain, terminal on first match:
// weekly-report command, goal declaration, check-in, general fallback.
func (s *Server) buildReply(ctx context.Context, user models.User, body string) (string, error) {
	if strings.EqualFold(strings.TrimSpace(body), "weekly report") {
		slog.Debug("Server.buildReply: weekly report requested", "user_id", user.ID)
		return s.weeklyReport(ctx, user), nil
	}

	if decl, ok := coach.ParseGoalDeclaration(body); ok {
		slog.Debug("Server.buildReply: goal declaration", "user_id", user.ID)
		return s.recordGoal(ctx, user, decl)
	}

	if checkinData, ok := s.extractor.Extract(ctx, body); ok {
		slog.Debug("Server.buildReply: check-in extracted", "user_id", user.ID, "fields", len(checkinData))
		return s.dailyPlan(ctx, user, checkinData)
	}

	slog.Debug("Server.buildReply: general message", "user_id", user.ID)
	goals := s.activeGoals(user.ID)
	return s.generator.GeneralResponse(ctx, body, user.Name, goals), nil
}

// weeklyReport assembles both report windows and the goal context, then
// hands the computed summary to the generator.
func (s *Server) weeklyReport(ctx context.Context, user models.User) string {
	day := today()
	thisStart, lastStart, lastEnd := coach.ReportWindows(day)

	thisWeek, err := s.st.GetDailyLogsInRange(user.ID, thisStart, day)
	if err != nil {
		slog.Error("Server.weeklyReport: failed to fetch current window", "error", err, "user_id", user.ID)
	}
	lastWeek, err := s.st.GetDailyLogsInRange(user.ID, lastStart, lastEnd)
	if err != nil {
		slog.Error("Server.weeklyReport: failed to fetch prior window", "error", err, "user_id", user.ID)
	}
	goals := s.activeGoals(user.ID)
	milestones := s.currentMilestones(goals, day)

	summary := coach.BuildWeeklySummary(user.Name, day, thisWeek, lastWeek, goals, milestones)
	return s.generator.WeeklyReport(ctx, summary)
}

// recordGoal persists the declared goal, generates milestones best-effort,
// and returns the confirmation text. Goal creation failures propagate;
// breakdown failures never block the goal.
func (s *Server) recordGoal(ctx context.Context, user models.User, decl *coach.GoalDeclaration) (string, error) {
	goal, err := s.st.CreateGoal(user.ID, decl.MainGoal, decl.Reason, decl.Timeline)
	if err != nil {
		return "", fmt.Errorf("failed to create goal: %w", err)
	}

	breakdowns := s.generator.GoalBreakdowns(ctx, decl.MainGoal, decl.Timeline)
	if len(breakdowns) > 0 {
		if err := s.st.AddGoalBreakdowns(goal.ID, breakdowns); err != nil {
			slog.Error("Server.recordGoal: failed to store breakdowns, goal kept", "error", err, "goal_id", goal.ID)
		}
	}
	return goalConfirmationText, nil
}

// dailyPlan upserts today's log and generates the coaching plan with recent
// check-ins and goal context folded in. The upsert is a required write;
// context reads degrade to empty on failure.
func (s *Server) dailyPlan(ctx context.Context, user models.User, data models.CheckinData) (string, error) {
	day := today()
	if _, err := s.st.UpsertDailyLog(user.ID, day, data); err != nil {
		return "", fmt.Errorf("failed to store daily log: %w", err)
	}

	recent, err := s.st.GetRecentCheckins(user.ID, 7)
	if err != nil {
		slog.Error("Server.dailyPlan: failed to fetch recent check-ins", "error", err, "user_id", user.ID)
	}
	goals := s.activeGoals(user.ID)
	goalContext := formatGoalContext(goals, s.currentMilestones(goals, day))

	return s.generator.DailyPlan(ctx, data, user.Name, goalContext, recent), nil
}

// sendAndLog sends the reply and logs the outbound message only when the
// send succeeded. A failed send returns an empty SID; the webhook response
// stays success-shaped with a null message id.
func (s *Server) sendAndLog(ctx context.Context, user models.User, reply string) string {
	sid, err := s.msgService.SendMessage(ctx, user.Phone, reply)
	if err != nil {
		slog.Error("Server.sendAndLog: failed to send reply", "error", err, "user_id", user.ID)
		return ""
	}
	if _, err := s.st.AddMessage(user.ID, models.DirectionOutbound, reply); err != nil {
		// The user already has the reply; losing the log row is not worth a 500.
		slog.Error("Server.sendAndLog: failed to log outbound message", "error", err, "user_id", user.ID)
	}
	return sid
}

// activeGoals fetches the user's active goals, degrading to empty on read
// failure.
func (s *Server) activeGoals(userID int64) []models.Goal {
	goals, err := s.st.GetActiveGoals(userID)
	if err != nil {
		slog.Error("Server.activeGoals: failed to fetch goals", "error", err, "user_id", userID)
		return nil
	}
	return goals
}

// currentMilestones collects each goal's breakdowns whose date range covers
// the given day.
func (s *Server) currentMilestones(goals []models.Goal, day string) []models.GoalBreakdown {
	var current []models.GoalBreakdown
	for _, goal := range goals {
		breakdowns, err := s.st.GetGoalBreakdownsForGoal(goal.ID)
		if err != nil {
			slog.Error("Server.currentMilestones: failed to fetch breakdowns", "error", err, "goal_id", goal.ID)
			continue
		}
		for _, b := range breakdowns {
			if b.IsCurrent(day) {
				current = append(current, b)
			}
		}
	}
	return current
}

// formatGoalContext renders goals and their current milestones as the
// free-text context block of a daily-plan prompt.
func formatGoalContext(goals []models.Goal, milestones []models.GoalBreakdown) string {
	if len(goals) == 0 {
		return ""
	}
	var b strings.Builder
	for _, goal := range goals {
		fmt.Fprintf(&b, "- %s", goal.GoalText)
		if goal.Timeline != "" {
			fmt.Fprintf(&b, " (timeline: %s)", goal.Timeline)
		}
		b.WriteString("\n")
	}
	for _, m := range milestones {
		fmt.Fprintf(&b, "- current %s milestone: %s\n", m.Kind, m.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func today() string {
	return time.Now().UTC().Format(models.DateLayout)
}

// shiftDate moves a DateLayout string by the given number of days.
func shiftDate(date string, days int) string {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		slog.Error("api.shiftDate: invalid date", "date", date, "error", err)
		return date
	}
	return t.AddDate(0, 0, days).Format(models.DateLayout)
}
