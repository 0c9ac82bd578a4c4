package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/HabitLoop/CheckinCoach/internal/models"
	"github.com/HabitLoop/CheckinCoach/internal/phone"
)

// normalizePhone canonicalizes a phone identity before it touches the users
// table, so every backend keys on the same form.
func normalizePhone(raw string) string {
	return phone.Normalize(raw)
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// today returns the current UTC calendar date in models.DateLayout.
func today() string {
	return time.Now().UTC().Format(models.DateLayout)
}

// shiftDate moves a models.DateLayout date by the given number of days.
func shiftDate(date string, days int) (string, error) {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t.AddDate(0, 0, days).Format(models.DateLayout), nil
}

// marshalPayload renders a check-in payload as JSON text for storage.
// An empty payload is stored as NULL.
func marshalPayload(payload models.CheckinData) (interface{}, error) {
	if payload.IsEmpty() {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal check-in payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload decodes stored JSON text into a check-in payload.
// Corrupt payloads are logged and treated as empty rather than failing the read.
func unmarshalPayload(raw sql.NullString) models.CheckinData {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var payload models.CheckinData
	if err := json.Unmarshal([]byte(raw.String), &payload); err != nil {
		slog.Error("store: failed to unmarshal daily log payload, treating as empty", "error", err)
		return nil
	}
	return payload
}

// scanUser scans a User from sql.Rows.
func scanUser(rows *sql.Rows) (models.User, error) {
	var u models.User
	var name sql.NullString
	if err := rows.Scan(&u.ID, &u.Phone, &name, &u.Timezone, &u.CreatedAt); err != nil {
		return u, fmt.Errorf("scan user failed: %w", err)
	}
	u.Name = name.String
	return u, nil
}

// scanUserRow scans a User from a single sql.Row.
func scanUserRow(row *sql.Row) (models.User, error) {
	var u models.User
	var name sql.NullString
	if err := row.Scan(&u.ID, &u.Phone, &name, &u.Timezone, &u.CreatedAt); err != nil {
		return u, err
	}
	u.Name = name.String
	return u, nil
}

// scanDailyLog scans a DailyLog from sql.Rows.
func scanDailyLog(rows *sql.Rows) (models.DailyLog, error) {
	var d models.DailyLog
	var payload sql.NullString
	if err := rows.Scan(&d.ID, &d.UserID, &d.Date, &payload, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return d, fmt.Errorf("scan daily log failed: %w", err)
	}
	d.Payload = unmarshalPayload(payload)
	return d, nil
}

// scanDailyLogRow scans a DailyLog from a single sql.Row.
func scanDailyLogRow(row *sql.Row) (models.DailyLog, error) {
	var d models.DailyLog
	var payload sql.NullString
	if err := row.Scan(&d.ID, &d.UserID, &d.Date, &payload, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return d, err
	}
	d.Payload = unmarshalPayload(payload)
	return d, nil
}

// scanGoal scans a Goal from sql.Rows.
func scanGoal(rows *sql.Rows) (models.Goal, error) {
	var g models.Goal
	var reason, timeline sql.NullString
	if err := rows.Scan(&g.ID, &g.UserID, &g.GoalText, &reason, &timeline, &g.Active, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return g, fmt.Errorf("scan goal failed: %w", err)
	}
	g.Reason = reason.String
	g.Timeline = timeline.String
	return g, nil
}

// scanGoalBreakdown scans a GoalBreakdown from sql.Rows.
func scanGoalBreakdown(rows *sql.Rows) (models.GoalBreakdown, error) {
	var b models.GoalBreakdown
	if err := rows.Scan(&b.ID, &b.GoalID, &b.Kind, &b.StartDate, &b.EndDate, &b.Description, &b.CreatedAt); err != nil {
		return b, fmt.Errorf("scan goal breakdown failed: %w", err)
	}
	return b, nil
}
