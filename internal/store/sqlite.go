// Package store provides storage backends for CheckinCoach.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/HabitLoop/CheckinCoach/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Foreign keys enforce the User -> Message/DailyLog/Goal cascade.
	db, err := sql.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// UpsertUser returns the existing user for the phone or creates one.
// Lookup-then-insert: the phone UNIQUE constraint backstops the race
// between two first messages from the same new number, in which case the
// loser re-reads the winner's row.
func (s *SQLiteStore) UpsertUser(phone, name, timezone string) (models.User, error) {
	phone = normalizePhone(phone)
	if existing, err := s.GetUserByPhone(phone); err != nil {
		return models.User{}, err
	} else if existing != nil {
		return *existing, nil
	}

	if timezone == "" {
		timezone = models.DefaultTimezone
	}
	now := time.Now().UTC()
	res, err := s.db.Exec(`INSERT INTO users (phone, name, timezone, created_at) VALUES (?, ?, ?, ?)`,
		phone, nilIfEmpty(name), timezone, now)
	if err != nil {
		// Concurrent first contact: another request may have just created the row.
		if existing, selErr := s.GetUserByPhone(phone); selErr == nil && existing != nil {
			slog.Debug("SQLiteStore UpsertUser lost creation race, returning existing", "phone", phone)
			return *existing, nil
		}
		slog.Error("SQLiteStore UpsertUser insert failed", "error", err, "phone", phone)
		return models.User{}, fmt.Errorf("failed to insert user %s: %w", phone, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user id: %w", err)
	}
	slog.Debug("SQLiteStore UpsertUser created user", "phone", phone, "id", id)
	return models.User{ID: id, Phone: phone, Name: name, Timezone: timezone, CreatedAt: now}, nil
}

// GetUserByPhone returns the user for the phone, or nil if absent.
func (s *SQLiteStore) GetUserByPhone(phone string) (*models.User, error) {
	phone = normalizePhone(phone)
	row := s.db.QueryRow(`SELECT id, phone, name, timezone, created_at FROM users WHERE phone = ?`, phone)
	u, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserByPhone failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query user %s: %w", phone, err)
	}
	return &u, nil
}

// ListUsers returns all users ordered by creation time.
func (s *SQLiteStore) ListUsers() ([]models.User, error) {
	rows, err := s.db.Query(`SELECT id, phone, name, timezone, created_at FROM users ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			slog.Error("SQLiteStore ListUsers scan failed", "error", err)
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return users, nil
}

// AddMessage appends one message row.
func (s *SQLiteStore) AddMessage(userID int64, direction models.MessageDirection, body string) (models.Message, error) {
	if !models.IsValidDirection(direction) {
		return models.Message{}, models.ErrInvalidDirection
	}
	now := time.Now().UTC()
	res, err := s.db.Exec(`INSERT INTO messages (user_id, direction, body, created_at) VALUES (?, ?, ?, ?)`,
		userID, direction, body, now)
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "userID", userID, "direction", direction)
		return models.Message{}, fmt.Errorf("failed to insert message for user %d: %w", userID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to get message id: %w", err)
	}
	slog.Debug("SQLiteStore AddMessage succeeded", "userID", userID, "direction", direction, "id", id)
	return models.Message{ID: id, UserID: userID, Direction: direction, Body: body, CreatedAt: now}, nil
}

// UpsertDailyLog inserts or overwrites the (user, date) check-in payload.
func (s *SQLiteStore) UpsertDailyLog(userID int64, date string, payload models.CheckinData) (models.DailyLog, error) {
	payloadJSON, err := marshalPayload(payload)
	if err != nil {
		return models.DailyLog{}, err
	}
	now := time.Now().UTC()

	existing, err := s.GetDailyLog(userID, date)
	if err != nil {
		return models.DailyLog{}, err
	}
	if existing != nil {
		_, err := s.db.Exec(`UPDATE daily_logs SET payload = ?, updated_at = ? WHERE id = ?`,
			payloadJSON, now, existing.ID)
		if err != nil {
			slog.Error("SQLiteStore UpsertDailyLog update failed", "error", err, "userID", userID, "date", date)
			return models.DailyLog{}, fmt.Errorf("failed to update daily log for user %d on %s: %w", userID, date, err)
		}
		existing.Payload = payload
		existing.UpdatedAt = now
		slog.Debug("SQLiteStore UpsertDailyLog updated", "userID", userID, "date", date)
		return *existing, nil
	}

	res, err := s.db.Exec(`INSERT INTO daily_logs (user_id, date, payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		userID, date, payloadJSON, now, now)
	if err != nil {
		slog.Error("SQLiteStore UpsertDailyLog insert failed", "error", err, "userID", userID, "date", date)
		return models.DailyLog{}, fmt.Errorf("failed to insert daily log for user %d on %s: %w", userID, date, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.DailyLog{}, fmt.Errorf("failed to get daily log id: %w", err)
	}
	slog.Debug("SQLiteStore UpsertDailyLog inserted", "userID", userID, "date", date, "id", id)
	return models.DailyLog{ID: id, UserID: userID, Date: date, Payload: payload, CreatedAt: now, UpdatedAt: now}, nil
}

// GetDailyLog returns the log for (user, date), or nil if absent.
func (s *SQLiteStore) GetDailyLog(userID int64, date string) (*models.DailyLog, error) {
	row := s.db.QueryRow(`SELECT id, user_id, date, payload, created_at, updated_at FROM daily_logs WHERE user_id = ? AND date = ?`,
		userID, date)
	d, err := scanDailyLogRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetDailyLog failed", "error", err, "userID", userID, "date", date)
		return nil, fmt.Errorf("failed to query daily log for user %d on %s: %w", userID, date, err)
	}
	return &d, nil
}

// GetDailyLogsInRange returns logs with start <= date <= end, ascending.
func (s *SQLiteStore) GetDailyLogsInRange(userID int64, start, end string) ([]models.DailyLog, error) {
	rows, err := s.db.Query(`SELECT id, user_id, date, payload, created_at, updated_at FROM daily_logs
		WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date ASC`, userID, start, end)
	if err != nil {
		slog.Error("SQLiteStore GetDailyLogsInRange query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query daily logs for user %d: %w", userID, err)
	}
	defer rows.Close()
	return collectDailyLogs(rows)
}

// GetRecentCheckins returns logs strictly before today going back the given
// number of days, descending by date.
func (s *SQLiteStore) GetRecentCheckins(userID int64, days int) ([]models.DailyLog, error) {
	end := today()
	start, err := shiftDate(end, -days)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT id, user_id, date, payload, created_at, updated_at FROM daily_logs
		WHERE user_id = ? AND date >= ? AND date < ? ORDER BY date DESC`, userID, start, end)
	if err != nil {
		slog.Error("SQLiteStore GetRecentCheckins query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query recent check-ins for user %d: %w", userID, err)
	}
	defer rows.Close()
	return collectDailyLogs(rows)
}

// CreateGoal inserts a new active goal without touching prior goals.
func (s *SQLiteStore) CreateGoal(userID int64, goalText, reason, timeline string) (models.Goal, error) {
	if goalText == "" {
		return models.Goal{}, models.ErrEmptyGoal
	}
	now := time.Now().UTC()
	res, err := s.db.Exec(`INSERT INTO goals (user_id, goal_text, reason, timeline, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)`, userID, goalText, nilIfEmpty(reason), nilIfEmpty(timeline), now, now)
	if err != nil {
		slog.Error("SQLiteStore CreateGoal failed", "error", err, "userID", userID)
		return models.Goal{}, fmt.Errorf("failed to insert goal for user %d: %w", userID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Goal{}, fmt.Errorf("failed to get goal id: %w", err)
	}
	slog.Debug("SQLiteStore CreateGoal succeeded", "userID", userID, "id", id)
	return models.Goal{ID: id, UserID: userID, GoalText: goalText, Reason: reason, Timeline: timeline, Active: true, CreatedAt: now, UpdatedAt: now}, nil
}

// GetActiveGoals returns the user's active goals, newest first.
func (s *SQLiteStore) GetActiveGoals(userID int64) ([]models.Goal, error) {
	rows, err := s.db.Query(`SELECT id, user_id, goal_text, reason, timeline, active, created_at, updated_at
		FROM goals WHERE user_id = ? AND active = 1 ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("SQLiteStore GetActiveGoals query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query goals for user %d: %w", userID, err)
	}
	defer rows.Close()

	var goals []models.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate goal rows: %w", err)
	}
	return goals, nil
}

// AddGoalBreakdowns bulk-inserts milestones for a goal, stamping creation time.
func (s *SQLiteStore) AddGoalBreakdowns(goalID int64, items []models.GoalBreakdown) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin breakdown transaction: %w", err)
	}
	now := time.Now().UTC()
	for _, item := range items {
		if _, err := tx.Exec(`INSERT INTO goal_breakdowns (goal_id, kind, start_date, end_date, description, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`, goalID, item.Kind, item.StartDate, item.EndDate, item.Description, now); err != nil {
			tx.Rollback()
			slog.Error("SQLiteStore AddGoalBreakdowns insert failed", "error", err, "goalID", goalID)
			return fmt.Errorf("failed to insert breakdown for goal %d: %w", goalID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit breakdowns for goal %d: %w", goalID, err)
	}
	slog.Debug("SQLiteStore AddGoalBreakdowns succeeded", "goalID", goalID, "count", len(items))
	return nil
}

// GetGoalBreakdownsForGoal returns a goal's milestones, ascending by start date.
func (s *SQLiteStore) GetGoalBreakdownsForGoal(goalID int64) ([]models.GoalBreakdown, error) {
	rows, err := s.db.Query(`SELECT id, goal_id, kind, start_date, end_date, description, created_at
		FROM goal_breakdowns WHERE goal_id = ? ORDER BY start_date ASC`, goalID)
	if err != nil {
		slog.Error("SQLiteStore GetGoalBreakdownsForGoal query failed", "error", err, "goalID", goalID)
		return nil, fmt.Errorf("failed to query breakdowns for goal %d: %w", goalID, err)
	}
	defer rows.Close()

	var breakdowns []models.GoalBreakdown
	for rows.Next() {
		b, err := scanGoalBreakdown(rows)
		if err != nil {
			return nil, err
		}
		breakdowns = append(breakdowns, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate breakdown rows: %w", err)
	}
	return breakdowns, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// collectDailyLogs drains rows into a slice.
func collectDailyLogs(rows *sql.Rows) ([]models.DailyLog, error) {
	var logs []models.DailyLog
	for rows.Next() {
		d, err := scanDailyLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily log rows: %w", err)
	}
	return logs, nil
}
