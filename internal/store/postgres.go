// Package store provides storage backends for CheckinCoach.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/HabitLoop/CheckinCoach/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// UpsertUser returns the existing user for the phone or creates one.
// Same lookup-then-insert shape as the SQLite store; the UNIQUE constraint
// resolves the concurrent-first-contact race in favor of the first writer.
func (s *PostgresStore) UpsertUser(phone, name, timezone string) (models.User, error) {
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
	var id int64
	err := s.db.QueryRow(`INSERT INTO users (phone, name, timezone, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		phone, nilIfEmpty(name), timezone, now).Scan(&id)
	if err != nil {
		if existing, selErr := s.GetUserByPhone(phone); selErr == nil && existing != nil {
			slog.Debug("PostgresStore UpsertUser lost creation race, returning existing", "phone", phone)
			return *existing, nil
		}
		slog.Error("PostgresStore UpsertUser insert failed", "error", err, "phone", phone)
		return models.User{}, fmt.Errorf("failed to insert user %s: %w", phone, err)
	}
	slog.Debug("PostgresStore UpsertUser created user", "phone", phone, "id", id)
	return models.User{ID: id, Phone: phone, Name: name, Timezone: timezone, CreatedAt: now}, nil
}

// GetUserByPhone returns the user for the phone, or nil if absent.
func (s *PostgresStore) GetUserByPhone(phone string) (*models.User, error) {
	phone = normalizePhone(phone)
	row := s.db.QueryRow(`SELECT id, phone, name, timezone, created_at FROM users WHERE phone = $1`, phone)
	u, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserByPhone failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query user %s: %w", phone, err)
	}
	return &u, nil
}

// ListUsers returns all users ordered by creation time.
func (s *PostgresStore) ListUsers() ([]models.User, error) {
	rows, err := s.db.Query(`SELECT id, phone, name, timezone, created_at FROM users ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			slog.Error("PostgresStore ListUsers scan failed", "error", err)
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
func (s *PostgresStore) AddMessage(userID int64, direction models.MessageDirection, body string) (models.Message, error) {
	if !models.IsValidDirection(direction) {
		return models.Message{}, models.ErrInvalidDirection
	}
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRow(`INSERT INTO messages (user_id, direction, body, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		userID, direction, body, now).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "userID", userID, "direction", direction)
		return models.Message{}, fmt.Errorf("failed to insert message for user %d: %w", userID, err)
	}
	slog.Debug("PostgresStore AddMessage succeeded", "userID", userID, "direction", direction, "id", id)
	return models.Message{ID: id, UserID: userID, Direction: direction, Body: body, CreatedAt: now}, nil
}

// UpsertDailyLog inserts or overwrites the (user, date) check-in payload.
func (s *PostgresStore) UpsertDailyLog(userID int64, date string, payload models.CheckinData) (models.DailyLog, error) {
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
		_, err := s.db.Exec(`UPDATE daily_logs SET payload = $1, updated_at = $2 WHERE id = $3`,
			payloadJSON, now, existing.ID)
		if err != nil {
			slog.Error("PostgresStore UpsertDailyLog update failed", "error", err, "userID", userID, "date", date)
			return models.DailyLog{}, fmt.Errorf("failed to update daily log for user %d on %s: %w", userID, date, err)
		}
		existing.Payload = payload
		existing.UpdatedAt = now
		return *existing, nil
	}

	var id int64
	err = s.db.QueryRow(`INSERT INTO daily_logs (user_id, date, payload, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		userID, date, payloadJSON, now, now).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore UpsertDailyLog insert failed", "error", err, "userID", userID, "date", date)
		return models.DailyLog{}, fmt.Errorf("failed to insert daily log for user %d on %s: %w", userID, date, err)
	}
	return models.DailyLog{ID: id, UserID: userID, Date: date, Payload: payload, CreatedAt: now, UpdatedAt: now}, nil
}

// GetDailyLog returns the log for (user, date), or nil if absent.
func (s *PostgresStore) GetDailyLog(userID int64, date string) (*models.DailyLog, error) {
	row := s.db.QueryRow(`SELECT id, user_id, date, payload, created_at, updated_at FROM daily_logs WHERE user_id = $1 AND date = $2`,
		userID, date)
	d, err := scanDailyLogRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetDailyLog failed", "error", err, "userID", userID, "date", date)
		return nil, fmt.Errorf("failed to query daily log for user %d on %s: %w", userID, date, err)
	}
	return &d, nil
}

// GetDailyLogsInRange returns logs with start <= date <= end, ascending.
func (s *PostgresStore) GetDailyLogsInRange(userID int64, start, end string) ([]models.DailyLog, error) {
	rows, err := s.db.Query(`SELECT id, user_id, date, payload, created_at, updated_at FROM daily_logs
		WHERE user_id = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC`, userID, start, end)
	if err != nil {
		slog.Error("PostgresStore GetDailyLogsInRange query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query daily logs for user %d: %w", userID, err)
	}
	defer rows.Close()
	return collectDailyLogs(rows)
}

// GetRecentCheckins returns logs strictly before today going back the given
// number of days, descending by date.
func (s *PostgresStore) GetRecentCheckins(userID int64, days int) ([]models.DailyLog, error) {
	end := today()
	start, err := shiftDate(end, -days)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT id, user_id, date, payload, created_at, updated_at FROM daily_logs
		WHERE user_id = $1 AND date >= $2 AND date < $3 ORDER BY date DESC`, userID, start, end)
	if err != nil {
		slog.Error("PostgresStore GetRecentCheckins query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query recent check-ins for user %d: %w", userID, err)
	}
	defer rows.Close()
	return collectDailyLogs(rows)
}

// CreateGoal inserts a new active goal without touching prior goals.
func (s *PostgresStore) CreateGoal(userID int64, goalText, reason, timeline string) (models.Goal, error) {
	if goalText == "" {
		return models.Goal{}, models.ErrEmptyGoal
	}
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRow(`INSERT INTO goals (user_id, goal_text, reason, timeline, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6) RETURNING id`,
		userID, goalText, nilIfEmpty(reason), nilIfEmpty(timeline), now, now).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore CreateGoal failed", "error", err, "userID", userID)
		return models.Goal{}, fmt.Errorf("failed to insert goal for user %d: %w", userID, err)
	}
	slog.Debug("PostgresStore CreateGoal succeeded", "userID", userID, "id", id)
	return models.Goal{ID: id, UserID: userID, GoalText: goalText, Reason: reason, Timeline: timeline, Active: true, CreatedAt: now, UpdatedAt: now}, nil
}

// GetActiveGoals returns the user's active goals, newest first.
func (s *PostgresStore) GetActiveGoals(userID int64) ([]models.Goal, error) {
	rows, err := s.db.Query(`SELECT id, user_id, goal_text, reason, timeline, active, created_at, updated_at
		FROM goals WHERE user_id = $1 AND active = TRUE ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("PostgresStore GetActiveGoals query failed", "error", err, "userID", userID)
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
func (s *PostgresStore) AddGoalBreakdowns(goalID int64, items []models.GoalBreakdown) error {
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
			VALUES ($1, $2, $3, $4, $5, $6)`, goalID, item.Kind, item.StartDate, item.EndDate, item.Description, now); err != nil {
			tx.Rollback()
			slog.Error("PostgresStore AddGoalBreakdowns insert failed", "error", err, "goalID", goalID)
			return fmt.Errorf("failed to insert breakdown for goal %d: %w", goalID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit breakdowns for goal %d: %w", goalID, err)
	}
	slog.Debug("PostgresStore AddGoalBreakdowns succeeded", "goalID", goalID, "count", len(items))
	return nil
}

// GetGoalBreakdownsForGoal returns a goal's milestones, ascending by start date.
func (s *PostgresStore) GetGoalBreakdownsForGoal(goalID int64) ([]models.GoalBreakdown, error) {
	rows, err := s.db.Query(`SELECT id, goal_id, kind, start_date, end_date, description, created_at
		FROM goal_breakdowns WHERE goal_id = $1 ORDER BY start_date ASC`, goalID)
	if err != nil {
		slog.Error("PostgresStore GetGoalBreakdownsForGoal query failed", "error", err, "goalID", goalID)
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

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
