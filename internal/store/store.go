// Package store provides storage backends for CheckinCoach.
//
// It defines the Store interface over the four record kinds (users,
// messages, daily logs, goals/breakdowns) and ships SQLite, PostgreSQL,
// and in-memory implementations.
package store

import (
	"strings"

	"github.com/HabitLoop/CheckinCoach/internal/models"
)

// Store is the persistence gateway used by the handler layer.
//
// Upsert semantics: UpsertUser never creates a duplicate for the same
// normalized phone, and UpsertDailyLog keeps at most one row per
// (user, date) with the later payload winning. Absent reads are signaled
// with a nil pointer (or empty slice), not an error.
type Store interface {
	// UpsertUser returns the existing user for the normalized phone or
	// creates one. Timezone defaults to models.DefaultTimezone when empty.
	UpsertUser(phone, name, timezone string) (models.User, error)
	// GetUserByPhone returns the user for the normalized phone, or nil.
	GetUserByPhone(phone string) (*models.User, error)
	// ListUsers returns all users (reminder sweep).
	ListUsers() ([]models.User, error)

	// AddMessage appends one inbound or outbound message.
	AddMessage(userID int64, direction models.MessageDirection, body string) (models.Message, error)

	// UpsertDailyLog inserts or overwrites the (user, date) check-in payload.
	UpsertDailyLog(userID int64, date string, payload models.CheckinData) (models.DailyLog, error)
	// GetDailyLog returns the log for (user, date), or nil.
	GetDailyLog(userID int64, date string) (*models.DailyLog, error)
	// GetDailyLogsInRange returns logs with start <= date <= end, ascending.
	GetDailyLogsInRange(userID int64, start, end string) ([]models.DailyLog, error)
	// GetRecentCheckins returns logs strictly before today going back the
	// given number of days, descending by date.
	GetRecentCheckins(userID int64, days int) ([]models.DailyLog, error)

	// CreateGoal inserts a new active goal. Prior goals stay active.
	CreateGoal(userID int64, goalText, reason, timeline string) (models.Goal, error)
	// GetActiveGoals returns the user's active goals, newest first.
	GetActiveGoals(userID int64) ([]models.Goal, error)
	// AddGoalBreakdowns bulk-inserts milestones for a goal.
	AddGoalBreakdowns(goalID int64, items []models.GoalBreakdown) error
	// GetGoalBreakdownsForGoal returns a goal's milestones, ascending by start date.
	GetGoalBreakdownsForGoal(goalID int64) ([]models.GoalBreakdown, error)

	// Close releases underlying resources.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithSQLiteDSN configures an SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType determines whether a DSN refers to PostgreSQL or SQLite.
// Postgres DSNs use a URL scheme or key=value connection parameters;
// anything else is treated as an SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}
