// Package models defines the core data structures for CheckinCoach.
//
// It includes the persisted record types (users, messages, daily logs, goals)
// and the shared API response helpers used across modules.
package models

import (
	"errors"
	"time"
)

// MessageDirection marks a stored message as inbound or outbound.
type MessageDirection string

const (
	// DirectionInbound is a message received from a user.
	DirectionInbound MessageDirection = "inbound"
	// DirectionOutbound is a message sent to a user.
	DirectionOutbound MessageDirection = "outbound"
)

// BreakdownKind distinguishes weekly from monthly goal milestones.
type BreakdownKind string

const (
	// BreakdownWeekly is a week-scoped milestone.
	BreakdownWeekly BreakdownKind = "weekly"
	// BreakdownMonthly is a month-scoped milestone.
	BreakdownMonthly BreakdownKind = "monthly"
)

// DateLayout is the calendar-date format used for daily log keys and
// breakdown ranges.
const DateLayout = "2006-01-02"

// DefaultTimezone is assigned to users that never stated one.
const DefaultTimezone = "UTC"

// Error variables for better error handling and testability
var (
	ErrEmptyPhone       = errors.New("phone number cannot be empty")
	ErrEmptyBody        = errors.New("message body cannot be empty")
	ErrUserNotFound     = errors.New("user not found")
	ErrEmptyGoal        = errors.New("goal text cannot be empty")
	ErrInvalidDirection = errors.New("invalid message direction")
)

// IsValidDirection checks if the given message direction is supported.
func IsValidDirection(d MessageDirection) bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// User is the root entity, keyed by normalized phone number.
type User struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name,omitempty"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one inbound or outbound text exchange. Append-only.
type Message struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Direction MessageDirection `json:"direction"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"created_at"`
}

// CheckinData is the structured payload extracted from a check-in message.
// All fields are optional; a check-in is accepted when at least one is set.
// Values are free-form (string, number, or list) as produced by extraction.
type CheckinData map[string]interface{}

// IsEmpty reports whether no field of the check-in is populated.
func (c CheckinData) IsEmpty() bool {
	return len(c) == 0
}

// DailyLog is the date-keyed structured representation of a check-in.
// Invariant: at most one row per (user, date); a later check-in on the same
// date overwrites the payload.
type DailyLog struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"user_id"`
	Date      string      `json:"date"` // DateLayout
	Payload   CheckinData `json:"payload,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// HasCheckin reports whether the log carries a non-empty check-in payload.
func (d DailyLog) HasCheckin() bool {
	return !d.Payload.IsEmpty()
}

// Goal is a user's stated objective. Multiple goals may be active at once;
// creating a new goal never deactivates prior ones.
type Goal struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	GoalText  string    `json:"goal_text"`
	Reason    string    `json:"reason,omitempty"`
	Timeline  string    `json:"timeline,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GoalBreakdown is a milestone belonging to exactly one goal.
// Invariant: StartDate <= EndDate. Breakdowns are generated once per
// goal-creation event and never recomputed automatically.
type GoalBreakdown struct {
	ID          int64         `json:"id"`
	GoalID      int64         `json:"goal_id"`
	Kind        BreakdownKind `json:"kind"`
	StartDate   string        `json:"start_date"` // DateLayout
	EndDate     string        `json:"end_date"`   // DateLayout
	Description string        `json:"description"`
	CreatedAt   time.Time     `json:"created_at"`
}

// IsCurrent reports whether the given date falls inside the milestone's
// start/end range (inclusive). Dates are DateLayout strings, so string
// comparison matches chronological order.
func (b GoalBreakdown) IsCurrent(date string) bool {
	return b.StartDate <= date && date <= b.EndDate
}

// WebhookRequest is the inbound messaging-platform webhook payload,
// accepted either form-encoded or as JSON.
type WebhookRequest struct {
	From        string `json:"From"`
	Body        string `json:"Body"`
	MessageSid  string `json:"MessageSid,omitempty"`
	ProfileName string `json:"ProfileName,omitempty"`
	WaID        string `json:"WaId,omitempty"`
}

// SetGoalRequest is the payload for the direct goal-creation endpoint.
type SetGoalRequest struct {
	Phone    string `json:"phone"`
	MainGoal string `json:"main_goal"`
	Reason   string `json:"reason,omitempty"`
	Timeline string `json:"timeline,omitempty"`
}

// Validate checks required fields of a SetGoalRequest.
func (r *SetGoalRequest) Validate() error {
	if r.Phone == "" {
		return ErrEmptyPhone
	}
	if r.MainGoal == "" {
		return ErrEmptyGoal
	}
	return nil
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{response: APIResponse{}}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusOK).WithResult(result).Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusOK).WithMessage(message).WithResult(result).Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusError).WithMessage(message).Build()
}
