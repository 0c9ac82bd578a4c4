// Package store provides storage backends for CheckinCoach.
//
// This file implements an in-memory store used for tests and DSN-less runs.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/HabitLoop/CheckinCoach/internal/models"
)

// InMemoryStore keeps all records in process memory. It implements the same
// upsert semantics as the SQL backends and is safe for concurrent use.
type InMemoryStore struct {
	mu         sync.Mutex
	users      []models.User
	messages   []models.Message
	dailyLogs  []models.DailyLog
	goals      []models.Goal
	breakdowns []models.GoalBreakdown
	nextID     int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextID: 1}
}

func (s *InMemoryStore) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// UpsertUser returns the existing user for the phone or creates one.
func (s *InMemoryStore) UpsertUser(phone, name, timezone string) (models.User, error) {
	phone = normalizePhone(phone)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	if timezone == "" {
		timezone = models.DefaultTimezone
	}
	u := models.User{
		ID:        s.allocID(),
		Phone:     phone,
		Name:      name,
		Timezone:  timezone,
		CreatedAt: time.Now().UTC(),
	}
	s.users = append(s.users, u)
	return u, nil
}

// GetUserByPhone returns the user for the phone, or nil if absent.
func (s *InMemoryStore) GetUserByPhone(phone string) (*models.User, error) {
	phone = normalizePhone(phone)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Phone == phone {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

// ListUsers returns all users in creation order.
func (s *InMemoryStore) ListUsers() ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, len(s.users))
	copy(users, s.users)
	return users, nil
}

// AddMessage appends one message record.
func (s *InMemoryStore) AddMessage(userID int64, direction models.MessageDirection, body string) (models.Message, error) {
	if !models.IsValidDirection(direction) {
		return models.Message{}, models.ErrInvalidDirection
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := models.Message{
		ID:        s.allocID(),
		UserID:    userID,
		Direction: direction,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	s.messages = append(s.messages, m)
	return m, nil
}

// Messages returns a copy of all stored messages (test inspection).
func (s *InMemoryStore) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]models.Message, len(s.messages))
	copy(msgs, s.messages)
	return msgs
}

// UpsertDailyLog inserts or overwrites the (user, date) check-in payload.
func (s *InMemoryStore) UpsertDailyLog(userID int64, date string, payload models.CheckinData) (models.DailyLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for i, d := range s.dailyLogs {
		if d.UserID == userID && d.Date == date {
			s.dailyLogs[i].Payload = payload
			s.dailyLogs[i].UpdatedAt = now
			return s.dailyLogs[i], nil
		}
	}
	d := models.DailyLog{
		ID:        s.allocID(),
		UserID:    userID,
		Date:      date,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.dailyLogs = append(s.dailyLogs, d)
	return d, nil
}

// GetDailyLog returns the log for (user, date), or nil if absent.
func (s *InMemoryStore) GetDailyLog(userID int64, date string) (*models.DailyLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.dailyLogs {
		if d.UserID == userID && d.Date == date {
			found := d
			return &found, nil
		}
	}
	return nil, nil
}

// GetDailyLogsInRange returns logs with start <= date <= end, ascending.
func (s *InMemoryStore) GetDailyLogsInRange(userID int64, start, end string) ([]models.DailyLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var logs []models.DailyLog
	for _, d := range s.dailyLogs {
		if d.UserID == userID && d.Date >= start && d.Date <= end {
			logs = append(logs, d)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].Date < logs[j].Date })
	return logs, nil
}

// GetRecentCheckins returns logs strictly before today going back the given
// number of days, descending by date.
func (s *InMemoryStore) GetRecentCheckins(userID int64, days int) ([]models.DailyLog, error) {
	end := today()
	start, err := shiftDate(end, -days)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var logs []models.DailyLog
	for _, d := range s.dailyLogs {
		if d.UserID == userID && d.Date >= start && d.Date < end {
			logs = append(logs, d)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].Date > logs[j].Date })
	return logs, nil
}

// CreateGoal inserts a new active goal without touching prior goals.
func (s *InMemoryStore) CreateGoal(userID int64, goalText, reason, timeline string) (models.Goal, error) {
	if goalText == "" {
		return models.Goal{}, models.ErrEmptyGoal
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	g := models.Goal{
		ID:        s.allocID(),
		UserID:    userID,
		GoalText:  goalText,
		Reason:    reason,
		Timeline:  timeline,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.goals = append(s.goals, g)
	return g, nil
}

// GetActiveGoals returns the user's active goals, newest first.
func (s *InMemoryStore) GetActiveGoals(userID int64) ([]models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var goals []models.Goal
	for i := len(s.goals) - 1; i >= 0; i-- {
		g := s.goals[i]
		if g.UserID == userID && g.Active {
			goals = append(goals, g)
		}
	}
	return goals, nil
}

// AddGoalBreakdowns bulk-inserts milestones for a goal, stamping creation time.
func (s *InMemoryStore) AddGoalBreakdowns(goalID int64, items []models.GoalBreakdown) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, item := range items {
		item.ID = s.allocID()
		item.GoalID = goalID
		item.CreatedAt = now
		s.breakdowns = append(s.breakdowns, item)
	}
	return nil
}

// GetGoalBreakdownsForGoal returns a goal's milestones, ascending by start date.
func (s *InMemoryStore) GetGoalBreakdownsForGoal(goalID int64) ([]models.GoalBreakdown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var breakdowns []models.GoalBreakdown
	for _, b := range s.breakdowns {
		if b.GoalID == goalID {
			breakdowns = append(breakdowns, b)
		}
	}
	sort.Slice(breakdowns, func(i, j int) bool { return breakdowns[i].StartDate < breakdowns[j].StartDate })
	return breakdowns, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
