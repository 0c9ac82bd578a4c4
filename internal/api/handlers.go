// Package api provides HTTP handlers for CheckinCoach endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/HabitLoop/CheckinCoach/internal/models"
)

// webhookResponse is the success shape of the webhook endpoint. MessageSid
// is null when the outbound send failed; the failure is not surfaced.
type webhookResponse struct {
	Status     string  `json:"status"`
	MessageSid *string `json:"message_sid"`
}

// setGoalResponse is the success shape of the direct goal-creation endpoint.
type setGoalResponse struct {
	Status     string                 `json:"status"`
	Goal       models.Goal            `json:"goal"`
	Breakdowns []models.GoalBreakdown `json:"breakdowns"`
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

// whatsappWebhookHandler receives inbound messaging-platform deliveries
// (POST) and serves a static status payload for the platform console (GET).
func (s *Server) whatsappWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.whatsappWebhookHandler: processing request", "method", r.Method, "path", r.URL.Path)

	switch r.Method {
	case http.MethodGet:
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("WhatsApp webhook is ready", map[string]string{
			"service": "CheckinCoach",
		}))
	case http.MethodPost:
		s.handleWebhookPost(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		slog.Warn("Server.whatsappWebhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleWebhookPost(w http.ResponseWriter, r *http.Request) {
	req, err := parseWebhookRequest(r)
	if err != nil {
		slog.Warn("Server.handleWebhookPost: failed to parse payload", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, errorBody("Invalid webhook payload"))
		return
	}
	// Reject before any persistence so a malformed payload has no side effects.
	if req.From == "" || req.Body == "" {
		slog.Warn("Server.handleWebhookPost: missing required fields", "from_set", req.From != "", "body_set", req.Body != "")
		writeJSONResponse(w, http.StatusBadRequest, errorBody("Missing required fields: From and Body"))
		return
	}

	sid, err := s.processInbound(r.Context(), req.From, req.Body, req.ProfileName)
	if err != nil {
		slog.Error("Server.handleWebhookPost: processing failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, errorBody("Failed to process message"))
		return
	}

	resp := webhookResponse{Status: string(models.APIStatusOK)}
	if sid != "" {
		resp.MessageSid = &sid
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// parseWebhookRequest accepts the platform's x-www-form-urlencoded shape and
// the JSON equivalent.
func parseWebhookRequest(r *http.Request) (models.WebhookRequest, error) {
	var req models.WebhookRequest
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.From = r.PostFormValue("From")
	req.Body = r.PostFormValue("Body")
	req.MessageSid = r.PostFormValue("MessageSid")
	req.ProfileName = r.PostFormValue("ProfileName")
	req.WaID = r.PostFormValue("WaId")
	return req, nil
}

// setGoalHandler creates a goal for a phone number directly, without going
// through the conversational goal-declaration flow.
func (s *Server) setGoalHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.setGoalHandler: processing request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.SetGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.setGoalHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, errorBody("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.setGoalHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	user, err := s.st.UpsertUser(req.Phone, "", "")
	if err != nil {
		slog.Error("Server.setGoalHandler: failed to resolve user", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, errorBody("Failed to resolve user"))
		return
	}
	goal, err := s.st.CreateGoal(user.ID, req.MainGoal, req.Reason, req.Timeline)
	if err != nil {
		slog.Error("Server.setGoalHandler: failed to create goal", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, errorBody("Failed to create goal"))
		return
	}

	breakdowns := s.generator.GoalBreakdowns(r.Context(), req.MainGoal, req.Timeline)
	if len(breakdowns) > 0 {
		if err := s.st.AddGoalBreakdowns(goal.ID, breakdowns); err != nil {
			slog.Error("Server.setGoalHandler: failed to store breakdowns, goal kept", "error", err, "goal_id", goal.ID)
			breakdowns = nil
		}
	}

	slog.Info("Server.setGoalHandler: goal created", "user_id", user.ID, "goal_id", goal.ID, "breakdowns", len(breakdowns))
	writeJSONResponse(w, http.StatusOK, setGoalResponse{
		Status:     string(models.APIStatusOK),
		Goal:       goal,
		Breakdowns: breakdowns,
	})
}

// triggerRemindersHandler runs the reminder sweep: every user with no
// check-in today or yesterday gets the fixed nudge message.
func (s *Server) triggerRemindersHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.triggerRemindersHandler: processing request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.remindersEnabled {
		slog.Info("Server.triggerRemindersHandler: reminders disabled")
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{"status": "disabled", "reminded": 0})
		return
	}

	users, err := s.st.ListUsers()
	if err != nil {
		slog.Error("Server.triggerRemindersHandler: failed to list users", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, errorBody("Failed to list users"))
		return
	}

	day := today()
	yesterday := shiftDate(day, -1)
	reminded := 0
	for _, user := range users {
		if s.hasCheckinOn(user.ID, day) || s.hasCheckinOn(user.ID, yesterday) {
			continue
		}
		if sid := s.sendAndLog(r.Context(), user, reminderText); sid != "" {
			reminded++
		}
	}

	slog.Info("Server.triggerRemindersHandler: sweep complete", "users", len(users), "reminded", reminded)
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"status": string(models.APIStatusOK), "reminded": reminded})
}

// hasCheckinOn reports whether the user logged a non-empty check-in on the
// given date. Read failures degrade to "no check-in".
func (s *Server) hasCheckinOn(userID int64, date string) bool {
	log, err := s.st.GetDailyLog(userID, date)
	if err != nil {
		slog.Error("Server.hasCheckinOn: failed to fetch daily log", "error", err, "user_id", userID, "date", date)
		return false
	}
	return log != nil && log.HasCheckin()
}

// rootHandler serves the status banner (GET) and delegates POSTs to the
// WhatsApp webhook for platforms configured with the bare root path.
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("CheckinCoach is running", map[string]string{
			"service": "CheckinCoach",
		}))
	case http.MethodPost:
		s.whatsappWebhookHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
