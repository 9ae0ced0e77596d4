package conversations

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/stylebot/server/internal/agent/model"
	"github.com/stylebot/server/internal/session"
)

// Manager builds chat-model context from the persisted per-user session and
// records both sides of the conversation back into it.
type Manager struct {
	sessions        *session.Manager
	historyMaxTurns int
}

func NewManager(sessions *session.Manager, config model.ConversationConfig) *Manager {
	return &Manager{
		sessions:        sessions,
		historyMaxTurns: config.HistoryMaxTurns,
	}
}

// RecordUserMessage appends the inbound text to the user's session and
// persists it. A failed save is reported so the caller can warn about
// degraded persistence; the turn itself continues.
func (m *Manager) RecordUserMessage(ctx context.Context, userID int64, text string) bool {
	s := m.sessions.GetSession(ctx, userID)
	s.AddMessage(session.RoleUser, text)
	return m.sessions.SaveSession(ctx, s)
}

// BuildTurnContext assembles the model input: system prompt, a user-context
// block with learned preferences, then recent history.
func (m *Manager) BuildTurnContext(ctx context.Context, userID int64, systemPrompt string) []*schema.Message {
	s := m.sessions.GetSession(ctx, userID)

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
	}

	messages = append(messages, schema.SystemMessage(BuildUserContext(s)))

	history := s.ToSchemaMessages()
	messages = append(messages, trimTail(history, m.historyMaxTurns)...)

	return messages
}

// SaveResponse appends the assistant reply to the user's session.
func (m *Manager) SaveResponse(ctx context.Context, userID int64, content string) bool {
	s := m.sessions.GetSession(ctx, userID)
	s.AddMessage(session.RoleAssistant, content)
	return m.sessions.SaveSession(ctx, s)
}

// Sessions exposes the underlying session manager for tools that mutate
// preferences directly.
func (m *Manager) Sessions() *session.Manager {
	return m.sessions
}

// BuildUserContext serializes the user's identity and learned preferences
// into a compact block the model can read.
func BuildUserContext(s *session.Session) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current user's id: %d (use this as user_id in all tool calls)\n", s.UserID)
	if s.FirstName != "" {
		fmt.Fprintf(&b, "Name: %s\n", s.FirstName)
	}
	if s.Location != "" {
		fmt.Fprintf(&b, "Saved location: %s (use this for searches if no other location specified)\n", s.Location)
	} else {
		b.WriteString("No location saved yet - ask the user where they are if needed for search\n")
	}
	if len(s.FitnessGoals) > 0 {
		fmt.Fprintf(&b, "Fitness goals: %s\n", strings.Join(s.FitnessGoals, ", "))
	}
	if len(s.PreferredWorkoutTypes) > 0 {
		fmt.Fprintf(&b, "Preferred workouts: %s\n", strings.Join(s.PreferredWorkoutTypes, ", "))
	}
	if len(s.Wardrobe) > 0 {
		names := make([]string, 0, len(s.Wardrobe))
		for _, item := range s.Wardrobe {
			names = append(names, item.Name)
		}
		fmt.Fprintf(&b, "Wardrobe: %s\n", strings.Join(names, ", "))
	}
	if s.ConversationSummary != "" {
		fmt.Fprintf(&b, "Earlier conversation summary: %s\n", s.ConversationSummary)
	}

	return "=== USER CONTEXT ===\n" + b.String() + "===================="
}

// ====================== Helper function ======================
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}
