// Package session persists per-user conversation state in the shared
// key-value store.
package session

import (
	"encoding/json"
	"time"

	"github.com/cloudwego/eino/schema"
)

// MaxHistoryMessages bounds the active message history kept on a session.
// Older messages are evicted; MessageCount keeps counting regardless.
const MaxHistoryMessages = 20

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one history entry on a session.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// WardrobeItem is one clothing item learned from photo analysis.
type WardrobeItem struct {
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	Color       string    `json:"color,omitempty"`
	Description string    `json:"description,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

// Session is the per-user conversation record stored under session:{id}.
type Session struct {
	UserID   int64     `json:"user_id"`
	Messages []Message `json:"messages"`

	// User preferences, learned over time.
	FirstName             string   `json:"first_name,omitempty"`
	Username              string   `json:"username,omitempty"`
	Location              string   `json:"location,omitempty"`
	FitnessGoals          []string `json:"fitness_goals,omitempty"`
	PreferredWorkoutTypes []string `json:"preferred_workout_types,omitempty"`

	// Style profile and wardrobe, built up by the stylist flows.
	StyleProfile map[string]any `json:"style_profile,omitempty"`
	Wardrobe     []WardrobeItem `json:"wardrobe,omitempty"`

	// Rolling summary used for context compression.
	ConversationSummary string `json:"conversation_summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// MessageCount never decreases, even when history is truncated.
	MessageCount int `json:"message_count"`
}

// NewSession returns a fresh, not yet persisted session for the user.
func NewSession(userID int64) *Session {
	now := time.Now().UTC()
	return &Session{
		UserID:    userID,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddMessage appends a history entry, evicting the oldest entries beyond
// MaxHistoryMessages.
func (s *Session) AddMessage(role, content string) {
	now := time.Now().UTC()
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	s.MessageCount++
	s.UpdatedAt = now

	if len(s.Messages) > MaxHistoryMessages {
		s.Messages = s.Messages[len(s.Messages)-MaxHistoryMessages:]
	}
}

// ClearHistory resets messages, summary, and counter while preserving the
// learned preferences, style profile, and wardrobe.
func (s *Session) ClearHistory() {
	s.Messages = []Message{}
	s.ConversationSummary = ""
	s.MessageCount = 0
	s.UpdatedAt = time.Now().UTC()
}

// ToSchemaMessages converts the stored history into eino chat messages.
func (s *Session) ToSchemaMessages() []*schema.Message {
	out := make([]*schema.Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		switch m.Role {
		case RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		case RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		}
	}
	return out
}

// ToJSON serializes the session for storage.
func (s *Session) ToJSON() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FromJSON reconstructs a session from its stored form.
func FromJSON(data string) (*Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, err
	}
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	return &s, nil
}
