package domain

import (
	"context"
	"time"
)

// SessionStatus enumerates chat session lifecycle states.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionArchived SessionStatus = "archived"
)

// ModelPreference pins a session to a provider/model pair.
type ModelPreference struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// ChatSession is the shape of a persisted chat conversation. Durable storage
// is owned by an external collaborator; the core only reads and appends
// through SessionStore.
type ChatSession struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	UserID      string          `json:"user_id"`
	Title       string          `json:"title"`
	Messages    []Message       `json:"messages"`
	Preference  ModelPreference `json:"model_preference"`
	Status      SessionStatus   `json:"status"`
	TotalTokens int             `json:"total_tokens"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SessionStore holds chat sessions for the chat surface.
type SessionStore interface {
	Get(ctx context.Context, id string) (*ChatSession, error)
	Save(ctx context.Context, session *ChatSession) error
}

// UsageRecord is one accounting entry for a completed request.
type UsageRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ProjectID    string    `json:"project_id"`
	SkillID      string    `json:"skill_id,omitempty"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CreatedAt    time.Time `json:"created_at"`
}

// UsageRecorder persists usage records. Recording failures must never fail
// the completion they account for.
type UsageRecorder interface {
	Record(ctx context.Context, rec UsageRecord) error
}
