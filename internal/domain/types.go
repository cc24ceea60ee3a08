package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserID string
type ConversationID string
type MessageID string
type InterviewSessionID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ProviderKind names an upstream AI vendor family.
type ProviderKind string

const (
	ProviderOpenAI ProviderKind = "openai"
	ProviderClaude ProviderKind = "claude"
	ProviderGemini ProviderKind = "gemini"
	ProviderMock   ProviderKind = "mock"
)

type Timestamp = time.Time

// NewID returns a random opaque identifier.
func NewID() string {
	return uuid.NewString()
}
