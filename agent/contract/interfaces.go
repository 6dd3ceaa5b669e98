package contract

import (
	"context"
	"time"

	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
)

// Retriever never fails: a broken backend yields DegradedRetrieval().
type Retriever interface {
	Retrieve(ctx context.Context, query string, partition *Partition) RetrievalResult
}

// ToolExecutor runs one round of model-requested calls. The result slice is
// index-aligned with calls and holds exactly one entry per call.
type ToolExecutor interface {
	Execute(ctx context.Context, caller Caller, calls []ToolCall) []ToolResult
}

// Identity is what the host knows about the sender of a turn.
type Identity struct {
	TenantID   string
	SessionID  string
	CustomerID string
	Channel    string
}

type StoredMessage struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Role           Role           `json:"role"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ConversationStore is the only writer of conversation and message state.
type ConversationStore interface {
	// GetOrCreateSession returns the most recent conversation of the session,
	// creating an ACTIVE one when none exists. Activity is not touched.
	GetOrCreateSession(ctx context.Context, id Identity) (*statex.Conversation, error)
	// StartConversation always opens a fresh ACTIVE conversation for the session.
	StartConversation(ctx context.Context, id Identity) (*statex.Conversation, error)
	// AppendMessages writes msgs in one batch and bumps last activity.
	AppendMessages(ctx context.Context, conversationID string, msgs []StoredMessage) error
	SetConversationState(ctx context.Context, conversationID string, state statex.ConversationState, reason string) error
	// EndIdle ends ACTIVE conversations whose last activity is before cutoff
	// and returns their ids.
	EndIdle(ctx context.Context, cutoff time.Time) ([]string, error)
}
