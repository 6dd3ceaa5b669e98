package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Conversation is the persistent record the engine keeps per session.
// - Lifecycle: State (ACTIVE -> ESCALATED | ENDED); terminal states are final.
// - Activity: LastActivityAt drives the idle-timeout rule.
type Conversation struct {
	// Identity
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	TenantID   string `json:"tenant_id"`
	CustomerID string `json:"customer_id"`
	Channel    string `json:"channel"`

	State       ConversationState `json:"state"`
	StateReason string            `json:"state_reason,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

type ConversationState string

const (
	StateActive    ConversationState = "ACTIVE"
	StateEscalated ConversationState = "ESCALATED"
	StateEnded     ConversationState = "ENDED"
)

const (
	ReasonIdleTimeout = "idle_timeout"
	ReasonClosed      = "closed"
)

var (
	ErrInvalidTransition = errors.New("invalid conversation state transition")
	ErrUnknownState      = errors.New("unknown conversation state")
	ErrNilConversation   = errors.New("conversation is nil")
	ErrInvalidSession    = errors.New("session id is empty")
	ErrNotFound          = errors.New("conversation not found")
)

/* --------------------------- State transitions --------------------------- */

// transitions lists every legal move. Anything absent is rejected, which is
// what keeps ESCALATED and ENDED from silently reverting to ACTIVE.
var transitions = map[ConversationState]map[ConversationState]bool{
	StateActive: {
		StateEscalated: true,
		StateEnded:     true,
	},
	StateEscalated: {},
	StateEnded:     {},
}

func (s ConversationState) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s ConversationState) IsTerminal() bool {
	return s == StateEscalated || s == StateEnded
}

// CanTransition reports whether from -> to is allowed. A no-op move onto the
// same state is accepted so repeated escalation signals stay idempotent.
func CanTransition(from, to ConversationState) error {
	if !from.Valid() {
		return fmt.Errorf("%w: from=%q", ErrUnknownState, from)
	}
	if !to.Valid() {
		return fmt.Errorf("%w: to=%q", ErrUnknownState, to)
	}
	if from == to {
		return nil
	}
	if !transitions[from][to] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

/* ------------------------- Conversation helpers -------------------------- */

func NewConversation(id, sessionID, tenantID, customerID, channel string, now time.Time) *Conversation {
	now = now.UTC()
	return &Conversation{
		ID:             id,
		SessionID:      sessionID,
		TenantID:       tenantID,
		CustomerID:     customerID,
		Channel:        channel,
		State:          StateActive,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastActivityAt: now,
	}
}

func (c *Conversation) Touch(now time.Time) {
	c.UpdatedAt = now.UTC()
	c.LastActivityAt = now.UTC()
}

// Transition moves the conversation to next, recording reason.
func (c *Conversation) Transition(next ConversationState, reason string, now time.Time) error {
	if c == nil {
		return ErrNilConversation
	}
	if err := CanTransition(c.State, next); err != nil {
		return err
	}
	if c.State == next {
		return nil
	}
	c.State = next
	c.StateReason = strings.TrimSpace(reason)
	c.UpdatedAt = now.UTC()
	return nil
}

// IsIdle reports whether an ACTIVE conversation has been quiet for longer
// than idle. A non-positive idle disables the rule.
func (c *Conversation) IsIdle(now time.Time, idle time.Duration) bool {
	if c == nil || idle <= 0 || c.State != StateActive {
		return false
	}
	if c.LastActivityAt.IsZero() {
		return false
	}
	return now.UTC().Sub(c.LastActivityAt) > idle
}

func (c *Conversation) Validate() error {
	if c == nil {
		return ErrNilConversation
	}
	if strings.TrimSpace(c.SessionID) == "" {
		return ErrInvalidSession
	}
	if !c.State.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownState, c.State)
	}
	return nil
}
