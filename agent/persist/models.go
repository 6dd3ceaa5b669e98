package persist

import (
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
)

type conversationRow struct {
	bun.BaseModel `bun:"table:conversations,alias:c"`

	ID          string    `bun:"id,pk"`
	SessionID   string    `bun:"session_id,notnull"`
	TenantID    string    `bun:"tenant_id,notnull"`
	CustomerID  string    `bun:"customer_id"`
	Channel     string    `bun:"channel"`
	State       string    `bun:"state,notnull"`
	StateReason string    `bun:"state_reason"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
	// Unix millis so the idle sweep compares integers on every dialect.
	LastActivityMS int64 `bun:"last_activity_ms,notnull"`
}

type messageRow struct {
	bun.BaseModel `bun:"table:conversation_messages,alias:m"`

	ID             string         `bun:"id,pk"`
	ConversationID string         `bun:"conversation_id,notnull"`
	Role           string         `bun:"role,notnull"`
	Content        string         `bun:"content"`
	Metadata       map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt      time.Time      `bun:"created_at,notnull"`
}

func toRow(c *statex.Conversation) *conversationRow {
	return &conversationRow{
		ID:             c.ID,
		SessionID:      c.SessionID,
		TenantID:       c.TenantID,
		CustomerID:     c.CustomerID,
		Channel:        c.Channel,
		State:          string(c.State),
		StateReason:    c.StateReason,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		LastActivityMS: c.LastActivityAt.UnixMilli(),
	}
}

func (r *conversationRow) toConversation() *statex.Conversation {
	return &statex.Conversation{
		ID:             r.ID,
		SessionID:      r.SessionID,
		TenantID:       r.TenantID,
		CustomerID:     r.CustomerID,
		Channel:        r.Channel,
		State:          statex.ConversationState(r.State),
		StateReason:    r.StateReason,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
		LastActivityAt: time.UnixMilli(r.LastActivityMS).UTC(),
	}
}

func toMessageRows(conversationID string, msgs []contractx.StoredMessage) []messageRow {
	rows := make([]messageRow, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, messageRow{
			ID:             m.ID,
			ConversationID: conversationID,
			Role:           string(m.Role),
			Content:        m.Content,
			Metadata:       m.Metadata,
			CreatedAt:      m.CreatedAt,
		})
	}
	return rows
}
