// Package escalation hands conversations over to human agents.
package escalation

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
	"github.com/tanpawarit/Chative-Concierge/pkg/metrics"
)

const defaultReason = "requested_by_agent"

type StateWriter interface {
	SetConversationState(ctx context.Context, conversationID string, state statex.ConversationState, reason string) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, n Notice)
}

type Decision struct {
	Escalated bool
	Reason    string
	// Repeat is set when the conversation was already escalated; no new
	// notice is sent.
	Repeat bool
}

type Decider struct {
	store    StateWriter
	notifier Dispatcher
	now      func() time.Time
}

type DeciderOption func(*Decider)

func WithClock(now func() time.Time) DeciderOption {
	return func(d *Decider) { d.now = now }
}

func NewDecider(store StateWriter, notifier Dispatcher, opts ...DeciderOption) *Decider {
	d := &Decider{store: store, notifier: notifier, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decide acts on out.Escalation. conv is transitioned in place. Persistence
// and notification failures are logged, never returned.
func (d *Decider) Decide(ctx context.Context, conv *statex.Conversation, lastMessage string, out contractx.AgentOutput) Decision {
	if !out.Escalation.ShouldEscalate || conv == nil {
		return Decision{}
	}
	reason := strings.TrimSpace(out.Escalation.Reason)
	if reason == "" {
		reason = defaultReason
	}
	logger := log.With().
		Str("conversation_id", conv.ID).
		Str("session_id", conv.SessionID).
		Str("tenant", conv.TenantID).
		Logger()

	if conv.State == statex.StateEscalated {
		return Decision{Escalated: true, Reason: conv.StateReason, Repeat: true}
	}
	if err := conv.Transition(statex.StateEscalated, reason, d.now()); err != nil {
		logger.Warn().Err(err).Str("state", string(conv.State)).Msg("escalation ignored")
		return Decision{}
	}

	if d.store != nil {
		if err := d.store.SetConversationState(ctx, conv.ID, statex.StateEscalated, reason); err != nil {
			metrics.PersistenceFailures.WithLabelValues("set_state").Inc()
			logger.Error().Err(err).Msg("persist escalation state failed")
		}
	}

	if d.notifier != nil {
		d.notifier.Dispatch(ctx, Notice{
			ConversationID: conv.ID,
			SessionID:      conv.SessionID,
			TenantID:       conv.TenantID,
			CustomerID:     conv.CustomerID,
			Channel:        conv.Channel,
			Reason:         reason,
			LastMessage:    lastMessage,
			At:             d.now().UTC(),
		})
	}
	logger.Info().Str("reason", reason).Msg("conversation escalated")
	return Decision{Escalated: true, Reason: reason}
}
