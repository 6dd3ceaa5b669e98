package orchestratornode

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
	"github.com/tanpawarit/Chative-Concierge/pkg/metrics"
)

// LoadConversation resolves the conversation this turn belongs to. An idle
// ACTIVE conversation is ended and an ENDED one is replaced by a fresh
// conversation. A store outage does not fail the turn; the conversation is
// kept in memory for the turn only.
func LoadConversation(
	ctx context.Context,
	in *GraphState,
	store contractx.ConversationStore,
	idleTimeout time.Duration,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	id := identityOf(in.Turn)
	conv, err := loadConversation(ctx, store, id, in.Now, idleTimeout)
	if err != nil {
		metrics.PersistenceFailures.WithLabelValues("load").Inc()
		log.Error().Err(err).
			Str("session_id", id.SessionID).
			Str("tenant", id.TenantID).
			Msg("load conversation failed, continuing without persistence")
		in.Conversation = statex.NewConversation(uuid.NewString(), id.SessionID, id.TenantID, id.CustomerID, id.Channel, in.Now)
		in.Stored = false
		return in, nil
	}
	in.Conversation = conv
	in.Stored = true
	return in, nil
}

func loadConversation(
	ctx context.Context,
	store contractx.ConversationStore,
	id contractx.Identity,
	now time.Time,
	idleTimeout time.Duration,
) (*statex.Conversation, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: conversation store is nil", contractx.ErrValidation)
	}
	conv, err := store.GetOrCreateSession(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case conv.IsIdle(now, idleTimeout):
		if err := store.SetConversationState(ctx, conv.ID, statex.StateEnded, statex.ReasonIdleTimeout); err != nil {
			return nil, fmt.Errorf("end idle conversation %s: %w", conv.ID, err)
		}
		log.Info().
			Str("conversation_id", conv.ID).
			Str("session_id", conv.SessionID).
			Msg("conversation ended after idle timeout")
		return store.StartConversation(ctx, id)
	case conv.State == statex.StateEnded:
		return store.StartConversation(ctx, id)
	default:
		return conv, nil
	}
}

func identityOf(t contractx.Turn) contractx.Identity {
	return contractx.Identity{
		TenantID:   t.TenantID,
		SessionID:  t.SessionID,
		CustomerID: t.CustomerID,
		Channel:    t.Channel,
	}
}
