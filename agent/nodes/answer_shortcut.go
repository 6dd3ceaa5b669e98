package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Concierge/agent/cache"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/agent/escalation"
	"github.com/tanpawarit/Chative-Concierge/agent/quickreply"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
)

const (
	RouteAnswered = "persist_turn"
	RouteRetrieve = "retrieve_context"
)

// AnswerShortcut answers without the model when it can: a hand-off
// acknowledgement on an escalated conversation, a canned pleasantry, or an
// exact cache hit. None of these paths call the inference service.
func AnswerShortcut(
	ctx context.Context,
	in *GraphState,
	responses *cache.ResponseCache,
	contactInfo string,
) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}

	if in.Conversation.State == statex.StateEscalated {
		in.Output = escalation.HandoffReply(in.Language, contactInfo)
		in.Source = contractx.SourceHandoff
		in.Answered = true
		return in, nil
	}

	if out, ok := quickreply.Match(in.Text); ok {
		in.Output = out
		in.Source = contractx.SourceQuickAnswer
		in.Answered = true
		return in, nil
	}

	if hit, ok := responses.Lookup(ctx, in.Turn.TenantID, in.Text); ok {
		log.Debug().
			Str("session_id", in.Turn.SessionID).
			Str("tenant", in.Turn.TenantID).
			Msg("response cache hit")
		in.Output = hit.Output
		in.Usage = hit.Usage
		in.Source = contractx.SourceCache
		in.Answered = true
		return in, nil
	}
	return in, nil
}

// RouteAfterShortcut is the branch condition that follows AnswerShortcut.
func RouteAfterShortcut(_ context.Context, in *GraphState) (string, error) {
	if in == nil {
		return "", fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Answered {
		return RouteAnswered, nil
	}
	return RouteRetrieve, nil
}
