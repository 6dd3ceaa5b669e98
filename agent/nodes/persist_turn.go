package orchestratornode

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Concierge/agent/cache"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/pkg/metrics"
)

// PersistTurn writes the user message and the reply in one batch, then
// fills the response cache when the reply qualifies. It runs on a context
// detached from the turn deadline and never fails the turn.
func PersistTurn(
	ctx context.Context,
	in *GraphState,
	store contractx.ConversationStore,
	responses *cache.ResponseCache,
	timeout time.Duration,
) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}

	ctx = context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if in.Stored && store != nil {
		if err := store.AppendMessages(ctx, in.Conversation.ID, turnMessages(in)); err != nil {
			metrics.PersistenceFailures.WithLabelValues("append").Inc()
			log.Error().Err(err).
				Str("conversation_id", in.Conversation.ID).
				Str("session_id", in.Conversation.SessionID).
				Str("tenant", in.Conversation.TenantID).
				Msg("persist turn failed")
		} else {
			in.Conversation.Touch(in.Now)
		}
	}

	if cacheable(in) {
		responses.Set(ctx, in.Turn.TenantID, in.Text, in.Output, in.Usage)
	}
	return in, nil
}

// cacheable holds for clean model answers only. Escalations and tool-backed
// answers depend on state that a repeat question must not skip.
func cacheable(in *GraphState) bool {
	return in.Source == contractx.SourceModel &&
		!in.Output.Escalation.ShouldEscalate &&
		len(in.Output.ToolsUsed) == 0 &&
		!in.Repair.Fallback
}

func turnMessages(in *GraphState) []contractx.StoredMessage {
	user := contractx.StoredMessage{
		ConversationID: in.Conversation.ID,
		Role:           contractx.RoleUser,
		Content:        in.Text,
		Metadata:       map[string]any{"language": string(in.Language)},
		CreatedAt:      in.Now,
	}
	meta := map[string]any{
		"source":    string(in.Source),
		"mood":      string(in.Output.Mood),
		"toolsUsed": append([]string{}, in.Output.ToolsUsed...),
		"usage": map[string]any{
			"promptTokens":     in.Usage.PromptTokens,
			"completionTokens": in.Usage.CompletionTokens,
			"rounds":           in.Usage.Rounds,
		},
	}
	if in.Output.Escalation.ShouldEscalate {
		meta["escalation"] = map[string]any{
			"reason": in.Output.Escalation.Reason,
			"repeat": in.Decision.Repeat,
		}
	}
	if in.Repair.Strategy != "" {
		meta["repairStrategy"] = string(in.Repair.Strategy)
	}
	reply := contractx.StoredMessage{
		ConversationID: in.Conversation.ID,
		Role:           contractx.RoleAssistant,
		Content:        in.Output.ResponseText,
		Metadata:       meta,
		CreatedAt:      in.Now.Add(time.Microsecond),
	}
	return []contractx.StoredMessage{user, reply}
}
