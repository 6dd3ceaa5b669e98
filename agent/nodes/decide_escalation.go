package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/agent/escalation"
)

// DecideEscalation hands the conversation over when the output asks for it.
func DecideEscalation(ctx context.Context, in *GraphState, decider *escalation.Decider) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	if decider == nil {
		return in, nil
	}
	in.Decision = decider.Decide(ctx, in.Conversation, in.Text, in.Output)
	return in, nil
}
