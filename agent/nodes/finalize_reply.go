package orchestratornode

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

func FinalizeReply(in *GraphState, nowFn func() time.Time) (GraphOutput, error) {
	if in == nil || in.Conversation == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	if strings.TrimSpace(in.Output.ResponseText) == "" {
		return GraphOutput{}, fmt.Errorf("%w: reply text is empty", contractx.ErrValidation)
	}

	out := in.Output.Clone()
	return GraphOutput{Result: contractx.TurnResult{
		ConversationID: in.Conversation.ID,
		Output:         out,
		Source:         in.Source,
		Usage:          in.Usage,
		Retrieval:      in.Retrieval.IsWorking,
		CompletedAt:    nowFn().UTC(),
	}}, nil
}
