package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

func RetrieveContext(ctx context.Context, in *GraphState, retriever contractx.Retriever) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if retriever == nil {
		in.Retrieval = contractx.DegradedRetrieval()
		return in, nil
	}

	ctx, cancel := withDeadline(ctx, in)
	defer cancel()
	in.Retrieval = retriever.Retrieve(ctx, in.Text, in.Turn.Partition)
	return in, nil
}

func withDeadline(ctx context.Context, in *GraphState) (context.Context, context.CancelFunc) {
	if in.Deadline.IsZero() {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, in.Deadline)
}
