package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/tanpawarit/Chative-Concierge/agent/nodes"
)

func (e *Engine) compileHandleTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, e.now, e.cfg.TurnTimeout)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_conversation",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadConversation(ctx, in, e.store, e.cfg.IdleTimeout)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_conversation: %w", err)
	}

	if err := graph.AddLambdaNode("answer_shortcut",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AnswerShortcut(ctx, in, e.responses, e.cfg.ContactInfo)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node answer_shortcut: %w", err)
	}

	if err := graph.AddLambdaNode(nodex.RouteRetrieve,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RetrieveContext(ctx, in, e.retriever)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.RouteRetrieve, err)
	}

	if err := graph.AddLambdaNode("generate_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.GenerateReply(ctx, in, e.generation)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node generate_reply: %w", err)
	}

	if err := graph.AddLambdaNode("decide_escalation",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DecideEscalation(ctx, in, e.decider)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node decide_escalation: %w", err)
	}

	if err := graph.AddLambdaNode(nodex.RouteAnswered,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.PersistTurn(ctx, in, e.store, e.responses, e.cfg.PersistTimeout)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.RouteAnswered, err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in, e.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_conversation"},
		{"load_conversation", "answer_shortcut"},
		{nodex.RouteRetrieve, "generate_reply"},
		{"generate_reply", "decide_escalation"},
		{"decide_escalation", nodex.RouteAnswered},
		{nodex.RouteAnswered, "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	// Shortcut answers skip retrieval and inference.
	branch := compose.NewGraphBranch(nodex.RouteAfterShortcut, map[string]bool{
		nodex.RouteAnswered: true,
		nodex.RouteRetrieve: true,
	})
	if err := graph.AddBranch("answer_shortcut", branch); err != nil {
		return nil, fmt.Errorf("add branch answer_shortcut: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
