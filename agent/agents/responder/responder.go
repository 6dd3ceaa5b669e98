// Package responder runs the inference/tool loop for one turn.
package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/agent/llm"
)

type Config struct {
	MaxRounds int `split_words:"true" default:"4"`
}

// Request is one loop run. Messages is the assembled prompt; it is copied
// before tool results are appended.
type Request struct {
	Messages  []*schema.Message
	Caller    contractx.Caller
	MaxTokens int
}

type Result struct {
	Raw       string
	ToolsUsed []string
	Usage     contractx.UsageStats
	// Capped is set when the round cap cut off a pending tool request.
	Capped bool
}

type Responder struct {
	model     llm.Generator
	tools     contractx.ToolExecutor
	maxRounds int
}

func New(model llm.Generator, tools contractx.ToolExecutor, cfg Config) (*Responder, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: generator is nil", contractx.ErrValidation)
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 4
	}
	return &Responder{model: model, tools: tools, maxRounds: cfg.MaxRounds}, nil
}

// Run drives PromptReady -> AwaitingModel -> {Final | ToolRequested ->
// ExecutingTools -> AwaitingModel ...}. Inference exhaustion returns
// ErrInferenceUnavailable and a deadline returns ErrTurnDeadline; both are
// for the caller's emergency path.
func (r *Responder) Run(ctx context.Context, req Request) (Result, error) {
	machine := newLoopFSM(req.Caller.SessionID)
	working := append(make([]*schema.Message, 0, len(req.Messages)+4), req.Messages...)

	var (
		res  Result
		last *schema.Message
		used = map[string]bool{}
	)

	// Transitions must still record after the turn deadline has passed.
	fsmCtx := context.WithoutCancel(ctx)
	fire := func(event string) error {
		if err := machine.Event(fsmCtx, event); err != nil {
			return fmt.Errorf("loop transition %s from %s: %w", event, machine.Current(), err)
		}
		return nil
	}

	if err := fire(EventSend); err != nil {
		return res, err
	}

	for {
		switch machine.Current() {
		case StateAwaitingModel:
			if err := ctx.Err(); err != nil {
				_ = fire(EventFail)
				return res, fmt.Errorf("%w: %w", contractx.ErrTurnDeadline, err)
			}
			msg, err := r.model.Generate(ctx, working, req.MaxTokens)
			res.Usage.Rounds++
			if err != nil {
				_ = fire(EventFail)
				if ctx.Err() != nil {
					return res, fmt.Errorf("%w: %w", contractx.ErrTurnDeadline, err)
				}
				return res, err
			}
			if msg == nil {
				msg = &schema.Message{Role: schema.Assistant}
			}
			last = msg
			addUsage(&res.Usage, msg)
			if len(msg.ToolCalls) == 0 {
				if err := fire(EventReplyFinal); err != nil {
					return res, err
				}
				continue
			}
			if err := fire(EventReplyTools); err != nil {
				return res, err
			}

		case StateToolRequested:
			if res.Usage.Rounds >= r.maxRounds || r.tools == nil {
				res.Capped = true
				log.Warn().
					Str("session_id", req.Caller.SessionID).
					Int("rounds", res.Usage.Rounds).
					Int("pending_calls", len(last.ToolCalls)).
					Msg("round cap reached with pending tool calls")
				if err := fire(EventRoundCap); err != nil {
					return res, err
				}
				continue
			}
			if err := fire(EventExecute); err != nil {
				return res, err
			}

		case StateExecutingTools:
			assistant, calls := normalizeCalls(last)
			results, err := r.execute(ctx, req.Caller, calls)
			if err != nil {
				_ = fire(EventFail)
				return res, err
			}
			working = append(working, assistant)
			for i, tr := range results {
				working = append(working, schema.ToolMessage(string(tr.Output), calls[i].ID))
				if tr.Success && !used[tr.Name] {
					used[tr.Name] = true
					res.ToolsUsed = append(res.ToolsUsed, tr.Name)
				}
			}
			if err := fire(EventToolsDone); err != nil {
				return res, err
			}

		case StateFinal:
			if last != nil {
				res.Raw = strings.TrimSpace(last.Content)
			}
			if res.ToolsUsed == nil {
				res.ToolsUsed = []string{}
			}
			return res, nil

		default:
			return res, fmt.Errorf("%w: loop stuck in state %s", contractx.ErrValidation, machine.Current())
		}
	}
}

// execute waits for the round's results unless the turn deadline passes
// first. Calls already started keep running; their results are dropped.
func (r *Responder) execute(ctx context.Context, caller contractx.Caller, calls []contractx.ToolCall) ([]contractx.ToolResult, error) {
	done := make(chan []contractx.ToolResult, 1)
	go func() {
		done <- r.tools.Execute(ctx, caller, calls)
	}()
	select {
	case results := <-done:
		return results, nil
	case <-ctx.Done():
		log.Warn().
			Str("session_id", caller.SessionID).
			Int("calls", len(calls)).
			Msg("turn deadline passed during tool execution, discarding results")
		return nil, fmt.Errorf("%w: %w", contractx.ErrTurnDeadline, ctx.Err())
	}
}

// normalizeCalls gives every call an id so each one can be answered, and
// returns the assistant message to append with those ids.
func normalizeCalls(msg *schema.Message) (*schema.Message, []contractx.ToolCall) {
	assistant := &schema.Message{
		Role:      schema.Assistant,
		Content:   msg.Content,
		ToolCalls: make([]schema.ToolCall, len(msg.ToolCalls)),
	}
	calls := make([]contractx.ToolCall, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		if strings.TrimSpace(tc.ID) == "" {
			tc.ID = "call_" + uuid.NewString()
		}
		args := strings.TrimSpace(tc.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		assistant.ToolCalls[i] = tc
		calls[i] = contractx.ToolCall{
			ID:    tc.ID,
			Name:  strings.TrimSpace(tc.Function.Name),
			Input: json.RawMessage(args),
		}
	}
	return assistant, calls
}

func addUsage(u *contractx.UsageStats, msg *schema.Message) {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return
	}
	u.Add(msg.ResponseMeta.Usage.PromptTokens, msg.ResponseMeta.Usage.CompletionTokens)
}
