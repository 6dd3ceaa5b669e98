package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/pkg/metrics"
)

type ExecutorConfig struct {
	CallTimeout   time.Duration `split_words:"true" default:"8s"`
	MaxConcurrent int           `split_words:"true" default:"4"`
}

var _ contractx.ToolExecutor = (*Executor)(nil)

// Executor runs the calls of one model round. Calls are independent: each
// gets its own timeout and a failure becomes a structured payload instead of
// aborting its siblings.
type Executor struct {
	registry *Registry
	cfg      ExecutorConfig
}

// failure is the payload fed back to the model for a failed call.
type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

const (
	codeNotFound  = "TOOL_NOT_FOUND"
	codeBadInput  = "INVALID_INPUT"
	codeExecution = "TOOL_EXECUTION_ERROR"
	codeTimeout   = "TOOL_TIMEOUT"
)

func NewExecutor(registry *Registry, cfg ExecutorConfig) *Executor {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Executor{registry: registry, cfg: cfg}
}

// Execute returns one result per call, index-aligned. Calls run detached from
// ctx cancellation so side effects already started are allowed to finish;
// the caller decides whether the results are still wanted.
func (e *Executor) Execute(ctx context.Context, caller contractx.Caller, calls []contractx.ToolCall) []contractx.ToolResult {
	if len(calls) == 0 {
		return nil
	}
	detached := context.WithoutCancel(ctx)
	results := make([]contractx.ToolResult, len(calls))

	var g errgroup.Group
	g.SetLimit(e.cfg.MaxConcurrent)
	for i := range calls {
		g.Go(func() error {
			results[i] = e.ExecuteOne(detached, caller, calls[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Executor) ExecuteOne(ctx context.Context, caller contractx.Caller, call contractx.ToolCall) (res contractx.ToolResult) {
	res = contractx.ToolResult{ID: call.ID, Name: call.Name}
	logger := log.With().Str("tool", call.Name).Str("tool_call_id", call.ID).Str("session_id", caller.SessionID).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("tool panicked")
			res.Output, res.Success = failurePayload(codeExecution, fmt.Sprintf("tool panicked: %v", r)), false
		}
		outcome := "ok"
		if !res.Success {
			outcome = "error"
		}
		metrics.ToolExecutions.WithLabelValues(call.Name, outcome).Inc()
	}()

	t, ok := e.registry.Lookup(call.Name)
	if !ok {
		logger.Warn().Err(contractx.ErrToolNotFound).Msg("model requested unknown tool")
		res.Output = failurePayload(codeNotFound, fmt.Sprintf("tool not found: %s", call.Name))
		return res
	}

	if e.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()
	}

	out, err := t.Invoke(ctx, caller, call.Input)
	if err != nil {
		code := codeExecution
		switch {
		case errors.Is(err, contractx.ErrToolInput):
			code = codeBadInput
		case errors.Is(err, context.DeadlineExceeded):
			code = codeTimeout
		}
		logger.Warn().Err(err).Str("code", code).Msg("tool call failed")
		res.Output = failurePayload(code, err.Error())
		return res
	}

	res.Output = out
	res.Success = reportedSuccess(out)
	return res
}

func failurePayload(code, msg string) json.RawMessage {
	raw, err := json.Marshal(failure{Success: false, Error: msg, Code: code})
	if err != nil {
		return json.RawMessage(`{"success":false,"error":"tool execution failed","code":"TOOL_EXECUTION_ERROR"}`)
	}
	return raw
}

// reportedSuccess honours a "success" flag in the service's own payload.
func reportedSuccess(out json.RawMessage) bool {
	var status struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(out, &status); err != nil || status.Success == nil {
		return true
	}
	return *status.Success
}
