// Package tool is the closed registry of domain actions the model may call.
// Each tool pairs a typed input with a typed handler, so adding one is a
// compile-checked change rather than a new string case.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/kaptinlin/jsonschema"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

type Name string

const (
	TrackOrder        Name = "track_order"
	CheckInventory    Name = "check_inventory"
	CheckAvailability Name = "check_availability"
	CreateBooking     Name = "create_booking"
	IssuePaymentLink  Name = "issue_payment_link"
	TrackFunnelEvent  Name = "track_funnel_event"
)

// identityFields are never accepted from the model. They are stripped from
// arguments before validation and filled from the caller afterwards.
var identityFields = []string{"tenant_id", "customer_id", "session_id", "conversation_id"}

type Tool interface {
	Name() Name
	Info() *schema.ToolInfo
	Invoke(ctx context.Context, caller contractx.Caller, args json.RawMessage) (json.RawMessage, error)
}

type typedTool[In, Out any] struct {
	name      Name
	info      *schema.ToolInfo
	validator *jsonschema.Schema
	inject    func(*In, contractx.Caller)
	run       func(context.Context, In) (Out, error)
}

// New declares a tool. params drive both the model-facing definition and the
// strict input schema (no additional properties).
func New[In, Out any](
	name Name,
	desc string,
	params map[string]*schema.ParameterInfo,
	inject func(*In, contractx.Caller),
	run func(context.Context, In) (Out, error),
) (Tool, error) {
	if strings.TrimSpace(string(name)) == "" {
		return nil, fmt.Errorf("%w: tool name is empty", contractx.ErrValidation)
	}
	if run == nil {
		return nil, fmt.Errorf("%w: tool %s has no handler", contractx.ErrValidation, name)
	}
	validator, err := compileParams(params)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	return &typedTool[In, Out]{
		name: name,
		info: &schema.ToolInfo{
			Name:        string(name),
			Desc:        desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		},
		validator: validator,
		inject:    inject,
		run:       run,
	}, nil
}

func (t *typedTool[In, Out]) Name() Name             { return t.name }
func (t *typedTool[In, Out]) Info() *schema.ToolInfo { return t.info }

func (t *typedTool[In, Out]) Invoke(ctx context.Context, caller contractx.Caller, args json.RawMessage) (json.RawMessage, error) {
	fields, err := decodeArgs(args)
	if err != nil {
		return nil, err
	}
	for _, k := range identityFields {
		delete(fields, k)
	}

	if res := t.validator.Validate(fields); !res.Valid {
		return nil, fmt.Errorf("%w: %s: %s", contractx.ErrToolInput, t.name, describeErrors(res))
	}

	normalized, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contractx.ErrToolInput, t.name, err)
	}
	var in In
	if err := json.Unmarshal(normalized, &in); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contractx.ErrToolInput, t.name, err)
	}
	if t.inject != nil {
		t.inject(&in, caller)
	}

	out, err := t.run(ctx, in)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode %s output: %w", t.name, err)
	}
	return raw, nil
}

func decodeArgs(args json.RawMessage) (map[string]any, error) {
	trimmed := strings.TrimSpace(string(args))
	if trimmed == "" || trimmed == "null" {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return nil, fmt.Errorf("%w: arguments are not a JSON object: %v", contractx.ErrToolInput, err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}
