package tool

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/kaptinlin/jsonschema"
)

// compileParams renders eino parameter infos as a strict JSON schema.
func compileParams(params map[string]*schema.ParameterInfo) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(objectSchema(params))
	if err != nil {
		return nil, fmt.Errorf("encode input schema: %w", err)
	}
	compiled, err := jsonschema.NewCompiler().Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("compile input schema: %w", err)
	}
	return compiled, nil
}

func objectSchema(params map[string]*schema.ParameterInfo) map[string]any {
	props := make(map[string]any, len(params))
	required := make([]string, 0, len(params))
	for name, p := range params {
		if p == nil {
			continue
		}
		props[name] = paramSchema(p)
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	out := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func paramSchema(p *schema.ParameterInfo) map[string]any {
	s := map[string]any{"type": string(p.Type)}
	if p.Desc != "" {
		s["description"] = p.Desc
	}
	if len(p.Enum) > 0 {
		s["enum"] = p.Enum
	}
	if p.Type == schema.String && p.Required {
		s["minLength"] = 1
	}
	switch p.Type {
	case schema.Array:
		if p.ElemInfo != nil {
			s["items"] = paramSchema(p.ElemInfo)
		}
	case schema.Object:
		if len(p.SubParams) > 0 {
			return objectSchema(p.SubParams)
		}
	}
	return s
}

func describeErrors(res *jsonschema.EvaluationResult) string {
	if res == nil || len(res.Errors) == 0 {
		return "invalid input"
	}
	parts := make([]string, 0, len(res.Errors))
	for key, e := range res.Errors {
		parts = append(parts, fmt.Sprintf("%v: %v", key, e))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
