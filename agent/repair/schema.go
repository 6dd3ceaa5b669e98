package repair

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kaptinlin/jsonschema"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

var outputSchema = mustCompile(outputSchemaDoc())

func outputSchemaDoc() map[string]any {
	moods := make([]string, 0, len(contractx.Moods))
	for _, m := range contractx.Moods {
		moods = append(moods, string(m))
	}
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"responseText":       map[string]any{"type": "string", "minLength": 1},
			"reasoningNote":      map[string]any{"type": "string"},
			"mood":               map[string]any{"type": "string", "enum": moods},
			"suggestedFollowUps": stringList,
			"categoriesMatched":  stringList,
			"toolsUsed":          stringList,
			"escalation": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"shouldEscalate": map[string]any{"type": "boolean"},
					"reason":         map[string]any{"type": "string"},
				},
				"required":             []string{"shouldEscalate"},
				"additionalProperties": false,
			},
		},
		"required":             []string{"responseText"},
		"additionalProperties": false,
	}
}

func mustCompile(doc map[string]any) *jsonschema.Schema {
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("encode output schema: %v", err))
	}
	compiled, err := jsonschema.NewCompiler().Compile(raw)
	if err != nil {
		panic(fmt.Sprintf("compile output schema: %v", err))
	}
	return compiled
}

func violationsOf(res *jsonschema.EvaluationResult) []string {
	if res == nil || len(res.Errors) == 0 {
		return []string{"schema: invalid"}
	}
	out := make([]string, 0, len(res.Errors))
	for key, e := range res.Errors {
		out = append(out, fmt.Sprintf("%v: %v", key, e))
	}
	sort.Strings(out)
	return out
}
