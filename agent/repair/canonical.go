package repair

import (
	"strings"

	"github.com/tidwall/gjson"
)

var aliases = map[string][]string{
	"responseText":       {"responseText", "response_text", "response", "message", "text", "answer", "reply"},
	"reasoningNote":      {"reasoningNote", "reasoning_note", "reasoning"},
	"mood":               {"mood", "tone"},
	"suggestedFollowUps": {"suggestedFollowUps", "suggested_follow_ups", "followUps", "follow_ups"},
	"categoriesMatched":  {"categoriesMatched", "categories_matched", "categories"},
	"toolsUsed":          {"toolsUsed", "tools_used"},
}

// canonicalize maps alias keys onto the output field names and drops
// everything else. Values keep their decoded type for schema validation.
func canonicalize(in map[string]any) map[string]any {
	out := make(map[string]any, len(aliases)+1)
	for field, keys := range aliases {
		for _, k := range keys {
			v, ok := in[k]
			if !ok || v == nil {
				continue
			}
			if s, isString := v.(string); isString && strings.TrimSpace(s) == "" && field == "responseText" {
				continue
			}
			out[field] = v
			break
		}
	}
	if mood, ok := out["mood"].(string); ok {
		out["mood"] = strings.ToLower(strings.TrimSpace(mood))
	}
	if arr, ok := out["responseText"].([]any); ok {
		out["responseText"] = joinStrings(arr)
	}
	if esc, ok := canonicalEscalation(in); ok {
		out["escalation"] = esc
	}
	return out
}

func canonicalEscalation(in map[string]any) (map[string]any, bool) {
	switch v := in["escalation"].(type) {
	case bool:
		return map[string]any{"shouldEscalate": v}, true
	case map[string]any:
		esc := map[string]any{}
		for _, k := range []string{"shouldEscalate", "should_escalate", "escalate"} {
			if s, ok := v[k]; ok && s != nil {
				esc["shouldEscalate"] = s
				break
			}
		}
		if r, ok := v["reason"]; ok && r != nil {
			esc["reason"] = r
		}
		if _, ok := esc["shouldEscalate"]; !ok {
			esc["shouldEscalate"] = false
		}
		return esc, true
	}
	for _, k := range []string{"shouldEscalate", "should_escalate"} {
		if s, ok := in[k]; ok && s != nil {
			esc := map[string]any{"shouldEscalate": s}
			if r, ok := in["escalationReason"]; ok && r != nil {
				esc["reason"] = r
			}
			return esc, true
		}
	}
	return nil, false
}

func joinStrings(arr []any) any {
	parts := make([]string, 0, len(arr))
	for _, v := range arr {
		s, ok := v.(string)
		if !ok {
			return arr
		}
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// unwrapNested replaces a responseText that is itself an object (or a string
// holding one) with the inner fields, up to depth layers.
func unwrapNested(fields map[string]any, depth int) int {
	layers := 0
	for layers < depth {
		inner, ok := nestedObject(fields["responseText"])
		if !ok {
			break
		}
		delete(fields, "responseText")
		for k, v := range canonicalize(inner) {
			fields[k] = v
		}
		layers++
	}
	return layers
}

func nestedObject(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case string:
		s := stripFence(x)
		if !strings.HasPrefix(s, "{") {
			return nil, false
		}
		for _, p := range chain[:3] {
			if m, ok := p.parse(s); ok {
				return m, true
			}
		}
	}
	return nil, false
}

// looksLikeJSON reports whether s is, after trimming, a parseable JSON object
// or array, or a fenced block holding one. Text that merely opens with a
// brace group, such as "{Promo} 20% off", is not structure.
func looksLikeJSON(s string) bool {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "```") {
		t = stripFence(t)
	}
	if !strings.HasPrefix(t, "{") && !strings.HasPrefix(t, "[") {
		return false
	}
	if gjson.Valid(t) {
		return true
	}
	_, ok := nestedObject(t)
	return ok
}
