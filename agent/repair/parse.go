package repair

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// parser is one recovery strategy. Strategies run in order and the first
// one that yields an object wins.
type parser struct {
	name  Strategy
	parse func(text string) (map[string]any, bool)
}

var chain = []parser{
	{name: StrategyDirect, parse: parseDirect},
	{name: StrategyEmbedded, parse: parseEmbedded},
	{name: StrategySanitized, parse: parseSanitized},
	{name: StrategyFields, parse: parseFields},
}

var fence = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\\r?\\n?(.*?)\\s*```")

// stripFence returns the body of the first fenced block, or the text with a
// dangling opening fence removed when the reply was cut off.
func stripFence(s string) string {
	if m := fence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```")
		if i := strings.IndexByte(t, '\n'); i >= 0 {
			t = t[i+1:]
		} else {
			t = strings.TrimLeft(t, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
		}
	}
	return strings.TrimSpace(t)
}

func parseDirect(text string) (map[string]any, bool) {
	s := stripFence(text)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	return decodeObject(s)
}

func parseEmbedded(text string) (map[string]any, bool) {
	obj, ok := extractObject(stripFence(text))
	if !ok {
		return nil, false
	}
	return decodeObject(obj)
}

func parseSanitized(text string) (map[string]any, bool) {
	s := stripFence(text)
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, false
	}
	s = s[start:]
	if end := strings.LastIndexByte(s, '}'); end >= 0 {
		s = s[:end+1]
	}
	return decodeObject(sanitize(s))
}

var (
	textField      = regexp.MustCompile(`"(?:responseText|response_text|response|message|text|answer|reply)"\s*:\s*"((?:[^"\\]|\\.)*)"?`)
	reasoningField = regexp.MustCompile(`"(?:reasoningNote|reasoning_note|reasoning)"\s*:\s*"((?:[^"\\]|\\.)*)"?`)
	escalateField  = regexp.MustCompile(`"(?:shouldEscalate|should_escalate)"\s*:\s*(true|false)`)
)

// parseFields pulls the text fields out of JSON too broken to decode.
func parseFields(text string) (map[string]any, bool) {
	m := textField.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	resp := strings.TrimSpace(unescape(m[1]))
	if resp == "" {
		return nil, false
	}
	out := map[string]any{"responseText": resp}
	if r := reasoningField.FindStringSubmatch(text); r != nil {
		out["reasoningNote"] = strings.TrimSpace(unescape(r[1]))
	}
	if e := escalateField.FindStringSubmatch(text); e != nil && e[1] == "true" {
		out["escalation"] = map[string]any{"shouldEscalate": true}
	}
	return out, true
}

func decodeObject(s string) (map[string]any, bool) {
	if !gjson.Valid(s) || !gjson.Parse(s).IsObject() {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, false
	}
	return out, true
}

// extractObject returns the first balanced JSON object in s. Each '{' is
// tried as a start so quotes in leading prose cannot derail the scan.
func extractObject(s string) (string, bool) {
	for from := 0; from < len(s); {
		i := strings.IndexByte(s[from:], '{')
		if i < 0 {
			return "", false
		}
		start := from + i
		if end, ok := balancedEnd(s, start); ok {
			return s[start : end+1], true
		}
		from = start + 1
	}
	return "", false
}

func balancedEnd(s string, start int) (int, bool) {
	inString := false
	escaped := false
	var stack []byte
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// sanitize escapes raw control characters inside string literals and drops
// trailing commas before a closing bracket.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
				b.WriteByte(ch)
			case ch == '\\':
				escaped = true
				b.WriteByte(ch)
			case ch == '"':
				inString = false
				b.WriteByte(ch)
			case ch < 0x20:
				writeControl(&b, ch)
			default:
				b.WriteByte(ch)
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case ',':
			if j := nextNonSpace(s, i+1); j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func writeControl(b *strings.Builder, ch byte) {
	switch ch {
	case '\n':
		b.WriteString(`\n`)
	case '\r':
		b.WriteString(`\r`)
	case '\t':
		b.WriteString(`\t`)
	default:
		const hex = "0123456789abcdef"
		b.WriteString(`\u00`)
		b.WriteByte(hex[ch>>4])
		b.WriteByte(hex[ch&0xf])
	}
}

func nextNonSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\n' || s[i] == '\r' || s[i] == '\t') {
		i++
	}
	return i
}

var looseUnescape = strings.NewReplacer(`\"`, `"`, `\n`, "\n", `\t`, "\t", `\r`, "", `\\`, `\`, `\/`, `/`)

func unescape(s string) string {
	var out string
	if err := json.Unmarshal([]byte(sanitize(`"`+s+`"`)), &out); err == nil {
		return out
	}
	return looseUnescape.Replace(s)
}
