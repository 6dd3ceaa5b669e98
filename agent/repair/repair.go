// Package repair turns raw model text into a validated AgentOutput.
//
// Recovery runs as an ordered chain of parsers (direct, embedded in prose,
// control-character sanitised, field regex). The winning object is
// canonicalised, nested JSON inside responseText is unwrapped, and the result
// is validated against a strict schema. Validation failure degrades to a
// minimal output; it never surfaces as an error.
package repair

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/pkg/metrics"
)

type Strategy string

const (
	StrategyDirect    Strategy = "direct"
	StrategyEmbedded  Strategy = "embedded"
	StrategySanitized Strategy = "sanitized"
	StrategyFields    Strategy = "fields"
	StrategyPlainText Strategy = "plain_text"
	StrategyNone      Strategy = "none"
)

const (
	maxUnwrapDepth = 3
	maxFollowUps   = 3

	DefaultFallbackText = "Sorry, I couldn't put together an answer just now. Could you rephrase your question?"
)

// Report describes how an output was recovered.
type Report struct {
	Strategy   Strategy
	Unwrapped  int
	Fallback   bool
	Violations []string
}

// Err is nil unless validation failed, in which case it wraps
// contract.ErrSchemaViolation with the violations.
func (r Report) Err() error {
	if !r.Fallback {
		return nil
	}
	return fmt.Errorf("%w: %s", contractx.ErrSchemaViolation, strings.Join(r.Violations, "; "))
}

type options struct {
	fallbackText string
}

type Option func(*options)

// WithFallbackText sets the reply used when no text can be recovered.
func WithFallbackText(s string) Option {
	return func(o *options) {
		if strings.TrimSpace(s) != "" {
			o.fallbackText = strings.TrimSpace(s)
		}
	}
}

// Repair never fails: the worst case is a minimal output carrying the
// fallback text.
func Repair(raw string, opts ...Option) (contractx.AgentOutput, Report) {
	o := options{fallbackText: DefaultFallbackText}
	for _, opt := range opts {
		opt(&o)
	}

	var rep Report
	text := strings.TrimSpace(raw)

	var fields map[string]any
	for _, p := range chain {
		if m, ok := p.parse(text); ok {
			fields = m
			rep.Strategy = p.name
			break
		}
	}
	if fields == nil {
		fields, rep.Strategy = plainText(text)
	} else {
		fields = canonicalize(fields)
	}

	rep.Unwrapped = unwrapNested(fields, maxUnwrapDepth)

	out, violations := validate(fields)
	if len(violations) > 0 {
		rep.Fallback = true
		rep.Violations = violations
		out = minimal(fields, o.fallbackText)
		metrics.ValidationFallbacks.Inc()
		log.Warn().Err(rep.Err()).
			Str("strategy", string(rep.Strategy)).
			Msg("agent output failed validation, using minimal output")
	}

	out.ResponseText = ensurePlain(out.ResponseText, o.fallbackText)
	out.Normalize()
	metrics.RepairStrategy.WithLabelValues(string(rep.Strategy)).Inc()
	return out, rep
}

// plainText accepts a reply with no JSON at all as the answer itself.
// Anything that still carries an object fragment is not shown to users.
func plainText(text string) (map[string]any, Strategy) {
	body := stripFence(text)
	if body == "" || strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[") || strings.Contains(body, `{"`) {
		return map[string]any{}, StrategyNone
	}
	return map[string]any{"responseText": body}, StrategyPlainText
}

func validate(fields map[string]any) (contractx.AgentOutput, []string) {
	res := outputSchema.Validate(fields)
	if res != nil && !res.Valid {
		return contractx.AgentOutput{}, violationsOf(res)
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return contractx.AgentOutput{}, []string{err.Error()}
	}
	var out contractx.AgentOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return contractx.AgentOutput{}, []string{err.Error()}
	}
	out.ResponseText = strings.TrimSpace(out.ResponseText)
	if out.ResponseText == "" {
		return contractx.AgentOutput{}, []string{"responseText: empty"}
	}
	out.ReasoningNote = strings.TrimSpace(out.ReasoningNote)
	out.Escalation.Reason = strings.TrimSpace(out.Escalation.Reason)
	out.SuggestedFollowUps = cleanList(out.SuggestedFollowUps, maxFollowUps)
	out.CategoriesMatched = cleanList(out.CategoriesMatched, 0)
	out.ToolsUsed = cleanList(out.ToolsUsed, 0)
	return out, nil
}

// minimal keeps recoverable text and a clear escalation request; everything
// else takes its default.
func minimal(fields map[string]any, fallback string) contractx.AgentOutput {
	out := contractx.AgentOutput{Mood: contractx.MoodNeutral, ResponseText: fallback}
	if s, ok := fields["responseText"].(string); ok && strings.TrimSpace(s) != "" {
		out.ResponseText = strings.TrimSpace(s)
	}
	if s, ok := fields["reasoningNote"].(string); ok {
		out.ReasoningNote = strings.TrimSpace(s)
	}
	if esc, ok := fields["escalation"].(map[string]any); ok {
		if should, _ := esc["shouldEscalate"].(bool); should {
			out.Escalation.ShouldEscalate = true
			out.Escalation.Reason, _ = esc["reason"].(string)
		}
	}
	out.Normalize()
	return out
}

// ensurePlain is the last pass over an already validated output: a
// responseText that still parses as JSON is unwrapped once more or replaced.
func ensurePlain(text, fallback string) string {
	for i := 0; i < maxUnwrapDepth && looksLikeJSON(text); i++ {
		inner, ok := nestedObject(text)
		if !ok {
			return fallback
		}
		s, _ := canonicalize(inner)["responseText"].(string)
		if strings.TrimSpace(s) == "" {
			return fallback
		}
		text = strings.TrimSpace(s)
	}
	if looksLikeJSON(text) || strings.TrimSpace(text) == "" {
		return fallback
	}
	return text
}

func cleanList(in []string, limit int) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
