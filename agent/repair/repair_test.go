package repair

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

var leadingStructure = regexp.MustCompile(`^\s*[{[]`)

func assertPlain(t *testing.T, out contractx.AgentOutput) {
	t.Helper()
	if strings.TrimSpace(out.ResponseText) == "" {
		t.Fatal("responseText is empty")
	}
	if leadingStructure.MatchString(out.ResponseText) && gjson.Valid(strings.TrimSpace(out.ResponseText)) {
		t.Fatalf("structure leaked into responseText: %q", out.ResponseText)
	}
}

func TestRepairNestedResponseField(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		`"responseText": "{\"response\":\"Hi\"}"`,
		`{"responseText": "{\"response\":\"Hi\"}"}`,
	} {
		out, rep := Repair(raw)
		if out.ResponseText != "Hi" {
			t.Fatalf("Repair(%s) responseText = %q, want Hi (report %+v)", raw, out.ResponseText, rep)
		}
		if rep.Unwrapped != 1 {
			t.Fatalf("unwrapped = %d, want 1", rep.Unwrapped)
		}
	}
}

func TestRepairStrategies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		raw      string
		strategy Strategy
		want     string
	}{
		{
			name:     "direct",
			raw:      `{"responseText":"We open at 9.","mood":"friendly","suggestedFollowUps":["Book now?"],"categoriesMatched":["hours"],"toolsUsed":[],"escalation":{"shouldEscalate":false}}`,
			strategy: StrategyDirect,
			want:     "We open at 9.",
		},
		{
			name:     "fenced",
			raw:      "```json\n{\"responseText\":\"Fenced answer\",\"mood\":\"neutral\"}\n```",
			strategy: StrategyDirect,
			want:     "Fenced answer",
		},
		{
			name:     "prose around object",
			raw:      `Sure, here's the "answer": {"responseText":"In stock.","mood":"excited"} hope that helps`,
			strategy: StrategyEmbedded,
			want:     "In stock.",
		},
		{
			name:     "raw newline inside string",
			raw:      "{\"responseText\":\"Line one\nLine two\",\"mood\":\"neutral\",}",
			strategy: StrategySanitized,
			want:     "Line one\nLine two",
		},
		{
			name:     "truncated",
			raw:      `{"responseText":"Your booking is confirmed for Tuesday","reasoningNote":"used create_bo`,
			strategy: StrategyFields,
			want:     "Your booking is confirmed for Tuesday",
		},
		{
			name:     "plain prose",
			raw:      "We are open every day from 10am to 8pm.",
			strategy: StrategyPlainText,
			want:     "We are open every day from 10am to 8pm.",
		},
		{
			name:     "alias keys",
			raw:      `{"response_text":"Alias works","reasoning":"r","follow_ups":["a","a","b","c","d"]}`,
			strategy: StrategyDirect,
			want:     "Alias works",
		},
	}

	for _, tc := range cases {
		out, rep := Repair(tc.raw)
		if rep.Strategy != tc.strategy {
			t.Fatalf("%s: strategy = %s, want %s", tc.name, rep.Strategy, tc.strategy)
		}
		if out.ResponseText != tc.want {
			t.Fatalf("%s: responseText = %q, want %q", tc.name, out.ResponseText, tc.want)
		}
		assertPlain(t, out)
	}
}

func TestRepairAliasListsAreCleaned(t *testing.T) {
	t.Parallel()

	out, rep := Repair(`{"response_text":"ok","follow_ups":["a","a"," b ","c","d"]}`)
	if rep.Fallback {
		t.Fatalf("unexpected fallback: %v", rep.Violations)
	}
	if got := strings.Join(out.SuggestedFollowUps, ","); got != "a,b,c" {
		t.Fatalf("follow-ups = %q", got)
	}
	if out.Mood != contractx.MoodNeutral {
		t.Fatalf("mood = %s", out.Mood)
	}
}

func TestRepairValidationFallbackKeepsTextAndEscalation(t *testing.T) {
	t.Parallel()

	raw := `{"responseText":"Let me get a staff member.","mood":"furious","categoriesMatched":"complaint","escalation":{"shouldEscalate":true,"reason":"angry customer"}}`
	out, rep := Repair(raw)
	if !rep.Fallback {
		t.Fatal("expected schema fallback")
	}
	if len(rep.Violations) == 0 {
		t.Fatal("violations not recorded")
	}
	if out.ResponseText != "Let me get a staff member." {
		t.Fatalf("responseText = %q", out.ResponseText)
	}
	if out.Mood != contractx.MoodNeutral || len(out.CategoriesMatched) != 0 {
		t.Fatalf("fallback must default mood and categories: %+v", out)
	}
	if !out.Escalation.ShouldEscalate || out.Escalation.Reason != "angry customer" {
		t.Fatalf("escalation lost: %+v", out.Escalation)
	}
}

func TestRepairDeeplyNested(t *testing.T) {
	t.Parallel()

	raw := `{"responseText":"{\"responseText\":\"{\\\"message\\\":\\\"Deep\\\"}\",\"mood\":\"empathetic\"}"}`
	out, rep := Repair(raw)
	if out.ResponseText != "Deep" {
		t.Fatalf("responseText = %q (report %+v)", out.ResponseText, rep)
	}
	if out.Mood != contractx.MoodEmpathetic {
		t.Fatalf("inner mood not merged: %s", out.Mood)
	}
	if rep.Unwrapped != 2 {
		t.Fatalf("unwrapped = %d, want 2", rep.Unwrapped)
	}
}

func TestRepairNestedWithTrailingProse(t *testing.T) {
	t.Parallel()

	raw := `{"responseText":"{\"response\":\"Hi there\"} let me know if you need anything","mood":"friendly"}`
	out, _ := Repair(raw)
	if out.ResponseText != "Hi there" {
		t.Fatalf("responseText = %q", out.ResponseText)
	}
	assertPlain(t, out)
}

func TestRepairNeverLeaksStructure(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"   ",
		"{}",
		"[]",
		`[{"responseText":"x"}]`,
		`{"responseText": {"foo": "bar"}}`,
		`{"responseText": "[1,2,3]"}`,
		`{"responseText": "{\"foo\": 1}"}`,
		"```json\n{\"mood\":\"neutral\"}\n```",
		`{"responseText": 42}`,
		`{"broken": `,
		`{"responseText":"{\"responseText\":\"{\\\"responseText\\\":\\\"{\\\\\\\"a\\\\\\\":1}\\\"}\"}"}`,
	}
	for _, raw := range inputs {
		out, _ := Repair(raw, WithFallbackText("fallback"))
		assertPlain(t, out)
	}
}

func TestRepairKeepsBraceLedProse(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"{Promo} 20% off facials this week!",
		`{"responseText":"{Promo} 20% off facials this week!","mood":"friendly"}`,
	} {
		out, rep := Repair(raw, WithFallbackText("fallback"))
		if out.ResponseText != "{Promo} 20% off facials this week!" {
			t.Fatalf("Repair(%s) responseText = %q (report %+v)", raw, out.ResponseText, rep)
		}
	}

	if looksLikeJSON("{Promo} 20% off") {
		t.Fatal("brace-led prose reported as JSON")
	}
	if !looksLikeJSON(`{"a": 1} trailing`) {
		t.Fatal("embedded object not reported as JSON")
	}
}

func TestRepairUsesFallbackText(t *testing.T) {
	t.Parallel()

	out, rep := Repair(`{"mood":"friendly"}`, WithFallbackText("ขออภัยค่ะ"))
	if out.ResponseText != "ขออภัยค่ะ" {
		t.Fatalf("responseText = %q", out.ResponseText)
	}
	if !rep.Fallback {
		t.Fatal("missing responseText must be a validation fallback")
	}
	if err := rep.Err(); !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("Err() = %v, want ErrSchemaViolation", err)
	}

	_, clean := Repair(`{"responseText":"We open at 9.","mood":"friendly"}`)
	if err := clean.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil for a valid output", err)
	}
}

func TestExtractObjectSkipsPrefixBraces(t *testing.T) {
	t.Parallel()

	got, ok := extractObject(`note } { "a": "}" , "b": [1, {"c": 2}] } tail`)
	if !ok {
		t.Fatal("expected an object")
	}
	if !gjson.Valid(got) || gjson.Get(got, "b.1.c").Int() != 2 {
		t.Fatalf("extracted = %s", got)
	}
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	got := sanitize("{\"a\":\"x\ty\u0001\",\"b\":[1,2,],}")
	want := `{"a":"x\ty\u0001","b":[1,2]}`
	if got != want {
		t.Fatalf("sanitize() = %s, want %s", got, want)
	}
}
