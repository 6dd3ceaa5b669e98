package quickreply

import (
	"testing"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

func TestMatchPleasantries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text   string
		intent Intent
		lang   Language
	}{
		{"thanks", IntentThanks, English},
		{"  Thank you so much!! 🙏", IntentThanks, English},
		{"Hi there", IntentGreeting, English},
		{"good morning.", IntentGreeting, English},
		{"bye", IntentGoodbye, English},
		{"ขอบคุณครับ", IntentThanks, Thai},
		{"สวัสดีค่ะ", IntentGreeting, Thai},
		{"¡Hola!", IntentGreeting, Spanish},
		{"muchas gracias", IntentThanks, Spanish},
		{"hasta luego", IntentGoodbye, Spanish},
	}

	for _, tc := range cases {
		intent, ok := Classify(tc.text)
		if !ok || intent != tc.intent {
			t.Fatalf("Classify(%q) = %q, %v; want %q", tc.text, intent, ok, tc.intent)
		}
		out, ok := Match(tc.text)
		if !ok {
			t.Fatalf("Match(%q) returned no reply", tc.text)
		}
		if out.ResponseText != replies[tc.intent][tc.lang] {
			t.Fatalf("Match(%q) reply = %q, want %s reply", tc.text, out.ResponseText, tc.lang)
		}
		if out.Mood != contractx.MoodFriendly || out.Escalation.ShouldEscalate {
			t.Fatalf("unexpected output shape: %+v", out)
		}
		if out.ToolsUsed == nil || out.CategoriesMatched[0] != string(tc.intent) {
			t.Fatalf("output not normalized: %+v", out)
		}
	}
}

func TestAmbiguousTextFallsThrough(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"",
		"   ",
		"hi, how much is a facial?",
		"thanks but I still need to reschedule",
		"hello I want to book tomorrow",
		"no thanks, cancel my order",
		"สวัสดีค่ะ อยากจองคิวพรุ่งนี้",
		"hola, ¿cuánto cuesta?",
		"bye the way where is my order",
	} {
		if _, ok := Match(text); ok {
			t.Fatalf("Match(%q) should fall through", text)
		}
	}
}

func TestDetectLanguage(t *testing.T) {
	t.Parallel()

	cases := map[string]Language{
		"What time do you open?":         English,
		"เปิดกี่โมงคะ":                   Thai,
		"¿Dónde están?":                  Spanish,
		"quiero reservar una cita":       Spanish,
		"Can I book with the señora?":    Spanish,
		"Is 5pm ok for Botox 50 units?":  English,

		"Could you do me a favor and check my order?": English,
		"Prices start at $40 por session":             English,
		"una mesa por favor":                          Spanish,
		"hasta luego":                                 Spanish,
	}
	for text, want := range cases {
		if got := DetectLanguage(text); got != want {
			t.Fatalf("DetectLanguage(%q) = %s, want %s", text, got, want)
		}
	}
}
