// Package quickreply answers trivial utterances (greetings, thanks, goodbyes)
// without touching the network.
package quickreply

import (
	"regexp"
	"strings"
	"unicode"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

type Intent string

const (
	IntentGreeting Intent = "greeting"
	IntentThanks   Intent = "thanks"
	IntentGoodbye  Intent = "goodbye"
)

// Patterns are anchored on both ends: anything beyond the pleasantry itself
// ("hi, how much is a facial?") must fall through to the model.
var patterns = []struct {
	intent Intent
	re     *regexp.Regexp
}{
	{IntentThanks, regexp.MustCompile(`^(thanks?|thank you|thx|ty|many thanks|thanks a lot|thank you (so|very) much|gracias|muchas gracias|mil gracias|ขอบคุณ(ครับ|ค่ะ|คะ|นะ(ครับ|คะ|ค่ะ)?|มาก(ครับ|ค่ะ|คะ)?)?|ขอบใจ)( (so much|a lot|again))?$`)},
	{IntentGreeting, regexp.MustCompile(`^(hi|hello|hey|hiya|yo|good (morning|afternoon|evening)|hola|buenos dias|buenos días|buenas|buenas tardes|buenas noches|สวัสดี(ครับ|ค่ะ|คะ|จ้า)?|หวัดดี(ครับ|ค่ะ|คะ)?)( there| all| team)?$`)},
	{IntentGoodbye, regexp.MustCompile(`^(bye|goodbye|bye bye|see you|see ya|see you later|adios|adiós|hasta luego|chao|ลาก่อน(ครับ|ค่ะ)?|บาย(ครับ|ค่ะ)?|แล้วเจอกัน(ครับ|ค่ะ)?)$`)},
}

var replies = map[Intent]map[Language]string{
	IntentGreeting: {
		English: "Hello! How can I help you today?",
		Thai:    "สวัสดีค่ะ มีอะไรให้ช่วยไหมคะ",
		Spanish: "¡Hola! ¿En qué puedo ayudarte hoy?",
	},
	IntentThanks: {
		English: "You're welcome! Is there anything else I can help with?",
		Thai:    "ยินดีค่ะ มีอะไรให้ช่วยเพิ่มเติมไหมคะ",
		Spanish: "¡De nada! ¿Hay algo más en lo que pueda ayudarte?",
	},
	IntentGoodbye: {
		English: "Goodbye! Feel free to message us anytime.",
		Thai:    "ขอบคุณที่ติดต่อเรานะคะ แล้วพบกันใหม่ค่ะ",
		Spanish: "¡Hasta luego! Escríbenos cuando quieras.",
	},
}

var followUps = map[Language][]string{
	English: {"What services do you offer?", "What are your opening hours?"},
	Thai:    {"มีบริการอะไรบ้าง", "เปิดกี่โมง"},
	Spanish: {"¿Qué servicios ofrecen?", "¿Cuál es su horario?"},
}

// Match returns a canned reply when the whole utterance is a pleasantry.
func Match(text string) (contractx.AgentOutput, bool) {
	intent, ok := Classify(text)
	if !ok {
		return contractx.AgentOutput{}, false
	}
	lang := DetectLanguage(text)
	out := contractx.AgentOutput{
		ResponseText:      replies[intent][lang],
		ReasoningNote:     "quick answer: " + string(intent),
		Mood:              contractx.MoodFriendly,
		CategoriesMatched: []string{string(intent)},
	}
	if intent != IntentGoodbye {
		out.SuggestedFollowUps = append([]string(nil), followUps[lang]...)
	}
	out.Normalize()
	return out, true
}

// Classify reports the pleasantry intent of text, if any.
func Classify(text string) (Intent, bool) {
	norm := normalize(text)
	if norm == "" {
		return "", false
	}
	for _, p := range patterns {
		if p.re.MatchString(norm) {
			return p.intent, true
		}
	}
	return "", false
}

// normalize lowercases, drops punctuation and emoji, and collapses spaces.
// Thai combining marks are letters of the word and must survive.
func normalize(text string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case unicode.IsLetter(r) || unicode.Is(unicode.Mn, r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
