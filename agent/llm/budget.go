package llm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenBudget picks a completion cap from the shape of the query.
type TokenBudget struct {
	Small   int
	Default int
	Large   int
}

const shortQueryWords = 8

// Thai is written without spaces; roughly six runes make a word.
const thaiRunesPerWord = 6

var expansiveMarkers = []string{
	// en
	"compare", "comparison", " vs", "versus", "difference", "explain", "why ", "how does",
	"pros and cons", "which is better",
	// th
	"เปรียบเทียบ", "ต่างกัน", "แตกต่าง", "อธิบาย", "ทำไม", "ข้อดี", "ข้อเสีย", "ดีกว่า",
	// es
	"comparar", "compara", "diferencia", "explica", "por qué", "porque", "ventajas", "cuál es mejor",
}

// "how do I get there" is a plain request; "how do refunds work" is not.
var howDoWork = regexp.MustCompile(`\bhow do\b[^?.!]*\bwork`)

func (b TokenBudget) For(query string) int {
	q := " " + strings.ToLower(strings.TrimSpace(query)) + " "
	for _, m := range expansiveMarkers {
		if strings.Contains(q, m) {
			return b.Large
		}
	}
	if howDoWork.MatchString(q) {
		return b.Large
	}
	if wordCount(query) <= shortQueryWords {
		return b.Small
	}
	return b.Default
}

func wordCount(s string) int {
	words := len(strings.Fields(s))
	thai := 0
	for _, r := range s {
		if unicode.Is(unicode.Thai, r) {
			thai++
		}
	}
	if thai > 0 {
		if est := (thai + thaiRunesPerWord - 1) / thaiRunesPerWord; est > words {
			return est
		}
	}
	if words == 0 && utf8.RuneCountInString(strings.TrimSpace(s)) > 0 {
		return 1
	}
	return words
}
