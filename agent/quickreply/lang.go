package quickreply

import (
	"strings"
	"unicode"
)

type Language string

const (
	English Language = "en"
	Thai    Language = "th"
	Spanish Language = "es"
)

// DisplayName is the English name used when instructing the model.
func (l Language) DisplayName() string {
	switch l {
	case Thai:
		return "Thai"
	case Spanish:
		return "Spanish"
	default:
		return "English"
	}
}

var spanishMarkers = map[string]bool{
	"hola": true, "gracias": true, "buenos": true, "buenas": true, "adios": true, "adiós": true,
	"precio": true, "cita": true, "quiero": true, "cuánto": true, "cuanto": true, "dónde": true,
	"horario": true, "necesito": true, "tienen": true, "reservar": true, "pedido": true,
}

// weakSpanishMarkers also show up in English text ("do me a favor") and only
// count when at least two of them appear.
var weakSpanishMarkers = map[string]bool{
	"por": true, "favor": true, "donde": true, "hasta": true, "luego": true,
}

// DetectLanguage is a script-then-keyword heuristic. It is good enough to pick
// canned replies; the model handles language for everything else.
func DetectLanguage(text string) Language {
	for _, r := range text {
		if unicode.Is(unicode.Thai, r) {
			return Thai
		}
		switch r {
		case 'ñ', 'Ñ', '¿', '¡':
			return Spanish
		}
	}

	weak := 0
	for _, w := range strings.FieldsFunc(strings.ToLower(text), isWordBreak) {
		if spanishMarkers[w] {
			return Spanish
		}
		if weakSpanishMarkers[w] {
			weak++
		}
	}
	if weak >= 2 {
		return Spanish
	}
	return English
}

func isWordBreak(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}
