// Package extract provides the deterministic text heuristics used by the
// credit qualification flow: names, amounts, lenders, contact modality,
// visit date/time and intent signals.
//
// Every function is pure and performs no I/O. A miss is reported through
// the boolean return, never through an error: failing to parse a reply is
// normal conversation, not a fault.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// LenderUnspecified is the canonical value for "no preference" replies.
const LenderUnspecified = "Por definir"

var (
	namePrefixRe   = regexp.MustCompile(`(?i)^(hola[,!]?\s*)?(me llamo|soy|mi nombre es)\s+`)
	nameTrailingRe = regexp.MustCompile(`[.,!?]+$`)
	nameLettersRe  = regexp.MustCompile(`^[a-záéíóúüñ\s]+$`)
	amountRe       = regexp.MustCompile(`(\d+)\s*(mil\b|k\b|m\b)?`)
)

// Name extracts a person's name from a free-text reply. Greeting prefixes
// are stripped, trailing punctuation removed, and only letter/space
// sequences of length 2-50 are accepted. Each word is capitalized.
func Name(text string) (string, bool) {
	name := strings.TrimSpace(text)
	name = namePrefixRe.ReplaceAllString(name, "")
	name = nameTrailingRe.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)

	if len(name) < 2 || len(name) > 50 {
		return "", false
	}
	if !nameLettersRe.MatchString(strings.ToLower(name)) {
		return "", false
	}

	words := strings.Fields(strings.ToLower(name))
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " "), true
}

// Amount extracts a money amount in pesos. Currency symbols, commas and
// the word "pesos" are stripped; "mil"/"k" multiply by a thousand and
// "m" by a million. Bare values below 1000 are assumed to mean
// thousands ("gano 25" -> 25000).
func Amount(text string) (int64, bool) {
	s := strings.ToLower(text)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "pesos", "")

	m := amountRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	switch m[2] {
	case "mil", "k":
		value *= 1000
	case "m":
		value *= 1000000
	}
	if value < 1000 {
		value *= 1000
	}
	return value, true
}

// lenderAliases maps substrings to canonical lender names. Order matters:
// brand aliases are checked before the "no preference" sentinels so that
// "no sé, quizá bbva" still resolves to BBVA.
var lenderAliases = []struct {
	alias     string
	canonical string
}{
	{"bbva", "BBVA"},
	{"bancomer", "BBVA"},
	{"banorte", "Banorte"},
	{"hsbc", "HSBC"},
	{"santander", "Santander"},
	{"scotiabank", "Scotiabank"},
	{"scotia", "Scotiabank"},
	{"banregio", "Banregio"},
	{"infonavit", "Infonavit"},
	{"fovissste", "Fovissste"},
	{"por definir", LenderUnspecified},
	{"no se", LenderUnspecified},
	{"no sé", LenderUnspecified},
	{"cualquier", LenderUnspecified},
	{"recomiend", LenderUnspecified},
	{"no tengo", LenderUnspecified},
	{"ninguno", LenderUnspecified},
}

// Lender detects a lender brand (or the unspecified sentinel) in a reply.
// Detection is idempotent: running it on its own canonical output yields
// the same value.
func Lender(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, e := range lenderAliases {
		if strings.Contains(lower, e.alias) {
			return e.canonical, true
		}
	}
	return "", false
}

// Modality classifies a contact-preference reply: numeric 1/2/3 or the
// matching keyword family.
func Modality(text string) (string, bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "1"), strings.Contains(lower, "llamada"),
		strings.Contains(lower, "telefon"), strings.Contains(lower, "teléfon"),
		strings.Contains(lower, "marcar"):
		return "llamada", true
	case strings.Contains(lower, "2"), strings.Contains(lower, "whatsapp"),
		strings.Contains(lower, "mensaje"), strings.Contains(lower, "escrib"):
		return "whatsapp", true
	case strings.Contains(lower, "3"), strings.Contains(lower, "presencial"),
		strings.Contains(lower, "oficina"), strings.Contains(lower, "persona"):
		return "presencial", true
	}
	return "", false
}

// SimpleReplyMaxLen bounds what counts as a "short answer" inside the
// flow. Longer unrecognized text is treated as free conversation and
// handed off instead of being force-parsed.
const SimpleReplyMaxLen = 15

// IsSimpleReply reports whether text looks like a direct answer to the
// current question (a recognized lender, a number, or a very short
// token) as opposed to free-form conversation.
func IsSimpleReply(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= SimpleReplyMaxLen {
		return true
	}
	if _, ok := Lender(trimmed); ok {
		return true
	}
	_, ok := Amount(trimmed)
	return ok
}
