package extract

import (
	"regexp"
	"strings"
)

// creditKeywords trigger entry into the qualification flow.
var creditKeywords = []string{
	"credito", "crédito", "hipoteca", "hipotecario",
	"financiamiento", "prestamo", "préstamo",
	"infonavit", "fovissste",
	"quiero comprar", "necesito financiar",
	"cuanto me prestan", "cuánto me prestan",
}

// alreadyInProcessPhrases mean the person is mid-process with a lender
// already; starting (or continuing) the flow would only annoy them.
var alreadyInProcessPhrases = []string{
	"ya tengo credito", "ya tengo crédito",
	"me aprobaron", "ya me aprobaron",
	"no necesito credito", "no necesito crédito",
	"ya estoy tramitando", "espero aprobacion", "espero aprobación",
	"en proceso", "ya conoci", "ya conocí",
}

// Typo-tolerant patterns: people write "soloespero" glued together and
// "ya twngo credito" with slipped fingers.
var (
	soloEsperoRe = regexp.MustCompile(`solo\s*espero`)
	yaTengoRe    = regexp.MustCompile(`ya\s+t\w?ngo\s+cr[eé]dito`)
	esperoMiRe   = regexp.MustCompile(`espero\s+(mi|el)\s+cr[eé]dito`)
)

// AlreadyQualified reports whether the text says the person is already
// in (or past) a credit process elsewhere.
func AlreadyQualified(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range alreadyInProcessPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return soloEsperoRe.MatchString(lower) ||
		yaTengoRe.MatchString(lower) ||
		esperoMiRe.MatchString(lower)
}

// CreditIntent reports whether the text asks for credit/mortgage help.
// Already-in-process messages are excluded so the flow does not
// re-trigger on people who only mention their ongoing credit.
func CreditIntent(text string) bool {
	if AlreadyQualified(text) {
		return false
	}
	lower := strings.ToLower(text)
	for _, k := range creditKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// offTopicKeywords indicate property/price/location/media conversation,
// which the flow must not try to parse as a slot answer.
var offTopicKeywords = []string{
	"cuesta", "precio", "cuanto vale", "cuánto vale",
	"donde queda", "dónde queda", "ubicacion", "ubicación", "direccion", "dirección",
	"fotos", "video", "imagenes", "imágenes",
	"quiero ver", "ver las casas",
	"recamaras", "recámaras", "metros", "amenidades", "modelo",
}

// OffTopicQuestionMinLen is the length past which a message with a
// question mark stops looking like a slot answer.
const OffTopicQuestionMinLen = 30

// OffTopic reports whether the text has drifted away from the flow's
// current question: property questions, long free-form questions, or
// already-in-process statements. It doubles as the flow's cancel signal.
func OffTopic(text string) bool {
	if AlreadyQualified(text) {
		return true
	}
	lower := strings.ToLower(text)
	for _, k := range offTopicKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return strings.Contains(lower, "?") && len(lower) > OffTopicQuestionMinLen
}
