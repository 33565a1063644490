package reminder

import "strings"

// Intent is the classified meaning of an inbound reply.
type Intent string

const (
	IntentConfirm Intent = "confirm"
	IntentCancel  Intent = "cancel"
	IntentRebook  Intent = "rebook"
	IntentUnknown Intent = "unknown"
)

// Keyword sets are fixed; anything fancier than exact matching on the
// normalized body is out of scope.
var (
	confirmWords = wordSet("1", "si", "sí", "confirmo", "confirmar", "ok", "listo", "yes", "y")
	cancelWords  = wordSet("0", "no", "cancelar", "cancelo", "c")
	rebookWords  = wordSet("2", "reagendar", "reagenda", "reprogramar", "rebook", "r")
)

// ClassifyIntent normalizes the body (trim, lowercase) and maps it onto the
// closed intent set. Pure; no channel I/O.
func ClassifyIntent(body string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(body))

	switch {
	case confirmWords[normalized]:
		return IntentConfirm
	case cancelWords[normalized]:
		return IntentCancel
	case rebookWords[normalized]:
		return IntentRebook
	default:
		return IntentUnknown
	}
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Localized reply strings. The channel provider owns the envelope; these are
// the plain texts sent back to the patient.
const (
	ReplyConfirmed = "Tu cita quedó confirmada. ¡Te esperamos!"
	ReplyCancelled = "Tu cita fue cancelada. Si necesitas una nueva cita, contáctanos."
	ReplyRebook    = "Recibimos tu solicitud para reagendar. Un miembro del equipo te contactará pronto."
	ReplyHelp      = "Responde 1 para confirmar tu cita, 0 para cancelarla o 2 para reagendar."
	ReplyError     = "No pudimos procesar tu mensaje en este momento. Por favor intenta de nuevo más tarde."
)
