package verify

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// User-facing texts. English is the message key itself.
const (
	msgAwaitingLocation  = "Waiting for GPS signal..."
	msgOutOfRange        = "You are %.0fm from the school (limit %.0fm). Move closer to clock in."
	msgNoAnchor          = "School location is not configured. Clocking in is disabled."
	msgLocationDenied    = "Location permission denied or unavailable: %v"
	msgReady             = "Ready. Choose an event to clock."
	msgOpeningCamera     = "Opening camera..."
	msgLookAtCamera      = "Look at the camera and capture."
	msgVerifying         = "Verifying face..."
	msgDeviceUnavailable = "Could not open the camera. Check permissions and try again."
	msgNoFace            = "No face detected. Look straight at the camera in a well-lit place."
	msgMismatch          = "Face does not match the enrolled profile. Try again."
	msgVerifyError       = "Face verification failed. Try again."
	msgMovedAway         = "You moved %.0fm away from the school (limit %.0fm). Move closer and capture again."
	msgSubmitting        = "Submitting clock event..."
	msgCompleted         = "Clock event recorded."
	msgSubmitFailed      = "Could not submit clock event: %v"
	msgTimedOut          = "Verification timed out. Start again."
	msgCancelled         = "Attempt cancelled."
)

func init() {
	pt := language.BrazilianPortuguese
	for key, text := range map[string]string{
		msgAwaitingLocation:  "Aguardando sinal de GPS...",
		msgOutOfRange:        "Você está a %.0fm da escola (limite %.0fm). Aproxime-se para registrar o ponto.",
		msgNoAnchor:          "Localização da escola não configurada. Registro de ponto desativado.",
		msgLocationDenied:    "Permissão de localização negada ou indisponível: %v",
		msgReady:             "Pronto. Escolha o tipo de ponto.",
		msgOpeningCamera:     "Abrindo câmera...",
		msgLookAtCamera:      "Olhe para a câmera e capture.",
		msgVerifying:         "Verificando biometria...",
		msgDeviceUnavailable: "Erro ao abrir câmera. Verifique permissões e tente novamente.",
		msgNoFace:            "Rosto não detectado! Olhe fixamente para a câmera em local iluminado.",
		msgMismatch:          "Rosto não confere com o cadastro! Tente novamente.",
		msgVerifyError:       "Erro na validação facial. Tente novamente.",
		msgMovedAway:         "Você se afastou %.0fm da escola (limite %.0fm). Aproxime-se e capture novamente.",
		msgSubmitting:        "Enviando ponto...",
		msgCompleted:         "Ponto registrado com sucesso!",
		msgSubmitFailed:      "Erro ao enviar ponto: %v",
		msgTimedOut:          "Tempo de verificação esgotado. Comece novamente.",
		msgCancelled:         "Tentativa cancelada.",
	} {
		if err := message.SetString(pt, key, text); err != nil {
			panic("verify: registering message catalog: " + err.Error())
		}
	}
}

// NewPrinter returns a printer for lang, a BCP 47 tag or a POSIX locale such
// as "pt_BR.UTF-8". Unknown languages fall back to English.
func NewPrinter(lang string) *message.Printer {
	lang, _, _ = strings.Cut(lang, ".")
	tag, err := language.Parse(strings.ReplaceAll(lang, "_", "-"))
	if err != nil {
		tag = language.English
	}
	matcher := language.NewMatcher([]language.Tag{language.English, language.BrazilianPortuguese})
	_, idx, _ := matcher.Match(tag)
	if idx == 1 {
		return message.NewPrinter(language.BrazilianPortuguese)
	}
	return message.NewPrinter(language.English)
}
