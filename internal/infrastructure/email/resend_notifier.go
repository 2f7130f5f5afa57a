package email

import (
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/mercadolocal-sv/dte-engine/internal/application/dte"
	"github.com/mercadolocal-sv/dte-engine/internal/domain/entity"
)

var _ dte.Notifier = (*ResendNotifier)(nil)

// ResendNotifier avisa por correo los desenlaces que requieren acción humana:
// rechazos y paso a contingencia. Es mejor-esfuerzo; un fallo del proveedor
// solo se registra en el log, nunca afecta la transición del documento.
type ResendNotifier struct {
	client *resend.Client
	from   string
	to     []string
	log    zerolog.Logger
}

// NewResendNotifier construye el notificador. to es la lista de operadores.
func NewResendNotifier(apiKey, from string, to []string, log zerolog.Logger) *ResendNotifier {
	return &ResendNotifier{
		client: resend.NewClient(apiKey),
		from:   from,
		to:     to,
		log:    log,
	}
}

// DocumentTransitioned envía el aviso si el desenlace lo amerita. Pensado para
// invocarse en goroutine propia.
func (n *ResendNotifier) DocumentTransitioned(doc *entity.Document) {
	var subject, body string
	switch doc.Estado {
	case entity.EstadoRechazado:
		subject = fmt.Sprintf("DTE rechazado por el MH: %s", doc.ID)
		body = fmt.Sprintf(
			"<p>El documento <strong>%s</strong> (tipo %s) fue rechazado por el Ministerio de Hacienda.</p><p>Observaciones:</p><ul><li>%s</li></ul><p>Corrija los datos y emita un documento nuevo.</p>",
			doc.ID, doc.TipoDte, strings.Join(doc.Observaciones, "</li><li>"))
	case entity.EstadoContingencia:
		subject = fmt.Sprintf("DTE en contingencia: %s", doc.ID)
		body = fmt.Sprintf(
			"<p>No se pudo transmitir el documento <strong>%s</strong> (tipo %s): el servicio del MH no está disponible.</p><p>El documento quedó en CONTINGENCIA y debe incluirse en un reporte de contingencia.</p>",
			doc.ID, doc.TipoDte)
	default:
		return
	}

	result, err := n.client.Emails.Send(&resend.SendEmailRequest{
		From:    n.from,
		To:      n.to,
		Subject: subject,
		Html:    body,
	})
	if err != nil {
		n.log.Warn().Err(err).Str("document_id", doc.ID).Msg("enviar notificación por correo")
		return
	}
	n.log.Info().
		Str("email_id", result.Id).
		Str("document_id", doc.ID).
		Str("estado", doc.Estado).
		Msg("notificación enviada")
}
