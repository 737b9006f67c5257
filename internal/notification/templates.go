package notification

import (
	"bytes"
	"fmt"
	"html/template"
)

var transferStartedTemplate = template.Must(template.New("transfer_started").Parse(`
<p>Hola {{.Name}},</p>
<p>Tu traslado de operador está en curso. Tus documentos serán entregados al
operador de destino y recibirás una confirmación cuando el proceso termine.</p>
<p>Si no solicitaste este traslado, comunícate con soporte de inmediato.</p>
`))

var incomingWelcomeTemplate = template.Must(template.New("incoming_welcome").Parse(`
<p>Hola {{.Name}},</p>
<p>Tu traslado a DocuCol está casi listo. Creamos una cuenta provisional para
ti con esta contraseña de un solo uso:</p>
<p><strong>{{.Password}}</strong></p>
<p>Para completar el traslado confirma la recepción de tus documentos:</p>
<p><a href="{{.ConfirmURL}}">{{.ConfirmURL}}</a></p>
<p>Si rechazas el traslado, tu cuenta provisional y los documentos recibidos
serán eliminados.</p>
`))

type transferStartedData struct {
	Name string
}

type incomingWelcomeData struct {
	Name       string
	Password   string
	ConfirmURL string
}

func renderTemplate(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
