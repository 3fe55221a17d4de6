package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// sendTimeout bounds how long a registration request can wait on the SMTP
// provider before the delivery is treated as failed.
const sendTimeout = 10 * time.Second

// Sender delivers verification codes. The SMTP implementation is swapped for
// a stub in tests.
type Sender interface {
	SendVerificationCode(to, name, code string) error
}

var verificationTemplate = template.Must(template.New("verification").Parse(`
<p>Hola {{.Name}},</p>
<p>Tu código de verificación es:</p>
<h2 style="letter-spacing:4px">{{.Code}}</h2>
<p>El código expira en 15 minutos. Si no solicitaste este código, ignora este correo.</p>
`))

// SMTPSender delivers mail through an SMTP relay via gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender constructs an SMTPSender.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// SendVerificationCode emails a verification code. The send is bounded by
// sendTimeout; a slow provider surfaces as a delivery error rather than
// holding the request open.
func (s *SMTPSender) SendVerificationCode(to, name, code string) error {
	var body bytes.Buffer
	if errRender := verificationTemplate.Execute(&body, map[string]string{
		"Name": name,
		"Code": code,
	}); errRender != nil {
		return fmt.Errorf("mail: render verification template: %w", errRender)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Verifica tu cuenta")
	m.SetBody("text/html", body.String())

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case errSend := <-done:
		if errSend != nil {
			return fmt.Errorf("mail: send verification code: %w", errSend)
		}
		return nil
	case <-time.After(sendTimeout):
		return fmt.Errorf("mail: send verification code: timeout after %s", sendTimeout)
	}
}

// LogSender writes codes to the application log instead of sending mail.
// Used when SMTP is not configured, which only makes sense in development.
type LogSender struct{}

// NewLogSender constructs a LogSender.
func NewLogSender() *LogSender { return &LogSender{} }

// SendVerificationCode logs the code instead of delivering it.
func (s *LogSender) SendVerificationCode(to, name, code string) error {
	log.WithFields(log.Fields{"to": to, "code": code}).Info("verification code (smtp disabled)")
	return nil
}
