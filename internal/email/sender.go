package email

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
)

type Sender interface {
	Send(to, subject, htmlBody string) error
}

type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
}

type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth // nil for local dev (MailHog)
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	s := &SMTPSender{
		addr: fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		from: cfg.From,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s
}

func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	msg := buildRFC822(s.from, to, subject, htmlBody)
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func buildRFC822(from, to, subject, html string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&buf, "\r\n%s\r\n", html)
	return buf.Bytes()
}

// Fallback logger sender (useful for dev without SMTP)
type LogSender struct{}

func (LogSender) Send(to, subject, htmlBody string) error {
	log.Printf("[Email] to=%s subject=%q body=%q", to, subject, htmlBody)
	return nil
}

var reservationConfirmedTpl = template.Must(template.New("reservationConfirmed").Parse(`
<h2>Your reservation is confirmed</h2>
<p>Hi {{.FullName}},</p>
<p>Item <b>{{.ItemID}}</b> is reserved for you.</p>
<p>Pickup: {{.Method}}{{if .Day}}, {{.Day}}{{end}}{{if .TimeWindow}} ({{.TimeWindow}}){{end}}</p>
<p>Reference: <code>{{.SessionReference}}</code></p>
`))

type ReservationConfirmed struct {
	SessionReference string
	ItemID           string
	FullName         string
	Method           string
	Day              string
	TimeWindow       string
}

func RenderReservationConfirmedEmail(data ReservationConfirmed) (string, error) {
	var buf bytes.Buffer
	if err := reservationConfirmedTpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render reservation confirmation: %w", err)
	}
	return buf.String(), nil
}

var supportRequestTpl = template.Must(template.New("supportRequest").Parse(`
<h2>Reservation support request</h2>
{{if .SessionReference}}<p>Reference: <code>{{.SessionReference}}</code></p>{{end}}
{{if .ReplyTo}}<p>Reply to: <a href="mailto:{{.ReplyTo}}">{{.ReplyTo}}</a></p>{{end}}
<pre>{{.Body}}</pre>
`))

type SupportRequest struct {
	SessionReference string
	ReplyTo          string
	Body             string
}

func RenderSupportRequestEmail(data SupportRequest) (string, error) {
	var buf bytes.Buffer
	if err := supportRequestTpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render support request: %w", err)
	}
	return buf.String(), nil
}
