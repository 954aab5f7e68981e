package mailer

import (
	"bytes"
	"net/http"
	"text/template"
	"time"

	mail "gopkg.in/mail.v2"
)

type SMTPMailer struct {
	dialer    *mail.Dialer
	fromEmail string
}

func NewSMTP(host string, port int, username, password, fromEmail string) *SMTPMailer {
	return &SMTPMailer{
		dialer:    mail.NewDialer(host, port, username, password),
		fromEmail: fromEmail,
	}
}

// Send renders the named template's subject and body blocks and delivers the
// message, retrying on transient SMTP failures.
func (m *SMTPMailer) Send(templateFile, username, email string, data any) (int, error) {
	tmpl, err := template.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return -1, err
	}

	subject := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(subject, "subject", data); err != nil {
		return -1, err
	}
	body := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(body, "body", data); err != nil {
		return -1, err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.fromEmail)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", subject.String())
	msg.SetBody("text/html", body.String())

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if lastErr = m.dialer.DialAndSend(msg); lastErr == nil {
			return http.StatusOK, nil
		}
		time.Sleep(time.Second * time.Duration(i+1))
	}
	return -1, lastErr
}
