package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	mail "gopkg.in/mail.v2"
)

// Email delivers alerts over SMTP.
type Email struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	On       bool
	Timeout  time.Duration
}

func NewEmail(enabled bool, host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		To:       to,
		On:       enabled,
		Timeout:  10 * time.Second,
	}
}

func (e *Email) Enabled() bool {
	return e != nil && e.On && e.Host != "" && e.From != "" && len(e.To) > 0
}

func (e *Email) Send(ctx context.Context, title, text string) error {
	if !e.Enabled() {
		return ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d := mail.NewDialer(e.Host, e.Port, e.Username, e.Password)
	d.Timeout = e.Timeout
	if err := d.DialAndSend(e.message(title, text)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (e *Email) message(title, text string) *mail.Message {
	subject := plain(title)
	if subject == "" {
		subject = "healthbatch notification"
	}
	m := mail.NewMessage()
	m.SetHeader("From", e.From)
	m.SetHeader("To", e.To...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plain(text))
	return m
}

func (e *Email) Status() ChannelStatus {
	st := ChannelStatus{Channel: "email", Enabled: e != nil && e.On, Configured: e.Enabled()}
	if e != nil && e.Host != "" {
		st.Masked = map[string]string{"host": e.Host, "to": strings.Join(e.To, ",")}
	}
	return st
}

// plain drops the Markdown emphasis used by chat channels.
func plain(s string) string {
	return strings.ReplaceAll(s, "*", "")
}
