package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/facewatch/facewatch/internal/config"
	"github.com/facewatch/facewatch/internal/database"
)

// EmailSender delivers alerts over SMTP with plain auth.
type EmailSender struct {
	cfg     config.SMTPConfig
	timeout time.Duration

	// sendMail is swapped in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailSender(cfg config.SMTPConfig) *EmailSender {
	s := &EmailSender{cfg: cfg, timeout: 30 * time.Second}
	s.sendMail = s.submit
	return s
}

func (s *EmailSender) Channel() database.Channel {
	return database.ChannelEmail
}

func (s *EmailSender) Send(ctx context.Context, rec database.Recipient, alert Alert) error {
	if rec.Email == "" {
		return fmt.Errorf("recipient %d has no email address", rec.ID)
	}

	subject := fmt.Sprintf("Security alert: %s detected", alert.SubjectName)
	msg := buildMessage(s.cfg.From, rec.Email, subject, alert.Message)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := s.sendMail(addr, auth, s.cfg.From, []string{rec.Email}, msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", rec.Email, err)
	}
	return nil
}

// submit runs the SMTP exchange under a single connection deadline.
// net/smtp has no context-aware entry point, so without the deadline a hung
// server would block the call tree indefinitely.
func (s *EmailSender) submit(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := net.DialTimeout("tcp", addr, s.timeout)
	if err != nil {
		return err
	}
	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		conn.Close()
		return err
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return err
		}
	}
	if a != nil {
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
