package smtp

import (
	"fmt"
	"net"
	"net/smtp"
	"sync"

	"github.com/notify-gateway/internal/config"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(to, subject, body string) error
	Verify() error
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string

	// Configuration is verified lazily on first use and the result memoized,
	// so a gateway restart does not hammer the relay with probe connections.
	verifyOnce sync.Once
	verifyErr  error
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
	}
}

// Verify dials the relay once to confirm the configuration is usable.
func (m *mailer) Verify() error {
	m.verifyOnce.Do(func() {
		if m.host == "" || m.from == "" {
			m.verifyErr = fmt.Errorf("smtp host and from address required")
			return
		}
		conn, err := net.Dial("tcp", net.JoinHostPort(m.host, m.port))
		if err != nil {
			m.verifyErr = fmt.Errorf("dial smtp relay: %w", err)
			return
		}
		c, err := smtp.NewClient(conn, m.host)
		if err != nil {
			conn.Close()
			m.verifyErr = fmt.Errorf("smtp handshake: %w", err)
			return
		}
		m.verifyErr = c.Quit()
	})
	return m.verifyErr
}

func (m *mailer) SendEmail(to, subject, body string) error {
	if err := m.Verify(); err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		m.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg))
}
