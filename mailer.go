package auth

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"net/url"
	"strings"
	"time"
)

// VerificationURL builds the link embedded in the verification email.
func VerificationURL(baseURL, token string) string {
	return fmt.Sprintf("%s/verify-email?token=%s",
		strings.TrimRight(baseURL, "/"),
		url.QueryEscape(token),
	)
}

// LogMailer writes the verification link to the log instead of sending
// mail. It is the default sink for development and tests.
type LogMailer struct {
	BaseURL string
	Logger  Logger
}

var _ Mailer = (*LogMailer)(nil)

func NewLogMailer(baseURL string, logger Logger) *LogMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogMailer{BaseURL: baseURL, Logger: logger}
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	m.Logger.Info("verification email",
		"to", email,
		"link", VerificationURL(m.BaseURL, token),
	)
	return nil
}

// SMTPMailer delivers verification email over SMTP with STARTTLS.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Subject  string
	BaseURL  string

	DialTimeout time.Duration
	SendTimeout time.Duration

	logger Logger
}

var _ Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(host string, port int, username, password, from, baseURL string) *SMTPMailer {
	return &SMTPMailer{
		Host:        host,
		Port:        port,
		Username:    username,
		Password:    password,
		From:        from,
		Subject:     "Verify your email address",
		BaseURL:     baseURL,
		DialTimeout: 8 * time.Second,
		SendTimeout: 15 * time.Second,
		logger:      defLogger{},
	}
}

func (m *SMTPMailer) WithLogger(l Logger) *SMTPMailer {
	if l != nil {
		m.logger = l
	}
	return m
}

func (m *SMTPMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	link := VerificationURL(m.BaseURL, token)

	from := m.From
	if m.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.FromName, m.From)
	}

	msg := strings.Join([]string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", email),
		fmt.Sprintf("Subject: %s", m.Subject),
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		"Confirm your email address by opening the link below.",
		"",
		link,
		"",
		"The link expires in one hour. If you did not create an account you can ignore this message.",
	}, "\r\n")

	m.logger.Debug("sending verification email", "to", email, "host", m.Host)

	if err := m.send(email, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (m *SMTPMailer) send(to string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)

	conn, err := net.DialTimeout("tcp", addr, m.DialTimeout)
	if err != nil {
		return err
	}
	// deadline covers the whole exchange so a stalled server cannot hang us
	_ = conn.SetDeadline(time.Now().Add(m.SendTimeout))

	c, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		return err
	}
	defer func() { _ = c.Quit() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.Host}); err != nil {
			return err
		}
	}

	if m.Username != "" {
		auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}

	if err := c.Mail(m.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
