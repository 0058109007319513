package notify

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"sisu-notifier/internal/report"
)

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // defaults to Username
	FromName string
	To       []string
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends the report via email using SMTP.
type EmailNotifier struct {
	cfg  EmailConfig
	send sendFunc
	now  func() time.Time
}

// NewEmailNotifier creates a new EmailNotifier.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.FromName == "" {
		cfg.FromName = report.DefaultSenderName
	}
	e := &EmailNotifier{cfg: cfg, now: time.Now}
	e.send = e.deliver
	return e
}

// Name returns the name of the notifier.
func (e *EmailNotifier) Name() string {
	return "email"
}

// IsEnabled reports whether host, user, password and at least one recipient are set.
func (e *EmailNotifier) IsEnabled() bool {
	return e.cfg.Host != "" && e.cfg.Username != "" && e.cfg.Password != "" && len(e.cfg.To) > 0
}

// Send sends one multipart/alternative message to all recipients.
func (e *EmailNotifier) Send(ctx context.Context, r report.Report) error {
	if !e.IsEnabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := e.buildMessage(r)
	if err != nil {
		return fmt.Errorf("building email: %w", err)
	}

	addr := e.cfg.Host + ":" + strconv.Itoa(e.cfg.Port)
	auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	return e.send(addr, auth, e.cfg.From, e.cfg.To, msg)
}

func (e *EmailNotifier) deliver(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	// Use TLS for secure connection
	if e.cfg.Port == 465 {
		return e.sendWithTLS(addr, auth, from, to, msg)
	}

	// STARTTLS is negotiated by net/smtp when the server offers it
	return smtp.SendMail(addr, auth, from, to, msg)
}

// sendWithTLS sends email using implicit TLS (port 465).
func (e *EmailNotifier) sendWithTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	tlsConfig := &tls.Config{
		ServerName: e.cfg.Host,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("TLS dial failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL command failed: %w", err)
	}

	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT command failed for %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command failed: %w", err)
	}

	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}

func (e *EmailNotifier) buildMessage(r report.Report) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	from := (&mail.Address{Name: e.cfg.FromName, Address: e.cfg.From}).String()
	headers := []string{
		"From: " + from,
		"To: " + strings.Join(e.cfg.To, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", r.Subject),
		"Date: " + e.now().Format(time.RFC1123Z),
		"Message-ID: " + messageID(e.cfg.Host),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q", mw.Boundary()),
	}
	head := strings.Join(headers, "\r\n") + "\r\n\r\n"

	if err := writePart(mw, "text/plain; charset=UTF-8", r.Text); err != nil {
		return nil, err
	}
	if err := writePart(mw, "text/html; charset=UTF-8", r.HTML); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return append([]byte(head), buf.Bytes()...), nil
}

func writePart(mw *multipart.Writer, contentType, body string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	pw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	qw := quotedprintable.NewWriter(pw)
	if _, err := qw.Write([]byte(body)); err != nil {
		return err
	}
	return qw.Close()
}

func messageID(host string) string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	if host == "" {
		host = "localhost"
	}
	return "<" + hex.EncodeToString(b) + "@" + host + ">"
}
