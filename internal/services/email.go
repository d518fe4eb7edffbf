package services

import (
	"bytes"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/Byak-ko/Qualification-work-sub001/internal/config"
)

//go:embed templates/emails/*.html
var emailFS embed.FS

var emailTemplates = template.Must(template.ParseFS(emailFS, "templates/emails/*.html"))

// EmailSender delivers one HTML message.
type EmailSender interface {
	SendEmail(to, subject, htmlBody string) error
}

type EmailService struct {
	smtpHost     string
	smtpPort     string
	smtpUsername string
	smtpPassword string
	fromEmail    string
	fromName     string
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{
		smtpHost:     cfg.SMTPHost,
		smtpPort:     cfg.SMTPPort,
		smtpUsername: cfg.SMTPUsername,
		smtpPassword: cfg.SMTPPassword,
		fromEmail:    cfg.SMTPFromEmail,
		fromName:     cfg.SMTPFromName,
	}
}

// IsConfigured returns true if an SMTP host and sender are set.
func (s *EmailService) IsConfigured() bool {
	return s.smtpHost != "" && s.smtpPort != "" && s.fromEmail != ""
}

// SendEmail sends an HTML email over SMTP. Without credentials it talks plain
// SMTP (local relays, mailpit); otherwise STARTTLS with PLAIN auth.
func (s *EmailService) SendEmail(to, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	msg := s.buildMessage(to, subject, htmlBody)
	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)

	if s.smtpUsername == "" && s.smtpPassword == "" {
		return s.sendUnauthenticated(addr, to, msg)
	}

	auth := smtp.PlainAuth("", s.smtpUsername, s.smtpPassword, s.smtpHost)
	if err := smtp.SendMail(addr, auth, s.fromEmail, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// headerValue keeps a value on a single header line.
func headerValue(v string) string {
	return headerBreaks.Replace(v)
}

func (s *EmailService) buildMessage(to, subject, htmlBody string) []byte {
	from := s.fromEmail
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", headerValue(to))
	fmt.Fprintf(&msg, "Subject: %s\r\n", headerValue(subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	return msg.Bytes()
}

func (s *EmailService) sendUnauthenticated(addr, to string, msg []byte) error {
	conn, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	if ok, _ := conn.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: s.smtpHost}
		if s.smtpHost == "localhost" || s.smtpHost == "127.0.0.1" {
			tlsConfig.InsecureSkipVerify = true
		}
		if err := conn.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if err := conn.Mail(s.fromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := conn.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := conn.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return conn.Quit()
}

// EmailData is the view model shared by all notification templates.
type EmailData struct {
	AppName        string
	RecipientName  string
	RatingTitle    string
	RatingURL      string
	RespondentName string
	ReviewerName   string
	ReviewLevel    string
}

// renderEmail executes one of the embedded templates by file name.
func renderEmail(name string, data EmailData) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
