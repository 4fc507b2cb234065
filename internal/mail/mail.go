// Package mail delivers reports over SMTP as multipart messages with a
// plain-text fallback and an HTML body, plus optional attachments.
package mail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/epheterson/energy-dashboard/internal/config"
)

// Attachment is a file to carry along with the report.
type Attachment struct {
	Filename string
	Content  []byte
}

// Message is one outbound report email.
type Message struct {
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Sender delivers messages through one SMTP account.
type Sender struct {
	cfg  config.EmailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New builds a Sender from the email config.
func New(cfg config.EmailConfig) *Sender {
	return &Sender{cfg: cfg, send: smtp.SendMail}
}

// Configured reports whether the sender has a host and recipients.
func (s *Sender) Configured() bool {
	return s.cfg.SMTPHost != "" && len(s.cfg.To) > 0
}

// Send builds the MIME message and hands it to the SMTP server.
func (s *Sender) Send(m Message) error {
	if !s.Configured() {
		return fmt.Errorf("mail: not configured")
	}

	body, err := encode(s.cfg, m)
	if err != nil {
		return err
	}
	if err := s.send(s.cfg.Addr(), s.cfg.Auth(), s.cfg.From, s.cfg.To, body); err != nil {
		return fmt.Errorf("mail: sending to %s: %w", strings.Join(s.cfg.To, ", "), err)
	}
	return nil
}

// encode assembles the RFC 2045 message: multipart/mixed wrapping a
// multipart/alternative (text + HTML) plus base64 attachments.
func encode(cfg config.EmailConfig, m Message) ([]byte, error) {
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(cfg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n", mixed.Boundary())
	fmt.Fprintf(&buf, "\r\n")

	altBuf := &bytes.Buffer{}
	alt := multipart.NewWriter(altBuf)

	textPart, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, fmt.Errorf("mail: building text part: %w", err)
	}
	fmt.Fprint(textPart, m.TextBody)

	if m.HTMLBody != "" {
		htmlPart, err := alt.CreatePart(textproto.MIMEHeader{
			"Content-Type": {"text/html; charset=utf-8"},
		})
		if err != nil {
			return nil, fmt.Errorf("mail: building HTML part: %w", err)
		}
		fmt.Fprint(htmlPart, m.HTMLBody)
	}
	if err := alt.Close(); err != nil {
		return nil, err
	}

	bodyPart, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("multipart/alternative; boundary=%q", alt.Boundary())},
	})
	if err != nil {
		return nil, fmt.Errorf("mail: building body part: %w", err)
	}
	bodyPart.Write(altBuf.Bytes())

	for _, a := range m.Attachments {
		part, err := mixed.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"application/octet-stream"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", a.Filename)},
		})
		if err != nil {
			return nil, fmt.Errorf("mail: building attachment %s: %w", a.Filename, err)
		}
		enc := base64.StdEncoding.EncodeToString(a.Content)
		// 76-char lines per RFC 2045.
		for len(enc) > 76 {
			fmt.Fprintf(part, "%s\r\n", enc[:76])
			enc = enc[76:]
		}
		fmt.Fprintf(part, "%s\r\n", enc)
	}

	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
