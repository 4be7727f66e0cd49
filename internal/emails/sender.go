package emails

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/gomail.v2"
)

// Sender delivers a batch of messages. Implementations must attempt every
// message in the batch: a refused recipient is captured and reported in
// the returned error, not allowed to abort the siblings.
type Sender interface {
	Send(messages ...*Message) (int, error)
}

func logSendFailure(err error) {
	log.Printf("[mail] send failed (silenced): %v", err)
}

// --- SMTP sender (gomail) ---

type SMTPSender struct {
	dialer *gomail.Dialer
}

func NewSMTPSender(host string, port int, username, password string) *SMTPSender {
	return &SMTPSender{dialer: gomail.NewDialer(host, port, username, password)}
}

func NewSMTPSenderFromEnv() *SMTPSender {
	port := 587
	if raw := os.Getenv("SMTP_PORT"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil {
			port = p
		}
	}
	return NewSMTPSender(
		os.Getenv("SMTP_HOST"),
		port,
		os.Getenv("SMTP_USER"),
		os.Getenv("SMTP_PASSWORD"),
	)
}

// Send opens one SMTP connection for the whole batch and closes it after,
// even on partial failure. Per-message errors are collected, remaining
// messages are still attempted.
func (s *SMTPSender) Send(messages ...*Message) (int, error) {
	conn, err := s.dialer.Dial()
	if err != nil {
		return 0, fmt.Errorf("dial smtp: %w", err)
	}
	defer conn.Close()

	sent := 0
	var errs []error
	for _, message := range messages {
		if err := gomail.Send(conn, toGomail(message)); err != nil {
			log.Printf("[mail] delivery to %v refused: %v", message.To, err)
			errs = append(errs, err)
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

func toGomail(m *Message) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.From)
	if len(m.To) > 0 {
		gm.SetHeader("To", m.To...)
	}
	if len(m.CC) > 0 {
		gm.SetHeader("Cc", m.CC...)
	}
	if len(m.BCC) > 0 {
		gm.SetHeader("Bcc", m.BCC...)
	}
	if m.ReplyTo != "" {
		gm.SetHeader("Reply-To", m.ReplyTo)
	}
	for key, value := range m.Headers {
		gm.SetHeader(key, value)
	}
	gm.SetHeader("Subject", m.Subject)
	gm.SetBody("text/plain", m.Body)
	if m.HTMLBody != "" {
		gm.AddAlternative("text/html", m.HTMLBody)
	}
	for _, attachment := range m.Attachments {
		data := attachment.Data
		gm.Attach(attachment.Name,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
			gomail.SetHeader(map[string][]string{
				"Content-Type": {attachment.ContentType},
			}),
		)
	}
	return gm
}

// --- Console sender ---

// ConsoleSender writes messages to the log instead of transmitting them.
// Used in development and as the blocked-recipient backend of
// FilteringSender.
type ConsoleSender struct{}

func NewConsoleSender() *ConsoleSender {
	return &ConsoleSender{}
}

func (s *ConsoleSender) Send(messages ...*Message) (int, error) {
	for _, message := range messages {
		log.Printf("[mail:console] To: %v | Subject: %s\n%s", message.To, message.Subject, message.Body)
	}
	return len(messages), nil
}

// --- Filtering sender ---

// FilteringSender routes each message to the real sender only when every
// recipient matches one of the allow patterns; everything else goes to the
// console sender. Keeps non-production environments from mailing real
// addresses.
type FilteringSender struct {
	Real          Sender
	Console       Sender
	AllowPatterns []string
}

func NewFilteringSender(real Sender, patterns []string) *FilteringSender {
	if len(patterns) == 0 {
		patterns = []string{"test", "example.com"}
	}
	return &FilteringSender{
		Real:          real,
		Console:       NewConsoleSender(),
		AllowPatterns: patterns,
	}
}

func (s *FilteringSender) allowed(m *Message) bool {
	recipients := m.Recipients()
	if len(recipients) == 0 {
		return false
	}
	for _, pattern := range s.AllowPatterns {
		all := true
		for _, recipient := range recipients {
			if !strings.Contains(recipient, pattern) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (s *FilteringSender) Send(messages ...*Message) (int, error) {
	var real, console []*Message
	for _, message := range messages {
		if s.allowed(message) {
			real = append(real, message)
		} else {
			console = append(console, message)
		}
	}

	sent := 0
	var errs []error
	if len(console) > 0 {
		n, err := s.Console.Send(console...)
		sent += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(real) > 0 {
		n, err := s.Real.Send(real...)
		sent += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return sent, errors.Join(errs...)
}
