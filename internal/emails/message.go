package emails

import (
	"bytes"
	htmltemplate "html/template"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"

	"communication-service/internal/models"
	"communication-service/internal/utils"
)

// Attachment media types and conventional extensions
const (
	CSVContentType  = "text/csv"
	GzipContentType = "application/gzip"
	CSVExt          = ".csv"
	GzipExt         = ".gz"
)

// AppendExt appends ext at the end of name if it isn't there already.
func AppendExt(name, ext string) string {
	if strings.HasSuffix(name, ext) {
		return name
	}
	return name + ext
}

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is an independent, renderable email: subject, plain-text body,
// HTML alternative, recipients and attachments. Recipient setters validate
// addresses; cloning produces a copy with empty recipient lists so bulk
// sends never share state between per-recipient duplicates.
type Message struct {
	Subject  string
	Body     string
	HTMLBody string
	From     string
	To       []string
	CC       []string
	BCC      []string
	ReplyTo  string
	Headers  map[string]string

	Attachments []Attachment

	// Users whose email attribute was missing or invalid. Exposed so a
	// caller can report "N invitees had no usable email" without failing
	// the whole send.
	InvalidUsers []models.User
}

// DefaultFromAddress is the sender used when none is given.
func DefaultFromAddress() string {
	if from := os.Getenv("EMAIL_FROM"); from != "" {
		return from
	}
	return "no-reply@example.com"
}

func NewMessage(subject, body, htmlBody, from string) *Message {
	if from == "" {
		from = DefaultFromAddress()
	}
	return &Message{
		Subject:  subject,
		Body:     body,
		HTMLBody: htmlBody,
		From:     from,
		Headers:  map[string]string{},
	}
}

// FromTemplates creates a Message from the sibling subject.txt, body.txt
// and body.html files under templatesDir/path, all rendered with the same
// context.
func FromTemplates(templatesDir, path string, context map[string]interface{}, from string) (*Message, error) {
	base := filepath.Join(templatesDir, path)

	subject, err := renderTextTemplate(filepath.Join(base, "subject.txt"), context)
	if err != nil {
		return nil, err
	}
	body, err := renderTextTemplate(filepath.Join(base, "body.txt"), context)
	if err != nil {
		return nil, err
	}
	htmlBody, err := renderHTMLTemplate(filepath.Join(base, "body.html"), context)
	if err != nil {
		return nil, err
	}

	// Subject must be a single header line
	subject = strings.TrimSpace(subject)

	return NewMessage(subject, body, htmlBody, from), nil
}

func renderTextTemplate(path string, context map[string]interface{}) (string, error) {
	tmpl, err := texttemplate.ParseFiles(path)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, context); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderHTMLTemplate(path string, context map[string]interface{}) (string, error) {
	tmpl, err := htmltemplate.ParseFiles(path)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, context); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SetRecipients sets raw address recipients. Invalid addresses are
// silently dropped.
func (m *Message) SetRecipients(to, cc, bcc []string) *Message {
	m.To = utils.ExtractValidEmails(to)
	m.CC = utils.ExtractValidEmails(cc)
	m.BCC = utils.ExtractValidEmails(bcc)
	return m
}

// SetUserRecipients resolves user records to their email attribute.
// Users without a usable email end up in InvalidUsers instead of
// aborting the send.
func (m *Message) SetUserRecipients(to, cc, bcc []models.User) *Message {
	m.To = m.resolveUsers(to)
	m.CC = m.resolveUsers(cc)
	m.BCC = m.resolveUsers(bcc)
	return m
}

func (m *Message) resolveUsers(users []models.User) []string {
	valid := make([]string, 0, len(users))
	for _, user := range users {
		if utils.ValidEmail(user.Email) {
			valid = append(valid, user.Email)
		} else {
			m.InvalidUsers = append(m.InvalidUsers, user)
		}
	}
	return valid
}

// Recipients returns all resolved recipient addresses.
func (m *Message) Recipients() []string {
	recipients := make([]string, 0, len(m.To)+len(m.CC)+len(m.BCC))
	recipients = append(recipients, m.To...)
	recipients = append(recipients, m.CC...)
	recipients = append(recipients, m.BCC...)
	return recipients
}

// WithFile attaches an in-memory file.
func (m *Message) WithFile(name string, data []byte, contentType string) *Message {
	m.Attachments = append(m.Attachments, Attachment{
		Name:        name,
		ContentType: contentType,
		Data:        data,
	})
	return m
}

// WithCSVFile attaches a CSV buffer, appending .csv when missing.
func (m *Message) WithCSVFile(name string, buf *bytes.Buffer) *Message {
	return m.WithFile(AppendExt(name, CSVExt), buf.Bytes(), CSVContentType)
}

// WithGzipFile attaches a gzip buffer, appending .gz when missing.
func (m *Message) WithGzipFile(name string, buf *bytes.Buffer) *Message {
	return m.WithFile(AppendExt(name, GzipExt), buf.Bytes(), GzipContentType)
}

// Clone returns an independent copy of the message with empty recipient
// lists. Used to build the per-recipient duplicates for bulk sends.
func (m *Message) Clone() *Message {
	clone := &Message{
		Subject:  m.Subject,
		Body:     m.Body,
		HTMLBody: m.HTMLBody,
		From:     m.From,
		ReplyTo:  m.ReplyTo,
		Headers:  make(map[string]string, len(m.Headers)),
	}
	for k, v := range m.Headers {
		clone.Headers[k] = v
	}
	clone.Attachments = append([]Attachment(nil), m.Attachments...)
	return clone
}

// Send dispatches the message and returns the number of messages sent.
//   - bulk with more than one recipient: each recipient receives an
//     individually addressed duplicate; recipients do not see each other.
//     All duplicates go through a single connection.
//   - otherwise: one message addressed to all recipients together.
//
// Provider-level refusals of some recipients are captured by the sender
// and do not abort sibling sends. With failSilently the error is logged
// and swallowed.
func (m *Message) Send(sender Sender, failSilently, bulk bool) (int, error) {
	var messages []*Message
	if bulk && len(m.Recipients()) > 1 {
		for _, recipient := range m.Recipients() {
			clone := m.Clone()
			clone.To = []string{recipient}
			messages = append(messages, clone)
		}
	} else {
		messages = []*Message{m}
	}

	sent, err := sender.Send(messages...)
	if err != nil && failSilently {
		logSendFailure(err)
		return sent, nil
	}
	return sent, err
}
