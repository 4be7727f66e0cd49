package services

import (
	"fmt"
	"log"

	"communication-service/internal/database"
	"communication-service/internal/emails"
	"communication-service/internal/models"
	"communication-service/internal/utils"
)

// MailSender is the transport used by every email-sending service. main()
// wires the real SMTP sender; tests swap in fakes. The console default
// keeps dev environments from needing an SMTP server.
var MailSender emails.Sender = emails.NewConsoleSender()

// EmailService orchestrates sending one logical notification to many
// recipients and implicitly takes care of creating outbound communication
// logs when messages are sent out.
type EmailService struct {
	TemplatesPath string
	To            []string
	ToUsers       []models.User
	FromAddress   string
	Context       map[string]interface{}
	User          *models.User

	email *emails.Message
}

// Compile renders the message from the template directory and the context
// and resolves recipients.
func (s *EmailService) Compile() error {
	message, err := emails.FromTemplates(utils.TemplatesDir(), s.TemplatesPath, s.Context, s.FromAddress)
	if err != nil {
		return fmt.Errorf("compile email %s: %w", s.TemplatesPath, err)
	}

	if len(s.ToUsers) > 0 {
		message.SetUserRecipients(s.ToUsers, nil, nil)
	} else {
		message.SetRecipients(s.To, nil, nil)
	}

	s.email = message
	return nil
}

// Send compiles and sends immediately. With raiseErr false the failure is
// logged and swallowed.
func (s *EmailService) Send(raiseErr bool) error {
	if err := s.Compile(); err != nil {
		if raiseErr {
			return err
		}
		log.Printf("[email] %v (silenced)", err)
		return nil
	}
	_, err := s.email.Send(MailSender, !raiseErr, true)
	return err
}

// LogOnly compiles the email and records it without transmitting.
func (s *EmailService) LogOnly() (*models.CommunicationLog, error) {
	if err := s.Compile(); err != nil {
		return nil, err
	}

	entry := s.newLogEntry()
	entry.IsLogOnly = true
	if err := database.DB.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// SendAndLog compiles, attempts the send, and unconditionally persists one
// communication log row. On failure the row's error field carries the
// failure text; the error is re-raised only when raiseErr is set. Every
// send attempt leaves an audit record, whatever the outcome.
func (s *EmailService) SendAndLog(raiseErr bool) (*models.CommunicationLog, error) {
	if err := s.Compile(); err != nil {
		return nil, err
	}

	entry := s.newLogEntry()

	_, sendErr := s.email.Send(MailSender, false, true)
	if sendErr != nil {
		entry.ErrorResponse = sendErr.Error()
	}

	if err := database.DB.Create(entry).Error; err != nil {
		return nil, err
	}

	if sendErr != nil {
		if raiseErr {
			return entry, sendErr
		}
		log.Printf("[email] send to %v failed (silenced): %v", s.To, sendErr)
	}
	return entry, nil
}

// SendWithBulkContextAndLog fans out one independent SendAndLog per
// recipient that has an entry in the per-recipient context map; recipients
// without one are silently skipped. The returned logs preserve recipient
// order. One recipient's failure never blocks another's: with raiseErr the
// collected errors are reported after the whole fan-out.
func (s *EmailService) SendWithBulkContextAndLog(raiseErr bool) ([]models.CommunicationLog, error) {
	var entries []models.CommunicationLog
	var firstErr error

	for _, address := range s.To {
		raw, ok := s.Context[address]
		if !ok || raw == nil {
			continue
		}
		context, _ := raw.(map[string]interface{})

		recipient := &EmailService{
			TemplatesPath: s.TemplatesPath,
			To:            []string{address},
			FromAddress:   s.FromAddress,
			Context:       context,
			User:          s.User,
		}
		entry, err := recipient.SendAndLog(raiseErr)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}

	if raiseErr {
		return entries, firstErr
	}
	return entries, nil
}

func (s *EmailService) newLogEntry() *models.CommunicationLog {
	entry := &models.CommunicationLog{
		TemplateName:      s.TemplatesPath,
		Content:           fmt.Sprintf("%s\n\n%s", s.email.Subject, s.email.Body),
		SenderAddress:     s.email.From,
		RecipientAddress:  models.StringArray(s.email.To),
		CommunicationType: models.CommunicationTypeEmail,
	}
	if s.User != nil {
		userID := s.User.ID
		entry.UserID = &userID
	}
	return entry
}
