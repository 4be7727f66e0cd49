package services

import (
	"os"
	"path/filepath"
	"testing"

	"communication-service/internal/database"
	"communication-service/internal/emails"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newMockDB swaps the global DB for a sqlmock-backed one for the duration
// of the test.
func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	original := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = original
		conn.Close()
	})
	return mock
}

// recordingSender captures outbound messages instead of delivering them.
type recordingSender struct {
	messages []*emails.Message
	err      error
}

func (s *recordingSender) Send(messages ...*emails.Message) (int, error) {
	s.messages = append(s.messages, messages...)
	if s.err != nil {
		return 0, s.err
	}
	return len(messages), nil
}

func swapMailSender(t *testing.T, sender emails.Sender) {
	t.Helper()
	original := MailSender
	MailSender = sender
	t.Cleanup(func() { MailSender = original })
}

// writeAlertTemplates lays an "alert" email template down in a temp
// directory and points TEMPLATES_PATH at it.
func writeAlertTemplates(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	base := filepath.Join(dir, "emails", "alert")
	require.NoError(t, os.MkdirAll(base, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "subject.txt"), []byte("Alert for {{.name}}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "body.txt"), []byte("Hello {{.name}}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "body.html"), []byte("<p>Hello {{.name}}</p>"), 0o644))
	t.Setenv("TEMPLATES_PATH", dir)
}
