package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"communication-service/internal/database"
	"communication-service/internal/services"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

func newOpsServer() *echo.Echo {
	e := echo.New()
	e.POST("/ops/v1/notifications/:type", notificationsHandler(services.QueueService{}))
	return e
}

func TestNotificationsEndpointAcceptsEmailType(t *testing.T) {
	writeAlertTemplates(t)
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "tasks"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	body := `{
		"template": "alert",
		"emails": ["ops@example.com"],
		"from_address": "noreply@example.com",
		"context": {"ops@example.com": {"name": "Ops"}}
	}`
	req := httptest.NewRequest(http.MethodPost, "/ops/v1/notifications/email", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	newOpsServer().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "being processed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationsEndpointRejectsOtherTypes(t *testing.T) {
	// The type segment is matched verbatim; only lowercase "email" exists
	for _, kind := range []string{"sms", "push", "EMAIL"} {
		t.Run(kind, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/ops/v1/notifications/"+kind, strings.NewReader(`{}`))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()

			newOpsServer().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "Invalid notifications request")
		})
	}
}

func TestNotificationsEndpointRequiresValidRecipients(t *testing.T) {
	writeAlertTemplates(t)

	body := `{"template": "alert", "emails": ["not-an-email"]}`
	req := httptest.NewRequest(http.MethodPost, "/ops/v1/notifications/email", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	newOpsServer().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No valid recipients")
}
