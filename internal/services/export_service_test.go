package services

import (
	"compress/gzip"
	"fmt"
	"io"
	"testing"

	"communication-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubExporter struct {
	name      string
	pks       []string
	sendEmail bool
	probeErr  error
}

func (e *stubExporter) Name() string     { return e.name }
func (e *stubExporter) FileName() string { return e.name }
func (e *stubExporter) Columns() []string {
	return []string{"id", "value"}
}
func (e *stubExporter) SendEmail() bool       { return e.sendEmail }
func (e *stubExporter) TemplatesPath() string { return "emails/alert" }

func (e *stubExporter) ProbePKs(db *gorm.DB, filters map[string]interface{}, limit int) ([]string, error) {
	if e.probeErr != nil {
		return nil, e.probeErr
	}
	if limit > 0 && len(e.pks) > limit {
		return e.pks[:limit], nil
	}
	return e.pks, nil
}

func (e *stubExporter) Rows(db *gorm.DB, pks []string, columns []string) ([][]string, error) {
	rows := make([][]string, 0, len(pks))
	for _, pk := range pks {
		rows = append(rows, []string{pk, "value-" + pk})
	}
	return rows, nil
}

func makePKs(n int) []string {
	pks := make([]string, n)
	for i := range pks {
		pks[i] = fmt.Sprintf("pk-%d", i)
	}
	return pks
}

func TestGenerateCSVInline(t *testing.T) {
	newMockDB(t)
	t.Setenv("ENFORCE_COMPRESSION_FILE_SIZE", "")

	service := ExportService{}
	exporter := &stubExporter{name: "inline_report", pks: makePKs(3), sendEmail: true}

	result, err := service.GenerateCSV(exporter, nil, nil, false)
	require.NoError(t, err)

	assert.Equal(t, "inline_report.csv", result.FileName)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.False(t, result.Compressed)
	assert.Equal(t, "id,value\npk-0,value-pk-0\npk-1,value-pk-1\npk-2,value-pk-2\n", result.Buffer.String())
}

func TestGenerateCSVInlineAtLimit(t *testing.T) {
	newMockDB(t)
	t.Setenv("ENFORCE_COMPRESSION_FILE_SIZE", "")

	service := ExportService{}
	exporter := &stubExporter{name: "limit_report", pks: makePKs(MaxInlineLimit), sendEmail: true}

	result, err := service.GenerateCSV(exporter, nil, nil, false)
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestGenerateCSVDefersWhenOverLimit(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "tasks"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	service := ExportService{}
	exporter := &stubExporter{name: "big_report", pks: makePKs(MaxInlineLimit + 1), sendEmail: true}
	user := &models.User{Base: models.Base{ID: uuid.New()}}

	result, err := service.GenerateCSV(exporter, nil, user, false)
	assert.Nil(t, result)

	var tooLarge *CSVTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, LargeCSVMsg+" "+EmailCSVMsg, tooLarge.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateCSVDeferredWithoutEmailOmitsFollowUp(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "tasks"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	service := ExportService{}
	exporter := &stubExporter{name: "archive_report", pks: makePKs(MaxInlineLimit + 1), sendEmail: false}

	_, err := service.GenerateCSV(exporter, nil, nil, false)

	var tooLarge *CSVTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, LargeCSVMsg, tooLarge.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateCSVForceCompress(t *testing.T) {
	newMockDB(t)
	t.Setenv("ENFORCE_COMPRESSION_FILE_SIZE", "")

	service := ExportService{}
	exporter := &stubExporter{name: "zipped_report", pks: makePKs(2), sendEmail: true}

	result, err := service.GenerateCSV(exporter, nil, nil, true)
	require.NoError(t, err)

	assert.Equal(t, "zipped_report.csv.gz", result.FileName)
	assert.Equal(t, "application/gzip", result.ContentType)
	assert.True(t, result.Compressed)

	zr, err := gzip.NewReader(result.Buffer)
	require.NoError(t, err)
	decoded, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "pk-0,value-pk-0")
}

func TestSendCSVEmail(t *testing.T) {
	writeAlertTemplates(t)
	mock := newMockDB(t)
	sender := &recordingSender{}
	swapMailSender(t, sender)

	exporter := &stubExporter{name: "deferred_report", pks: makePKs(2), sendEmail: true}
	RegisterExporter(exporter)

	userID := uuid.New()
	mock.ExpectQuery(`SELECT .* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
			AddRow(userID.String(), "requester@example.com"))

	service := ExportService{}
	err := service.SendCSVEmail("deferred_report", makePKs(2), exporter.Columns(), userID.String(), true)
	require.NoError(t, err)

	require.Len(t, sender.messages, 1)
	message := sender.messages[0]
	assert.Equal(t, []string{"requester@example.com"}, message.To)
	require.Len(t, message.Attachments, 1)
	assert.Equal(t, "deferred_report.csv", message.Attachments[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendCSVEmailMissingUserSilenced(t *testing.T) {
	writeAlertTemplates(t)
	mock := newMockDB(t)
	sender := &recordingSender{}
	swapMailSender(t, sender)

	exporter := &stubExporter{name: "orphan_report", pks: makePKs(1), sendEmail: true}
	RegisterExporter(exporter)

	mock.ExpectQuery(`SELECT .* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))

	service := ExportService{}
	err := service.SendCSVEmail("orphan_report", makePKs(1), exporter.Columns(), uuid.NewString(), true)
	assert.NoError(t, err)
	assert.Empty(t, sender.messages)

	// Without the silence flag the missing user is an error
	mock.ExpectQuery(`SELECT .* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))
	err = service.SendCSVEmail("orphan_report", makePKs(1), exporter.Columns(), uuid.NewString(), false)
	assert.Error(t, err)
}

type recordingUploader struct {
	calls      int
	storage    models.StorageConfig
	remoteName string
	size       int64
	payload    []byte
}

func (u *recordingUploader) Upload(storage models.StorageConfig, r io.Reader, size int64, remoteName string) error {
	u.calls++
	u.storage = storage
	u.remoteName = remoteName
	u.size = size
	u.payload, _ = io.ReadAll(r)
	return nil
}

func TestSendCSVEmailDeliversToStorage(t *testing.T) {
	mock := newMockDB(t)
	t.Setenv("ENFORCE_COMPRESSION_FILE_SIZE", "")
	sender := &recordingSender{}
	swapMailSender(t, sender)

	exporter := &stubExporter{name: "stored_report", pks: makePKs(2), sendEmail: false}
	RegisterExporter(exporter)

	mock.ExpectQuery(`SELECT .* FROM "storage_configs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "config"}).
			AddRow(uuid.NewString(), "reports-bucket", models.StorageTypeS3, []byte(`{"bucket":"reports"}`)))

	uploader := &recordingUploader{}
	service := ExportService{Uploader: uploader}
	err := service.SendCSVEmail("stored_report", makePKs(2), exporter.Columns(), "", true)
	require.NoError(t, err)

	require.Equal(t, 1, uploader.calls)
	assert.Equal(t, "stored_report.csv", uploader.remoteName)
	assert.Equal(t, models.StorageTypeS3, uploader.storage.Type)
	assert.Equal(t, int64(len(uploader.payload)), uploader.size)
	assert.Contains(t, string(uploader.payload), "pk-0,value-pk-0")

	// Storage delivery never goes through the mail sender
	assert.Empty(t, sender.messages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendCSVEmailWithoutStorageTargetDiscards(t *testing.T) {
	mock := newMockDB(t)
	t.Setenv("ENFORCE_COMPRESSION_FILE_SIZE", "")

	exporter := &stubExporter{name: "discarded_report", pks: makePKs(1), sendEmail: false}
	RegisterExporter(exporter)

	mock.ExpectQuery(`SELECT .* FROM "storage_configs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "config"}))

	uploader := &recordingUploader{}
	service := ExportService{Uploader: uploader}
	err := service.SendCSVEmail("discarded_report", makePKs(1), exporter.Columns(), "", true)

	assert.NoError(t, err)
	assert.Zero(t, uploader.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendCSVEmailUnknownExporter(t *testing.T) {
	service := ExportService{}
	err := service.SendCSVEmail("never_registered", nil, nil, uuid.NewString(), true)
	assert.Error(t, err)
}
