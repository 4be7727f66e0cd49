package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"

	"communication-service/internal/database"
	"communication-service/internal/emails"
	"communication-service/internal/models"
	"communication-service/internal/utils"

	"gorm.io/gorm"
)

// MaxInlineLimit is the maximum number of rows generated synchronously;
// anything larger is deferred to the background worker.
const MaxInlineLimit = 500

const (
	LargeCSVMsg = "The requested file is too large to download."
	EmailCSVMsg = "You will receive an email with the report once completed."
)

// CSVTooLargeError signals that generation was deferred. It carries the
// user-facing message (with or without the email follow-up, depending on
// the exporter).
type CSVTooLargeError struct {
	Message string
}

func (e *CSVTooLargeError) Error() string {
	return e.Message
}

// Exporter describes one CSV-exportable dataset. The registry replaces
// dotted-path class lookup: the deferred task carries only the exporter
// name, never live objects.
type Exporter interface {
	Name() string
	FileName() string
	Columns() []string
	// ProbePKs returns up to limit primary keys matching the filters;
	// limit <= 0 means no limit.
	ProbePKs(db *gorm.DB, filters map[string]interface{}, limit int) ([]string, error)
	// Rows fetches the records behind the given primary keys and renders
	// one CSV row per record.
	Rows(db *gorm.DB, pks []string, columns []string) ([][]string, error)
	// SendEmail reports whether oversized exports are emailed to the
	// requesting user.
	SendEmail() bool
	TemplatesPath() string
}

var exporters = map[string]Exporter{}

func RegisterExporter(e Exporter) {
	exporters[e.Name()] = e
}

func LookupExporter(name string) (Exporter, bool) {
	e, ok := exporters[name]
	return e, ok
}

// ExportResult is a generated CSV buffer ready to serve or attach.
type ExportResult struct {
	Buffer      *bytes.Buffer
	FileName    string
	ContentType string
	Compressed  bool
}

type ExportService struct {
	QueueService QueueService

	// Uploader delivers oversized exports for exporters with email
	// disabled. Nil means the production UploaderService.
	Uploader Uploader
}

// GenerateCSV either builds the CSV inline or defers it. The row count is
// probed with a bounded query (MaxInlineLimit+1 keys at most, never a full
// scan); at or under the limit the buffer is generated synchronously,
// above it a background task is enqueued carrying only primary keys and
// scalars, and a CSVTooLargeError is returned.
func (s *ExportService) GenerateCSV(exporter Exporter, filters map[string]interface{}, user *models.User, forceCompress bool) (*ExportResult, error) {
	probe, err := exporter.ProbePKs(database.DB, filters, MaxInlineLimit+1)
	if err != nil {
		return nil, err
	}

	columns := exporter.Columns()

	if len(probe) <= MaxInlineLimit {
		rows, err := exporter.Rows(database.DB, probe, columns)
		if err != nil {
			return nil, err
		}
		return buildResult(exporter.FileName(), columns, rows, forceCompress)
	}

	msg := LargeCSVMsg
	if exporter.SendEmail() {
		msg = LargeCSVMsg + " " + EmailCSVMsg
	}

	pks, err := exporter.ProbePKs(database.DB, filters, 0)
	if err != nil {
		return nil, err
	}

	var userID string
	if user != nil {
		userID = user.ID.String()
	}
	payload := models.JSONMap{
		"pks":           pks,
		"columns":       columns,
		"exporter":      exporter.Name(),
		"user_id":       userID,
		"fail_silently": true,
	}
	if _, err := s.QueueService.Enqueue(TaskSendCSVEmail, payload); err != nil {
		return nil, err
	}

	return nil, &CSVTooLargeError{Message: msg}
}

// SendCSVEmail is the deferred half: generate the CSV for the given
// primary keys and email it to the acting user. A user that no longer
// exists is logged and, unless failSilently is off, swallowed.
func (s *ExportService) SendCSVEmail(exporterName string, pks, columns []string, userID string, failSilently bool) error {
	exporter, ok := LookupExporter(exporterName)
	if !ok {
		return fmt.Errorf("unknown exporter %q", exporterName)
	}

	rows, err := exporter.Rows(database.DB, pks, columns)
	if err != nil {
		return err
	}
	result, err := buildResult(exporter.FileName(), columns, rows, false)
	if err != nil {
		return err
	}

	if !exporter.SendEmail() {
		return s.deliverToStorage(result)
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		log.Printf("Sending CSV through email failed because user with id %s doesn't exist.", userID)
		if !failSilently {
			return err
		}
		return nil
	}

	context := map[string]interface{}{
		"email":       user.Email,
		"request_for": exporter.FileName(),
	}
	message, err := emails.FromTemplates(utils.TemplatesDir(), exporter.TemplatesPath(), context, "")
	if err != nil {
		return err
	}
	message.SetRecipients([]string{user.Email}, nil, nil)

	if result.Compressed {
		message.WithGzipFile(emails.AppendExt(exporter.FileName(), emails.CSVExt), result.Buffer)
	} else {
		message.WithCSVFile(exporter.FileName(), result.Buffer)
	}

	_, err = message.Send(MailSender, false, true)
	return err
}

// deliverToStorage uploads the generated file to the first configured
// storage target. Exports from exporters with email disabled would
// otherwise never surface anywhere.
func (s *ExportService) deliverToStorage(result *ExportResult) error {
	var storage models.StorageConfig
	if err := database.DB.Order("created_at asc").First(&storage).Error; err != nil {
		log.Printf("[export] no storage target configured, discarding %s", result.FileName)
		return nil
	}

	uploader := s.Uploader
	if uploader == nil {
		uploader = &UploaderService{}
	}
	return uploader.Upload(storage, bytes.NewReader(result.Buffer.Bytes()), int64(result.Buffer.Len()), result.FileName)
}

func buildResult(fileName string, columns []string, rows [][]string, forceCompress bool) (*ExportResult, error) {
	buf, err := writeCSVBuffer(columns, rows)
	if err != nil {
		return nil, err
	}

	compressed, out, err := utils.ConditionalCompress(buf, forceCompress)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{Buffer: out, Compressed: compressed}
	if compressed {
		result.FileName = emails.AppendExt(emails.AppendExt(fileName, emails.CSVExt), emails.GzipExt)
		result.ContentType = emails.GzipContentType
	} else {
		result.FileName = emails.AppendExt(fileName, emails.CSVExt)
		result.ContentType = emails.CSVContentType
	}
	return result, nil
}

func writeCSVBuffer(columns []string, rows [][]string) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(columns); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf, nil
}
