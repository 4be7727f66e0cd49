package services

import (
	"fmt"
	"strings"

	"communication-service/internal/models"

	"gorm.io/gorm"
)

// CommunicationLogExporter exports the notification audit trail.
type CommunicationLogExporter struct{}

func (CommunicationLogExporter) Name() string     { return "communication_logs" }
func (CommunicationLogExporter) FileName() string { return "communication_logs" }

func (CommunicationLogExporter) Columns() []string {
	return []string{
		"id",
		"communication_type",
		"sender_address",
		"recipient_address",
		"template_name",
		"is_log_only",
		"error_response",
		"created_at",
	}
}

func (CommunicationLogExporter) SendEmail() bool       { return true }
func (CommunicationLogExporter) TemplatesPath() string { return "emails/csv_download" }

// filterableColumns limits ProbePKs filters to known column names, so a
// filter key is never interpolated into SQL unchecked.
var filterableColumns = map[string]bool{
	"communication_type": true,
	"sender_address":     true,
	"template_name":      true,
	"is_log_only":        true,
}

func (CommunicationLogExporter) ProbePKs(db *gorm.DB, filters map[string]interface{}, limit int) ([]string, error) {
	for column := range filters {
		if !filterableColumns[column] {
			return nil, fmt.Errorf("cannot filter on column %q", column)
		}
	}

	query := db.Model(&models.CommunicationLog{})
	for column, value := range filters {
		query = query.Where(fmt.Sprintf("%s = ?", column), value)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var pks []string
	err := query.Order("created_at desc").Pluck("id", &pks).Error
	return pks, err
}

func (e CommunicationLogExporter) Rows(db *gorm.DB, pks []string, columns []string) ([][]string, error) {
	var logs []models.CommunicationLog
	if err := db.Where("id IN ?", pks).Order("created_at desc").Find(&logs).Error; err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(logs))
	for _, entry := range logs {
		row := make([]string, 0, len(columns))
		for _, column := range columns {
			row = append(row, e.field(entry, column))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (CommunicationLogExporter) field(entry models.CommunicationLog, column string) string {
	switch column {
	case "id":
		return entry.ID.String()
	case "communication_type":
		return entry.CommunicationType
	case "sender_address":
		return entry.SenderAddress
	case "recipient_address":
		return strings.Join(entry.RecipientAddress, ";")
	case "template_name":
		return entry.TemplateName
	case "is_log_only":
		return fmt.Sprintf("%t", entry.IsLogOnly)
	case "error_response":
		return entry.ErrorResponse
	case "created_at":
		return entry.CreatedAt.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}
